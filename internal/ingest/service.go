// Package ingest drives one CSV upload end to end: parse, dedup,
// persist, reconcile affected accounts.
package ingest

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estatement-dev/estatement/internal/balance"
	"github.com/estatement-dev/estatement/internal/model"
	"github.com/estatement-dev/estatement/internal/statement"
	"github.com/estatement-dev/estatement/internal/storage"
)

// Service orchestrates batch ingestion. Each upload moves through
// received, parsed, deduped, persisted, reconciled and completed, with
// failed reachable from any step.
type Service struct {
	store      storage.Store
	reconciler *balance.Reconciler
	log        zerolog.Logger
}

// NewService creates an ingestion Service.
func NewService(store storage.Store, reconciler *balance.Reconciler, log zerolog.Logger) *Service {
	return &Service{store: store, reconciler: reconciler, log: log}
}

// ProcessUpload ingests one statement CSV and returns the number of
// newly inserted transactions. Zero new records is a failure, never a
// silent success: the caller must be able to tell "uploaded nothing
// new" from "uploaded successfully".
func (s *Service) ProcessUpload(ctx context.Context, filename string, r io.Reader) (int, error) {
	batch := model.Batch{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    model.BatchReceived,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return 0, &Error{Stage: StagePersist, Reason: "recording upload", Err: err}
	}

	log := s.log.With().Str("batch", batch.ID).Str("file", filename).Logger()

	count, err := s.run(ctx, &batch, log, r)
	if err != nil {
		batch.Status = model.BatchFailed
		batch.FailReason = err.Error()
		if uerr := s.store.UpdateBatch(ctx, batch); uerr != nil {
			log.Error().Err(uerr).Msg("recording batch failure")
		}
		log.Warn().Err(err).Msg("upload failed")
		return 0, err
	}

	batch.Status = model.BatchCompleted
	batch.RecordCount = count
	if err := s.store.UpdateBatch(ctx, batch); err != nil {
		return 0, &Error{Stage: StagePersist, Reason: "recording completion", Err: err}
	}

	log.Info().Int("inserted", count).Msg("upload completed")
	return count, nil
}

func (s *Service) run(ctx context.Context, batch *model.Batch, log zerolog.Logger, r io.Reader) (int, error) {
	parser := statement.NewParser(log)
	res, err := parser.Parse(r)
	if err != nil {
		return 0, &Error{Stage: StageParse, Reason: "unreadable statement", Err: err}
	}
	log.Info().
		Int("candidates", len(res.Candidates)).
		Int("rejected", len(res.Rejects)).
		Msg("statement parsed")

	if len(res.Candidates) == 0 {
		return 0, &Error{Stage: StageParse, Reason: "no valid records parsed"}
	}
	if err := s.advance(ctx, batch, model.BatchParsed); err != nil {
		return 0, err
	}

	candidates := dedupWithinBatch(res.Candidates, log)
	for i := range candidates {
		candidates[i].BatchID = batch.ID
	}

	newTxns, err := s.dropPersisted(ctx, candidates)
	if err != nil {
		return 0, &Error{Stage: StageDedup, Reason: "checking existing references", Err: err}
	}
	log.Info().
		Int("new", len(newTxns)).
		Int("duplicates", len(candidates)-len(newTxns)).
		Msg("dedup complete")

	if len(newTxns) == 0 {
		return 0, &Error{Stage: StageDedup, Reason: "no new records - all duplicates or invalid"}
	}
	if err := s.advance(ctx, batch, model.BatchDeduped); err != nil {
		return 0, err
	}

	affected := affectedAccounts(newTxns)
	if err := s.store.EnsureAccounts(ctx, affected); err != nil {
		return 0, &Error{Stage: StagePersist, Reason: "creating accounts", Err: err}
	}
	if err := s.store.InsertTransactions(ctx, newTxns); err != nil {
		return 0, &Error{Stage: StagePersist, Reason: "inserting transactions", Err: err}
	}
	if err := s.advance(ctx, batch, model.BatchPersisted); err != nil {
		return 0, err
	}

	// One reconciliation per affected account. A failure fails the
	// batch, but remaining accounts are still reconciled so one bad
	// account cannot stall the others.
	var failed []string
	for _, n := range affected {
		if _, err := s.reconciler.Recompute(ctx, n); err != nil {
			log.Error().Err(err).Str("account", n).Msg("reconciliation failed")
			failed = append(failed, n)
		}
	}
	if len(failed) > 0 {
		return 0, &Error{
			Stage:  StageReconcile,
			Reason: "reconciliation failed for accounts: " + strings.Join(failed, ", "),
		}
	}
	if err := s.advance(ctx, batch, model.BatchReconciled); err != nil {
		return 0, err
	}

	return len(newTxns), nil
}

func (s *Service) advance(ctx context.Context, batch *model.Batch, status model.BatchStatus) error {
	batch.Status = status
	if err := s.store.UpdateBatch(ctx, *batch); err != nil {
		return &Error{Stage: StagePersist, Reason: "recording batch progress", Err: err}
	}
	return nil
}

// dedupWithinBatch drops repeated reference numbers inside one upload,
// first occurrence wins. Collisions against already-persisted rows are
// handled separately by dropPersisted.
func dedupWithinBatch(candidates []model.Transaction, log zerolog.Logger) []model.Transaction {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.RefNumber]; dup {
			log.Warn().Str("ref", c.RefNumber).Msg("duplicate reference within upload, keeping first occurrence")
			continue
		}
		seen[c.RefNumber] = struct{}{}
		out = append(out, c)
	}
	return out
}

// dropPersisted removes candidates whose reference number already
// exists in storage, using a single set lookup.
func (s *Service) dropPersisted(ctx context.Context, candidates []model.Transaction) ([]model.Transaction, error) {
	refs := make([]string, len(candidates))
	for i, c := range candidates {
		refs[i] = c.RefNumber
	}

	existing, err := s.store.ExistingRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	var fresh []model.Transaction
	for _, c := range candidates {
		if _, dup := existing[c.RefNumber]; !dup {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

// affectedAccounts returns the distinct account numbers referenced by
// txns, sorted for deterministic processing order.
func affectedAccounts(txns []model.Transaction) []string {
	set := make(map[string]struct{})
	for _, t := range txns {
		set[t.AccountNumber] = struct{}{}
	}
	numbers := make([]string, 0, len(set))
	for n := range set {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}
