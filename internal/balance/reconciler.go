// Package balance recomputes per-account running balances. The
// reconciler is the single source of truth for balance values.
package balance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/estatement-dev/estatement/internal/storage"
)

// Reconciler recomputes running balances from an account's complete
// transaction history. Recomputing from scratch, rather than
// incrementally, keeps out-of-order historical uploads correct: a new
// transaction dated before existing ones shifts every later balance.
type Reconciler struct {
	store storage.Store
	log   zerolog.Logger
}

// New creates a Reconciler.
func New(store storage.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Result reports one account's outcome from a bulk operation.
type Result struct {
	AccountNumber string
	Balance       decimal.Decimal
	Err           error
}

// Mismatch is one stored balance that differs from its recomputed
// value. An empty RefNumber means the account's current balance.
type Mismatch struct {
	RefNumber string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

// Recompute rebuilds the account's entire balance history under the
// account's exclusive lock and returns the final balance. The
// transaction balances and the account balance are written atomically.
func (r *Reconciler) Recompute(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	unlock := r.store.LockAccount(accountNumber)
	defer unlock()

	if _, err := r.store.Account(ctx, accountNumber); err != nil {
		return decimal.Zero, fmt.Errorf("reconciling %s: %w", accountNumber, err)
	}

	txns, err := r.store.TransactionsByAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading history for %s: %w", accountNumber, err)
	}

	running := decimal.Zero
	for i := range txns {
		running = running.Add(txns[i].Delta())
		txns[i].RunningBalance = running
	}

	if err := r.store.UpdateBalances(ctx, accountNumber, txns, running); err != nil {
		return decimal.Zero, fmt.Errorf("writing balances for %s: %w", accountNumber, err)
	}

	r.log.Debug().
		Str("account", accountNumber).
		Int("transactions", len(txns)).
		Str("balance", running.StringFixed(2)).
		Msg("account reconciled")
	return running, nil
}

// RecomputeAll rebuilds every account known to storage, one account at
// a time. One account's failure does not abort the rest; partial
// progress is reported per account.
func (r *Reconciler) RecomputeAll(ctx context.Context) ([]Result, error) {
	numbers, err := r.store.AccountNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	results := make([]Result, 0, len(numbers))
	for _, n := range numbers {
		balance, err := r.Recompute(ctx, n)
		if err != nil {
			r.log.Error().Err(err).Str("account", n).Msg("reconciliation failed")
		}
		results = append(results, Result{AccountNumber: n, Balance: balance, Err: err})
	}
	return results, nil
}

// Validate recomputes the account's expected balances without writing
// and reports every stored value that differs.
func (r *Reconciler) Validate(ctx context.Context, accountNumber string) ([]Mismatch, error) {
	account, err := r.store.Account(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", accountNumber, err)
	}

	txns, err := r.store.TransactionsByAccount(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", accountNumber, err)
	}

	var mismatches []Mismatch
	expected := decimal.Zero
	for _, t := range txns {
		expected = expected.Add(t.Delta())
		if !t.RunningBalance.Equal(expected) {
			mismatches = append(mismatches, Mismatch{
				RefNumber: t.RefNumber,
				Stored:    t.RunningBalance,
				Expected:  expected,
			})
		}
	}

	if !account.CurrentBalance.Equal(expected) {
		mismatches = append(mismatches, Mismatch{
			Stored:   account.CurrentBalance,
			Expected: expected,
		})
	}
	return mismatches, nil
}

// ValidateAll runs Validate for every account with transactions and
// returns the mismatches keyed by account number. Accounts that
// validate cleanly are absent from the map.
func (r *Reconciler) ValidateAll(ctx context.Context) (map[string][]Mismatch, error) {
	numbers, err := r.store.AccountNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	all := make(map[string][]Mismatch)
	for _, n := range numbers {
		mismatches, err := r.Validate(ctx, n)
		if err != nil {
			return nil, err
		}
		if len(mismatches) > 0 {
			all[n] = mismatches
		}
	}
	return all, nil
}
