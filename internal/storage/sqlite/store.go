// Package sqlite provides the SQLite-backed implementation of
// storage.Store. The database is opened in WAL mode and the schema is
// migrated on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/estatement-dev/estatement/internal/model"
	"github.com/estatement-dev/estatement/internal/storage"
)

// timeLayout stores timestamps as UTC RFC3339 so lexical order equals
// chronological order.
const timeLayout = time.RFC3339

// refChunkSize keeps IN(...) lists under SQLite's variable limit.
const refChunkSize = 500

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY interleavings.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_number TEXT NOT NULL,
		account_number TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		withdrawal TEXT NOT NULL,
		credit TEXT NOT NULL,
		running_balance TEXT NOT NULL,
		batch_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_ref
		ON transactions(ref_number);

	-- Hot path: full-history balance recomputation per account.
	CREATE INDEX IF NOT EXISTS idx_transactions_account_time
		ON transactions(account_number, occurred_at, id);

	CREATE TABLE IF NOT EXISTS accounts (
		account_number TEXT PRIMARY KEY,
		current_balance TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		fail_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LockAccount serializes reconciliations of one account while letting
// unrelated accounts proceed in parallel.
func (s *Store) LockAccount(accountNumber string) func() {
	s.mu.Lock()
	l, ok := s.locks[accountNumber]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountNumber] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ExistingRefs reports which of refs already exist, querying in chunks.
func (s *Store) ExistingRefs(ctx context.Context, refs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(refs); start += refChunkSize {
		end := start + refChunkSize
		if end > len(refs) {
			end = len(refs)
		}
		chunk := refs[start:end]

		placeholders := strings.TrimRight(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, r := range chunk {
			args[i] = r
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT ref_number FROM transactions WHERE ref_number IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("querying existing refs: %w", err)
		}
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning ref: %w", err)
			}
			existing[ref] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading refs: %w", err)
		}
		rows.Close()
	}
	return existing, nil
}

const txnColumns = `id, ref_number, account_number, occurred_at, description, withdrawal, credit, running_balance, batch_id`

// TransactionsByAccount returns the account's complete history ordered
// by time, tie-broken by insertion id.
func (s *Store) TransactionsByAccount(ctx context.Context, accountNumber string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE account_number = ? ORDER BY occurred_at ASC, id ASC`,
		accountNumber)
	if err != nil {
		return nil, fmt.Errorf("querying transactions for %s: %w", accountNumber, err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// LastTransaction returns the chronologically last transaction, or nil.
func (s *Store) LastTransaction(ctx context.Context, accountNumber string) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE account_number = ? ORDER BY occurred_at DESC, id DESC LIMIT 1`,
		accountNumber)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Account returns the account row or storage.ErrAccountNotFound.
func (s *Store) Account(ctx context.Context, accountNumber string) (*model.Account, error) {
	var balance string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_balance FROM accounts WHERE account_number = ?`, accountNumber).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", accountNumber, storage.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying account %s: %w", accountNumber, err)
	}

	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parsing balance %q for %s: %w", balance, accountNumber, err)
	}
	return &model.Account{AccountNumber: accountNumber, CurrentBalance: d}, nil
}

// AccountNumbers returns every distinct account number that has
// transactions.
func (s *Store) AccountNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT account_number FROM transactions ORDER BY account_number`)
	if err != nil {
		return nil, fmt.Errorf("querying account numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning account number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// InsertTransactions persists new transactions in a single SQL
// transaction.
func (s *Store) InsertTransactions(ctx context.Context, txns []model.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (ref_number, account_number, occurred_at, description, withdrawal, credit, running_balance, batch_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		_, err := stmt.ExecContext(ctx,
			t.RefNumber,
			t.AccountNumber,
			t.OccurredAt.UTC().Format(timeLayout),
			t.Description,
			t.Withdrawal.String(),
			t.Credit.String(),
			t.RunningBalance.String(),
			t.BatchID,
		)
		if err != nil {
			return fmt.Errorf("inserting transaction %s: %w", t.RefNumber, err)
		}
	}
	return tx.Commit()
}

// EnsureAccounts creates missing account rows with a zero balance.
func (s *Store) EnsureAccounts(ctx context.Context, accountNumbers []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning account upsert: %w", err)
	}
	defer tx.Rollback()

	for _, n := range accountNumbers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (account_number, current_balance) VALUES (?, ?)
			 ON CONFLICT(account_number) DO NOTHING`,
			n, decimal.Zero.String())
		if err != nil {
			return fmt.Errorf("creating account %s: %w", n, err)
		}
	}
	return tx.Commit()
}

// UpdateBalances writes recomputed running balances and the account's
// current balance in one transaction; all writes commit or none do.
func (s *Store) UpdateBalances(ctx context.Context, accountNumber string, txns []model.Transaction, current decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning balance update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET running_balance = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing balance update: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		if _, err := stmt.ExecContext(ctx, t.RunningBalance.String(), t.ID); err != nil {
			return fmt.Errorf("updating balance for %s: %w", t.RefNumber, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET current_balance = ? WHERE account_number = ?`,
		current.String(), accountNumber)
	if err != nil {
		return fmt.Errorf("updating account %s balance: %w", accountNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking account update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", accountNumber, storage.ErrAccountNotFound)
	}
	return tx.Commit()
}

// CreateBatch records a new upload.
func (s *Store) CreateBatch(ctx context.Context, b model.Batch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, filename, status, record_count, fail_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Filename, string(b.Status), b.RecordCount, b.FailReason, b.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("creating batch %s: %w", b.ID, err)
	}
	return nil
}

// UpdateBatch rewrites an upload's status, count and failure reason.
func (s *Store) UpdateBatch(ctx context.Context, b model.Batch) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, record_count = ?, fail_reason = ? WHERE id = ?`,
		string(b.Status), b.RecordCount, b.FailReason, b.ID)
	if err != nil {
		return fmt.Errorf("updating batch %s: %w", b.ID, err)
	}
	return nil
}

// Batch returns one upload record by id.
func (s *Store) Batch(ctx context.Context, id string) (*model.Batch, error) {
	var b model.Batch
	var status, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, record_count, fail_reason, created_at FROM batches WHERE id = ?`, id).
		Scan(&b.ID, &b.Filename, &status, &b.RecordCount, &b.FailReason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying batch %s: %w", id, err)
	}

	b.Status = model.BatchStatus(status)
	b.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing batch timestamp %q: %w", createdAt, err)
	}
	return &b, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (model.Transaction, error) {
	var t model.Transaction
	var occurredAt, withdrawal, credit, balance string

	err := sc.Scan(&t.ID, &t.RefNumber, &t.AccountNumber, &occurredAt, &t.Description, &withdrawal, &credit, &balance, &t.BatchID)
	if err != nil {
		return model.Transaction{}, err
	}

	t.OccurredAt, err = time.Parse(timeLayout, occurredAt)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing timestamp %q: %w", occurredAt, err)
	}
	if t.Withdrawal, err = decimal.NewFromString(withdrawal); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing withdrawal %q: %w", withdrawal, err)
	}
	if t.Credit, err = decimal.NewFromString(credit); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing credit %q: %w", credit, err)
	}
	if t.RunningBalance, err = decimal.NewFromString(balance); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing running balance %q: %w", balance, err)
	}
	return t, nil
}
