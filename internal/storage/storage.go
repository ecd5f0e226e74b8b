// Package storage defines the persistence surface the ingestion and
// reconciliation engine depends on.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/estatement-dev/estatement/internal/model"
)

// ErrAccountNotFound is returned when an account number has no row.
var ErrAccountNotFound = errors.New("account not found")

// Store is the full persistence contract. Implementations must make
// UpdateBalances atomic: the transaction balances and the account
// balance commit together or not at all.
type Store interface {
	// ExistingRefs reports which of refs already belong to persisted
	// transactions.
	ExistingRefs(ctx context.Context, refs []string) (map[string]struct{}, error)

	// TransactionsByAccount returns every transaction for the account,
	// ordered by OccurredAt ascending with insertion id as tie-break.
	TransactionsByAccount(ctx context.Context, accountNumber string) ([]model.Transaction, error)

	// LastTransaction returns the chronologically last transaction for
	// the account, or nil when the account has none.
	LastTransaction(ctx context.Context, accountNumber string) (*model.Transaction, error)

	// Account returns the account row, or ErrAccountNotFound.
	Account(ctx context.Context, accountNumber string) (*model.Account, error)

	// AccountNumbers returns every distinct account number that has at
	// least one transaction.
	AccountNumbers(ctx context.Context) ([]string, error)

	// InsertTransactions persists new transactions in one transaction.
	InsertTransactions(ctx context.Context, txns []model.Transaction) error

	// EnsureAccounts creates any missing account rows with a zero
	// balance; existing rows are left untouched.
	EnsureAccounts(ctx context.Context, accountNumbers []string) error

	// UpdateBalances writes the recomputed running balances and the
	// account's current balance atomically.
	UpdateBalances(ctx context.Context, accountNumber string, txns []model.Transaction, current decimal.Decimal) error

	// LockAccount acquires the exclusive reconciliation lock for the
	// account and returns the release func. Unrelated accounts never
	// block each other.
	LockAccount(accountNumber string) (unlock func())

	// CreateBatch records a new upload.
	CreateBatch(ctx context.Context, b model.Batch) error

	// UpdateBatch rewrites an upload's status, count and failure reason.
	UpdateBatch(ctx context.Context, b model.Batch) error

	// Batch returns one upload record by id.
	Batch(ctx context.Context, id string) (*model.Batch, error)
}
