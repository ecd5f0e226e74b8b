package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one bank statement line. A transaction is
// immutable once persisted, except RunningBalance which the reconciler
// rewrites whenever the account's history is recomputed.
type Transaction struct {
	ID             int64  // storage insertion id; tie-break for equal timestamps
	RefNumber      string // bank reference number, the natural key
	AccountNumber  string
	OccurredAt     time.Time
	Description    string
	Withdrawal     decimal.Decimal // zero if credit side
	Credit         decimal.Decimal // zero if withdrawal side
	RunningBalance decimal.Decimal // owned by the reconciler; zero at creation
	BatchID        string          // upload that introduced this row
}

// Delta returns the signed balance contribution (credit - withdrawal).
func (t Transaction) Delta() decimal.Decimal {
	return t.Credit.Sub(t.Withdrawal)
}
