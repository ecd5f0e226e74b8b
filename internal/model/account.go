package model

import "github.com/shopspring/decimal"

// Account is one row per distinct account number ever seen in an
// upload. CurrentBalance always equals the running balance of the
// account's chronologically last transaction; only the reconciler
// writes it.
type Account struct {
	AccountNumber  string
	CurrentBalance decimal.Decimal
}
