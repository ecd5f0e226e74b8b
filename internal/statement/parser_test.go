package statement

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Txn Ref Number,Account Number,Date Time,Description,Withdrawals,Credit"

func parse(t *testing.T, csv string) *Result {
	t.Helper()
	res, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	return res
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParse_ValidRows(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,01-01-2024 10:00,Deposit,,200.00\n" +
		"REF2,A1,02-01-2024 10:00,Withdrawal,50.00,\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 2)
	assert.Empty(t, res.Rejects)

	first := res.Candidates[0]
	assert.Equal(t, "REF1", first.RefNumber)
	assert.Equal(t, "A1", first.AccountNumber)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.OccurredAt)
	assert.Equal(t, "Deposit", first.Description)
	assert.True(t, first.Withdrawal.IsZero())
	assert.True(t, first.Credit.Equal(dec("200.00")))
	assert.True(t, first.RunningBalance.IsZero(), "candidates carry zero balance")

	second := res.Candidates[1]
	assert.True(t, second.Withdrawal.Equal(dec("50.00")))
	assert.True(t, second.Credit.IsZero())
}

func TestParse_HeaderBOMAndCasing(t *testing.T) {
	csv := "\uFEFFTXN REF NUMBER, account number ,Date  Time,DESCRIPTION,withdrawals,CREDIT\n" +
		"REF1,A1,01-01-2024 10:00,Deposit,,25.00\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "REF1", res.Candidates[0].RefNumber)
	assert.True(t, res.Candidates[0].Credit.Equal(dec("25.00")))
}

func TestParse_MissingRequiredField(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,,No date here,,10.00\n" +
		"REF2,A1,02-01-2024 10:00,Valid,,20.00\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "REF2", res.Candidates[0].RefNumber)

	require.Len(t, res.Rejects, 1)
	assert.Equal(t, 2, res.Rejects[0].Line)
	assert.Equal(t, "missing required field", res.Rejects[0].Reason)
}

func TestParse_InvalidDateFormat(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,2024-01-01T10:00,ISO date,,10.00\n"

	res := parse(t, csv)
	assert.Empty(t, res.Candidates)
	require.Len(t, res.Rejects, 1)
	assert.Equal(t, "invalid date format", res.Rejects[0].Reason)
}

func TestParse_BadAmountTreatedAsZero(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,01-01-2024 10:00,Garbled,abc,12.50\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 1, "bad amount must not reject the row")
	assert.Empty(t, res.Rejects)
	assert.True(t, res.Candidates[0].Withdrawal.IsZero())
	assert.True(t, res.Candidates[0].Credit.Equal(dec("12.50")))
}

func TestParse_NegativeAmountClamped(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,01-01-2024 10:00,Refund,-30.00,-5.00\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 1)
	assert.True(t, res.Candidates[0].Withdrawal.IsZero())
	assert.True(t, res.Candidates[0].Credit.IsZero())
}

func TestParse_HeaderOnly(t *testing.T) {
	res := parse(t, header+"\n")
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Rejects)
}

func TestParse_EmptyStream(t *testing.T) {
	_, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestParse_ShortRow(t *testing.T) {
	csv := header + "\n" +
		"REF1,A1,01-01-2024 10:00\n"

	res := parse(t, csv)
	require.Len(t, res.Candidates, 1, "missing trailing columns read as blank")
	assert.True(t, res.Candidates[0].Withdrawal.IsZero())
	assert.True(t, res.Candidates[0].Credit.IsZero())
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "txn ref number", normalizeHeader("\uFEFFTxn  Ref Number "))
	assert.Equal(t, "credit", normalizeHeader("CREDIT"))
	assert.Equal(t, "", normalizeHeader("  "))
}
