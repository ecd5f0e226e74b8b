// Package statement parses bank statement CSV exports into transaction
// candidates. Malformed rows are reported, never fatal to the stream.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/estatement-dev/estatement/internal/model"
)

// DateTimeLayout is the statement timestamp format (dd-MM-yyyy HH:mm).
const DateTimeLayout = "02-01-2006 15:04"

// Recognized header names, after normalization.
const (
	headerRef        = "txn ref number"
	headerAccount    = "account number"
	headerDateTime   = "date time"
	headerDesc       = "description"
	headerWithdrawal = "withdrawals"
	headerCredit     = "credit"
)

// RowError describes one rejected statement row.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// Result is the outcome of parsing one CSV stream.
type Result struct {
	Candidates []model.Transaction
	Rejects    []RowError
}

// Parser converts statement CSV streams into transaction candidates.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a Parser that logs row warnings to log.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// columns maps recognized fields to column indexes; -1 = absent.
type columns struct {
	ref        int
	account    int
	dateTime   int
	desc       int
	withdrawal int
	credit     int
}

// Parse reads a statement CSV with a header row. Row-level problems
// are collected in Result.Rejects; only an unreadable stream or a
// missing header is an error.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("statement has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading statement header: %w", err)
	}

	cols := mapColumns(header)
	res := &Result{}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading statement row %d: %w", line, err)
		}

		txn, rerr := p.parseRow(cols, rec, line)
		if rerr != nil {
			p.log.Warn().Int("line", line).Str("reason", rerr.Reason).Msg("statement row rejected")
			res.Rejects = append(res.Rejects, *rerr)
			continue
		}
		res.Candidates = append(res.Candidates, txn)
	}
	return res, nil
}

// mapColumns normalizes the header once and returns a fixed index map,
// so per-row lookup never repeats string matching.
func mapColumns(header []string) columns {
	cols := columns{ref: -1, account: -1, dateTime: -1, desc: -1, withdrawal: -1, credit: -1}
	for i, cell := range header {
		switch normalizeHeader(cell) {
		case headerRef:
			cols.ref = i
		case headerAccount:
			cols.account = i
		case headerDateTime:
			cols.dateTime = i
		case headerDesc:
			cols.desc = i
		case headerWithdrawal:
			cols.withdrawal = i
		case headerCredit:
			cols.credit = i
		}
	}
	return cols
}

// normalizeHeader strips the UTF-8 BOM, trims, lowercases and collapses
// inner whitespace so exported headers match regardless of casing or
// encoding artifacts.
func normalizeHeader(cell string) string {
	cell = strings.TrimPrefix(cell, "\uFEFF")
	return strings.Join(strings.Fields(strings.ToLower(cell)), " ")
}

func (p *Parser) parseRow(cols columns, rec []string, line int) (model.Transaction, *RowError) {
	ref := field(rec, cols.ref)
	account := field(rec, cols.account)
	dateTime := field(rec, cols.dateTime)

	if ref == "" || account == "" || dateTime == "" {
		return model.Transaction{}, &RowError{Line: line, Reason: "missing required field"}
	}

	occurredAt, err := time.Parse(DateTimeLayout, dateTime)
	if err != nil {
		return model.Transaction{}, &RowError{Line: line, Reason: "invalid date format"}
	}

	withdrawal := p.parseAmount(field(rec, cols.withdrawal), "withdrawals", line)
	credit := p.parseAmount(field(rec, cols.credit), "credit", line)

	return model.Transaction{
		RefNumber:      ref,
		AccountNumber:  account,
		OccurredAt:     occurredAt,
		Description:    field(rec, cols.desc),
		Withdrawal:     withdrawal,
		Credit:         credit,
		RunningBalance: decimal.Zero,
	}, nil
}

// parseAmount treats blank as zero, warns and zeroes on a non-numeric
// value, and clamps negatives to zero. Amount problems never reject
// the row.
func (p *Parser) parseAmount(s, name string, line int) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.log.Warn().Int("line", line).Str("field", name).Str("value", s).Msg("invalid amount, treating as zero")
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// field returns the trimmed cell at idx, or "" when the column is
// absent or the row is short.
func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
