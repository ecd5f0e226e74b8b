package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatement-dev/estatement/internal/storage/sqlite"
)

// writeProject sets up a temp config plus statement CSV and returns
// their paths.
func writeProject(t *testing.T, csv string) (configPath, csvPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, runInit(dir, "estatement.db", "error"))
	configPath = filepath.Join(dir, "estatement.yaml")
	dbPath = filepath.Join(dir, "estatement.db")

	csvPath = filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))
	return configPath, csvPath, dbPath
}

func TestIngestCommand_EndToEnd(t *testing.T) {
	csv := "Txn Ref Number,Account Number,Date Time,Description,Withdrawals,Credit\n" +
		"REF1,A1,01-01-2024 10:00,Deposit,,200.00\n" +
		"REF2,A1,02-01-2024 10:00,Withdrawal,50.00,\n"
	configPath, csvPath, dbPath := writeProject(t, csv)

	root := NewRootCommand()
	root.SetArgs([]string{"--config", configPath, "ingest", csvPath})
	require.NoError(t, root.Execute())

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()

	account, err := store.Account(context.Background(), "A1")
	require.NoError(t, err)
	want, _ := decimal.NewFromString("150.00")
	assert.True(t, account.CurrentBalance.Equal(want))
}

func TestIngestCommand_AllDuplicatesFails(t *testing.T) {
	csv := "Txn Ref Number,Account Number,Date Time,Description,Withdrawals,Credit\n" +
		"REF1,A1,01-01-2024 10:00,Deposit,,200.00\n"
	configPath, csvPath, _ := writeProject(t, csv)

	root := NewRootCommand()
	root.SetArgs([]string{"--config", configPath, "ingest", csvPath})
	require.NoError(t, root.Execute())

	// Re-ingesting the same statement must fail loudly, not succeed
	// with zero records.
	root = NewRootCommand()
	root.SetArgs([]string{"--config", configPath, "ingest", csvPath})
	require.Error(t, root.Execute())
}

func TestVerifyAndRecalcCommands(t *testing.T) {
	csv := "Txn Ref Number,Account Number,Date Time,Description,Withdrawals,Credit\n" +
		"REF1,A1,01-01-2024 10:00,Deposit,,75.00\n"
	configPath, csvPath, _ := writeProject(t, csv)

	root := NewRootCommand()
	root.SetArgs([]string{"--config", configPath, "ingest", csvPath})
	require.NoError(t, root.Execute())

	verify := NewRootCommand()
	verify.SetArgs([]string{"--config", configPath, "verify"})
	require.NoError(t, verify.Execute(), "fresh ingest must validate cleanly")

	recalc := NewRootCommand()
	recalc.SetArgs([]string{"--config", configPath, "recalc"})
	require.NoError(t, recalc.Execute(), "recalc is idempotent")
}
