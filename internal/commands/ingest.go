package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/estatement-dev/estatement/internal/balance"
	"github.com/estatement-dev/estatement/internal/ingest"
)

func newIngestCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Ingest a bank statement CSV and reconcile affected accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening statement: %w", err)
			}
			defer f.Close()

			reconciler := balance.New(e.store, e.log)
			svc := ingest.NewService(e.store, reconciler, e.log)

			count, err := svc.ProcessUpload(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			fmt.Printf("Inserted %d new transactions\n", count)
			return nil
		},
	}
}
