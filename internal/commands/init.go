package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/estatement-dev/estatement/internal/config"
)

func newInitCommand() *cobra.Command {
	var dbPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize an estatement data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir, dbPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "estatement.db", "database file path (relative to directory)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	return cmd
}

func runInit(dir, dbPath, logLevel string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	configPath := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, dbPath)
	cfg.Logging.Level = logLevel

	if err := cfg.Save(configPath); err != nil {
		return err
	}

	fmt.Printf("Initialized estatement project in %s\n", dir)
	return nil
}
