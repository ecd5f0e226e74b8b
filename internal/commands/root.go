package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/estatement-dev/estatement/internal/buildinfo"
	"github.com/estatement-dev/estatement/internal/config"
	"github.com/estatement-dev/estatement/internal/logging"
	"github.com/estatement-dev/estatement/internal/storage/sqlite"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "estatement",
		Short:   "Bank statement ingestion and balance reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "path to estatement.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newIngestCommand(&configPath),
		newRecalcCommand(&configPath),
		newVerifyCommand(&configPath),
		newBalanceCommand(&configPath),
	)

	return rootCmd
}

// env bundles the runtime pieces shared by subcommands.
type env struct {
	cfg   *config.Config
	store *sqlite.Store
	log   zerolog.Logger
}

// newEnv loads configuration (defaults when the file is absent) and
// opens the store.
func newEnv(configPath string) (*env, error) {
	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &env{cfg: cfg, store: store, log: logging.Console(cfg.Logging.Level)}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}
