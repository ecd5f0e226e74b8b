package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBalanceCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print an account's current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			account, err := e.store.Account(ctx, args[0])
			if err != nil {
				return err
			}

			last, err := e.store.LastTransaction(ctx, args[0])
			if err != nil {
				return err
			}

			if last == nil {
				fmt.Printf("%s (no transactions)\n", account.CurrentBalance.StringFixed(2))
				return nil
			}
			fmt.Printf("%s as of %s (%s)\n",
				account.CurrentBalance.StringFixed(2),
				last.OccurredAt.Format("02-01-2006 15:04"),
				last.RefNumber)
			return nil
		},
	}
}
