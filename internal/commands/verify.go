package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/estatement-dev/estatement/internal/balance"
)

func newVerifyCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [account...]",
		Short: "Check stored balances against recomputed values without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			reconciler := balance.New(e.store, e.log)
			ctx := cmd.Context()

			byAccount := make(map[string][]balance.Mismatch)
			if len(args) == 0 {
				byAccount, err = reconciler.ValidateAll(ctx)
				if err != nil {
					return err
				}
			} else {
				for _, n := range args {
					mismatches, verr := reconciler.Validate(ctx, n)
					if verr != nil {
						return verr
					}
					if len(mismatches) > 0 {
						byAccount[n] = mismatches
					}
				}
			}

			if len(byAccount) == 0 {
				fmt.Println("All balances valid")
				return nil
			}

			total := 0
			for account, mismatches := range byAccount {
				for _, m := range mismatches {
					total++
					label := m.RefNumber
					if label == "" {
						label = "(current balance)"
					}
					fmt.Printf("%s %s: stored %s, expected %s\n",
						account, label, m.Stored.StringFixed(2), m.Expected.StringFixed(2))
				}
			}
			return fmt.Errorf("%d balance mismatches found", total)
		},
	}
}
