package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/estatement-dev/estatement/internal/balance"
)

func newRecalcCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc [account...]",
		Short: "Recompute running balances from each account's full history",
		Long: "Recomputes running balances for the named accounts, or for every " +
			"account with transactions when none are given. Safe to re-run; " +
			"also the remedy for batches that failed after persisting rows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(*configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			reconciler := balance.New(e.store, e.log)
			ctx := cmd.Context()

			var results []balance.Result
			if len(args) == 0 {
				results, err = reconciler.RecomputeAll(ctx)
				if err != nil {
					return err
				}
			} else {
				for _, n := range args {
					bal, rerr := reconciler.Recompute(ctx, n)
					results = append(results, balance.Result{AccountNumber: n, Balance: bal, Err: rerr})
				}
			}

			failures := 0
			for _, res := range results {
				if res.Err != nil {
					failures++
					fmt.Printf("%-20s ERROR: %v\n", res.AccountNumber, res.Err)
					continue
				}
				fmt.Printf("%-20s %s\n", res.AccountNumber, res.Balance.StringFixed(2))
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d accounts failed", failures, len(results))
			}
			return nil
		},
	}
}
