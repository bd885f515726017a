package main

import (
	"github.com/spf13/cobra"

	"option-replay-lab/internal/reporting"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Rebuild the report of a persisted run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return instrument("report", func() error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := reporting.NewGenerator(a.stores.Trades, a.stores.Aggregates).FromStore(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.publish(ctx, reporting.RunArtifacts(report)); err != nil {
				return err
			}
			printSummary(cmd, report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
