package cli

import (
	"github.com/spf13/cobra"

	"coinchart/internal/adapters/console"
	"coinchart/internal/domain"
)

func newPeriodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List the supported chart periods",
		// Static table, no configuration needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return console.PrintPeriods(cmd.OutOrStdout(), domain.Periods())
		},
	}
}
