package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coinchart/config"
)

// rootOptions carries state shared by every subcommand.
type rootOptions struct {
	cfg      *config.Config
	logLevel string
}

// NewRootCommand builds the coinchart command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "coinchart",
		Short:         "Live cryptocurrency candlestick charts in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")

	cmd.AddCommand(
		newWatchCmd(opts),
		newFetchCmd(opts),
		newPeriodsCmd(),
		newSnapshotsCmd(opts),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
