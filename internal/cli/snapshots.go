package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the series stored in the snapshot database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.DBPath == "" {
				return fmt.Errorf("snapshots are disabled (DB_PATH is empty)")
			}
			repo, err := openSnapshots(cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer repo.Close()

			infos, err := repo.ListSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no snapshots stored")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSET\tPERIOD\tCANDLES\tFROM\tTO")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", info.Selection.AssetID, info.Selection.Period, info.Count,
					time.Unix(info.First, 0).UTC().Format(time.RFC3339), time.Unix(info.Last, 0).UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
