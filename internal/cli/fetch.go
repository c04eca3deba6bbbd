package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coinchart/internal/chart"
	"coinchart/internal/domain"
	"coinchart/internal/export"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	var (
		asset   string
		period  string
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one historical series and write it to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if asset == "" {
				asset = cfg.Asset
			}
			asset = strings.ToLower(strings.TrimSpace(asset))
			p := cfg.Period
			if period != "" {
				var err error
				if p, err = domain.ParsePeriod(period); err != nil {
					return err
				}
			}
			exporter, err := export.New(format)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = fmt.Sprintf("%s_%s.%s", asset, strings.ToLower(string(p)), exporter.Extension())
			}

			appLogger := newLogger(cfg)
			source, err := newCandleSource(cfg, appLogger)
			if err != nil {
				return fmt.Errorf("failed to initialize candle source: %w", err)
			}
			loader, err := chart.NewLoader(source, appLogger, cfg.FetchTimeout)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := loader.Load(ctx, domain.Selection{AssetID: asset, Period: p}); err != nil {
				return err
			}
			var res chart.LoadResult
			select {
			case res = <-loader.Results():
			case <-ctx.Done():
				return ctx.Err()
			}
			if res.Err != nil {
				return res.Err
			}

			if err := exporter.Save(res.Candles, outPath); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			abs, _ := filepath.Abs(outPath)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d candles for %s %s to %s\n", len(res.Candles), asset, p, abs)
			return nil
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "asset id (defaults to ASSET)")
	cmd.Flags().StringVar(&period, "period", "", "period 1D, 7D or 1M (defaults to PERIOD)")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (defaults to <asset>_<period>.<ext>)")
	return cmd
}
