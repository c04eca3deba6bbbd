package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coinchart/config"
	"coinchart/internal/adapters/coingecko"
	"coinchart/internal/adapters/console"
	"coinchart/internal/app"
	"coinchart/internal/chart"
	"coinchart/internal/domain"
	"coinchart/internal/feed"
	"coinchart/internal/ports"
)

const feedEventBuffer = 256

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		asset    string
		period   string
		interval string
		tail     int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live chart and accept commands on stdin",
		Long: `Loads the selected asset's history, keeps it updated from the live feed and
reads commands from stdin:

  asset <id>            switch asset (e.g. asset solana)
  period <1D|7D|1M>     switch period
  interval <1s|1m>      switch the live update interval
  refresh               reload history
  status                print the current state
  trades                print recent trades
  quit                  exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if asset != "" {
				cfg.Asset = asset
			}
			if period != "" {
				cfg.Period = domain.Period(period)
			}
			if interval != "" {
				cfg.LiveInterval = domain.LiveInterval(interval)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runWatch(cmd.Context(), &cfg, cmd.InOrStdin(), cmd.OutOrStdout(), tail)
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "initial asset id (overrides ASSET)")
	cmd.Flags().StringVar(&period, "period", "", "initial period (overrides PERIOD)")
	cmd.Flags().StringVar(&interval, "interval", "", "live interval 1s or 1m (overrides LIVE_INTERVAL)")
	cmd.Flags().IntVar(&tail, "tail", 5, "candles printed when the series is replaced")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, tail int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Logger
	appLogger := newLogger(cfg)

	// 2. Initialize historical source
	source, err := newCandleSource(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize candle source: %w", err)
	}

	// 3. Initialize snapshot repository (optional)
	var repo ports.SnapshotRepository
	snapshots, err := openSnapshots(cfg, appLogger)
	if err != nil {
		appLogger.Warn(ctx, "Snapshot store unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
	} else if snapshots != nil {
		repo = snapshots
		defer func() {
			if err := snapshots.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing snapshot repository")
			}
		}()
	}

	// 4. Chart store and loader
	sink := console.NewSink(out, tail)
	sink.SetLabel(cfg.Asset)
	store, err := chart.NewStore(sink, appLogger)
	if err != nil {
		return err
	}
	loader, err := chart.NewLoader(source, appLogger, cfg.FetchTimeout)
	if err != nil {
		return err
	}

	// 5. Live feed
	dialer, err := coingecko.NewStreamDialer(coingecko.StreamConfig{
		URL:    cfg.CoinGeckoWebSocketURL,
		APIKey: cfg.CoinGeckoWSAPIKey,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize stream dialer: %w", err)
	}
	events := make(chan feed.Event, feedEventBuffer)
	liveFeed, err := feed.New(feed.Config{
		Dialer:               dialer,
		Logger:               appLogger,
		Events:               events,
		ReconnectDelay:       cfg.ReconnectDelay,
		ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize live feed: %w", err)
	}

	// 6. Selection controller
	watcher := newStatusWatcher(sink)
	ctrl, err := app.NewController(app.Config{
		InitialSelection:   cfg.Selection(),
		LiveInterval:       cfg.LiveInterval,
		TickerUpdatesChart: cfg.TickerUpdatesChart,
		TradeHistorySize:   cfg.TradeHistorySize,
		OnStatus:           watcher.observe,
	}, appLogger, loader, store, liveFeed, events, repo)
	if err != nil {
		return fmt.Errorf("failed to initialize chart controller: %w", err)
	}

	// 7. Scheduled refresh (optional)
	if cfg.RefreshSchedule != "" {
		scheduler, err := app.NewRefreshScheduler(ctx, cfg.RefreshSchedule, ctrl, appLogger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// 8. Run until a signal, quit or controller failure
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	lines := readLines(ctx, in)
	for {
		select {
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep charting until a signal arrives
				lines = nil
				continue
			}
			quit, err := execLine(ctx, ctrl, sink, line)
			if err != nil {
				sink.Printf("error: %v\n", err)
			}
			if quit {
				stop()
				return <-runErr
			}
		}
	}
}

// readLines forwards stdin lines until EOF or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
