package cli

import (
	"context"
	"fmt"

	"coinchart/config"
	"coinchart/internal/adapters/binanceclient"
	"coinchart/internal/adapters/coingecko"
	"coinchart/internal/adapters/logger"
	"coinchart/internal/adapters/sqlite"
	"coinchart/internal/ports"
)

func newLogger(cfg *config.Config) *logger.SlogLogger {
	l := logger.NewStderr(cfg.LogLevel)
	l.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": l.Level().String()})
	return l
}

// newCandleSource returns the historical adapter selected by DATA_SOURCE.
func newCandleSource(cfg *config.Config, log ports.Logger) (ports.CandleSource, error) {
	switch cfg.DataSource {
	case config.SourceBinance:
		client, err := binanceclient.New(binanceclient.Config{UseTestnet: cfg.BinanceTestnet, Logger: log})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.SourceCoinGecko:
		client, err := coingecko.New(coingecko.Config{
			BaseURL:  cfg.CoinGeckoBaseURL,
			APIKey:   cfg.CoinGeckoAPIKey,
			CacheTTL: cfg.CacheTTL,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", ports.ErrConfigurationError, cfg.DataSource)
	}
}

// openSnapshots opens the snapshot store, or returns nil when DB_PATH is empty.
func openSnapshots(cfg *config.Config, log ports.Logger) (*sqlite.Repository, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
}
