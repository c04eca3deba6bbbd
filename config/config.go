package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const (
	SourceCoinGecko = "coingecko"
	SourceBinance   = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Data sources
	DataSource            string `envconfig:"DATA_SOURCE" default:"coingecko"`
	CoinGeckoBaseURL      string `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	CoinGeckoAPIKey       string `envconfig:"COINGECKO_API_KEY"`
	CoinGeckoWebSocketURL string `envconfig:"COINGECKO_WEBSOCKET_URL" default:"wss://stream.coingecko.com/v1"`
	CoinGeckoWSAPIKey     string `envconfig:"COINGECKO_WS_API_KEY"`
	BinanceTestnet        bool   `envconfig:"BINANCE_TESTNET" default:"false"`

	// Chart
	Asset              string              `envconfig:"ASSET" default:"bitcoin"`
	Period             domain.Period       `envconfig:"PERIOD" default:"7D"`
	LiveInterval       domain.LiveInterval `envconfig:"LIVE_INTERVAL" default:"1s"`
	TickerUpdatesChart bool                `envconfig:"TICKER_UPDATES_CHART" default:"true"`
	TradeHistorySize   int                 `envconfig:"TRADE_HISTORY_SIZE" default:"20"`

	// Fetching
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"60s"`
	RefreshSchedule string        `envconfig:"REFRESH_SCHEDULE"` // Cron spec, empty disables

	// Connection Settings
	ReconnectDelay       time.Duration `envconfig:"RECONNECT_DELAY" default:"3s"`
	ReconnectMaxDelay    time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"3s"`
	MaxReconnectAttempts int           `envconfig:"MAX_RECONNECT_ATTEMPTS" default:"5"`

	// Database, empty disables snapshots
	DBPath string `envconfig:"DB_PATH" default:"./data/coinchart.db"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (cfg *Config) Validate() error {
	var errs []string

	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))
	if cfg.DataSource != SourceCoinGecko && cfg.DataSource != SourceBinance {
		errs = append(errs, fmt.Sprintf("DATA_SOURCE must be %q or %q", SourceCoinGecko, SourceBinance))
	}
	if cfg.DataSource == SourceCoinGecko {
		if _, err := url.ParseRequestURI(cfg.CoinGeckoBaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid COINGECKO_BASE_URL: %v", err))
		}
	}
	if u, err := url.Parse(cfg.CoinGeckoWebSocketURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "COINGECKO_WEBSOCKET_URL must be a ws:// or wss:// URL")
	}

	cfg.Asset = strings.TrimSpace(cfg.Asset)
	if cfg.Asset == "" {
		errs = append(errs, "ASSET must be set")
	}
	if p, err := domain.ParsePeriod(string(cfg.Period)); err != nil {
		errs = append(errs, fmt.Sprintf("invalid PERIOD: %v", err))
	} else {
		cfg.Period = p
	}
	if !cfg.LiveInterval.Valid() {
		errs = append(errs, fmt.Sprintf("LIVE_INTERVAL must be %q or %q", domain.LiveInterval1s, domain.LiveInterval1m))
	}
	if cfg.TradeHistorySize <= 0 {
		errs = append(errs, "TRADE_HISTORY_SIZE must be positive")
	}

	if cfg.FetchTimeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be positive")
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, "CACHE_TTL cannot be negative")
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid REFRESH_SCHEDULE: %v", err))
		}
	}

	if cfg.ReconnectDelay <= 0 {
		errs = append(errs, "RECONNECT_DELAY must be positive")
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectDelay {
		errs = append(errs, "RECONNECT_MAX_DELAY must not be less than RECONNECT_DELAY")
	}
	if cfg.MaxReconnectAttempts <= 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS must be positive")
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.LogLevel)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, "LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// Selection returns the configured initial chart selection.
func (cfg *Config) Selection() domain.Selection {
	return domain.Selection{AssetID: cfg.Asset, Period: cfg.Period}
}
