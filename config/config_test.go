package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, SourceCoinGecko, cfg.DataSource)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGeckoBaseURL)
	assert.Equal(t, domain.Selection{AssetID: "bitcoin", Period: domain.Period7D}, cfg.Selection())
	assert.Equal(t, domain.LiveInterval1s, cfg.LiveInterval)
	assert.True(t, cfg.TickerUpdatesChart)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 20, cfg.TradeHistorySize)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.Equal(t, "./data/coinchart.db", cfg.DBPath)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATA_SOURCE", "Binance")
	t.Setenv("ASSET", " solana ")
	t.Setenv("PERIOD", "1d")
	t.Setenv("LIVE_INTERVAL", "1m")
	t.Setenv("RECONNECT_DELAY", "1s")
	t.Setenv("RECONNECT_MAX_DELAY", "30s")
	t.Setenv("REFRESH_SCHEDULE", "*/5 * * * *")
	t.Setenv("DB_PATH", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceBinance, cfg.DataSource)
	assert.Equal(t, domain.Selection{AssetID: "solana", Period: domain.Period1D}, cfg.Selection())
	assert.Equal(t, domain.LiveInterval1m, cfg.LiveInterval)
	assert.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshSchedule)
	assert.Empty(t, cfg.DBPath)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "unknown source", env: map[string]string{"DATA_SOURCE": "kraken"}, wantMsg: "DATA_SOURCE"},
		{name: "unknown period", env: map[string]string{"PERIOD": "2Y"}, wantMsg: "invalid PERIOD"},
		{name: "bad interval", env: map[string]string{"LIVE_INTERVAL": "5m"}, wantMsg: "LIVE_INTERVAL"},
		{name: "empty asset", env: map[string]string{"ASSET": " "}, wantMsg: "ASSET must be set"},
		{name: "bad cron", env: map[string]string{"REFRESH_SCHEDULE": "every minute"}, wantMsg: "REFRESH_SCHEDULE"},
		{name: "max below min delay", env: map[string]string{"RECONNECT_DELAY": "10s", "RECONNECT_MAX_DELAY": "1s"}, wantMsg: "RECONNECT_MAX_DELAY"},
		{name: "ws scheme", env: map[string]string{"COINGECKO_WEBSOCKET_URL": "https://stream.example"}, wantMsg: "COINGECKO_WEBSOCKET_URL"},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "TRACE"}, wantMsg: "LOG_LEVEL"},
		{name: "unparsable duration", env: map[string]string{"FETCH_TIMEOUT": "soon"}, wantMsg: "FETCH_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		DataSource:            SourceCoinGecko,
		CoinGeckoBaseURL:      "https://api.coingecko.com/api/v3",
		CoinGeckoWebSocketURL: "wss://stream.coingecko.com/v1",
		Asset:                 "bitcoin",
		Period:                domain.Period7D,
		LiveInterval:          domain.LiveInterval1s,
		TradeHistorySize:      0,
		FetchTimeout:          0,
		ReconnectDelay:        time.Second,
		ReconnectMaxDelay:     time.Second,
		MaxReconnectAttempts:  1,
		LogLevel:              "info",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADE_HISTORY_SIZE must be positive; FETCH_TIMEOUT must be positive")
}
