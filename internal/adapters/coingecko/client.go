package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCacheTTL = 60 * time.Second

	demoKeyHeader = "x-cg-demo-api-key"
	vsCurrency    = "usd"
	maxErrorBody  = 256
)

// Client implements ports.CandleSource over the CoinGecko OHLC endpoint.
// Successful responses are cached per asset and lookback for CacheTTL.
type Client struct {
	http   *resty.Client
	logger ports.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Config holds configuration for the CoinGecko REST adapter.
type Config struct {
	BaseURL  string
	APIKey   string        // Optional demo key
	CacheTTL time.Duration // Zero disables caching, negative selects DefaultCacheTTL
	Logger   ports.Logger
}

type cacheEntry struct {
	candles []domain.Candle
	expires time.Time
}

// New creates a CoinGecko client. It never retries; the caller decides on refreshes.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CoinGecko client")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ttl := cfg.CacheTTL
	if ttl < 0 {
		ttl = DefaultCacheTTL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.APIKey != "" {
		httpClient.SetHeader(demoKeyHeader, cfg.APIKey)
	}

	cfg.Logger.Info(context.Background(), "CoinGecko client configured", map[string]interface{}{"baseURL": baseURL, "cacheTTL": ttl.String()})
	return &Client{
		http:   httpClient,
		logger: cfg.Logger,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// handleError maps transport and decoding failures to FetchFailed with a reason.
func (c *Client) handleError(ctx context.Context, err error, operation string, fields map[string]interface{}) error {
	if err == nil {
		return nil
	}
	fields["operation"] = operation
	fields["originalError"] = err.Error()

	var reason error
	var netErr net.Error
	switch {
	case errors.Is(err, ports.ErrHTTPStatus), errors.Is(err, ports.ErrParse):
		reason = nil
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		reason = ports.ErrTimeout
	default:
		reason = ports.ErrNetwork
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	if reason == nil {
		return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrFetchFailed, err)
	}
	return fmt.Errorf("%s failed: %w: %w: %w", operation, ports.ErrFetchFailed, reason, err)
}

// FetchCandles returns OHLC candles for the period's lookback. CoinGecko picks the
// granularity from the day count: 30 minutes for 1-2 days, 4 hours for 3-30 days.
func (c *Client) FetchCandles(ctx context.Context, assetID string, period domain.PeriodConfig) ([]domain.Candle, error) {
	op := "FetchCandles"
	assetID = strings.TrimSpace(assetID)
	fields := map[string]interface{}{"asset": assetID, "days": period.Days}
	key := cacheKey(assetID, period.Days)

	if candles, ok := c.cached(key); ok {
		c.logger.Debug(ctx, "Serving OHLC from cache", fields)
		return candles, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", assetID).
		SetQueryParams(map[string]string{
			"vs_currency": vsCurrency,
			"days":        strconv.Itoa(period.Days),
			"precision":   "full",
		}).
		Get("/coins/{id}/ohlc")
	if err != nil {
		return nil, c.handleError(ctx, err, op, fields)
	}
	if resp.IsError() {
		body := string(resp.Body())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		statusErr := &ports.HTTPStatusError{StatusCode: resp.StatusCode(), Body: body}
		fields["status"] = resp.StatusCode()
		return nil, c.handleError(ctx, fmt.Errorf("%w: %w", ports.ErrHTTPStatus, statusErr), op, fields)
	}

	candles, err := parseOHLC(resp.Body())
	if err != nil {
		return nil, c.handleError(ctx, err, op, fields)
	}

	c.store(key, candles)
	fields["count"] = len(candles)
	c.logger.Debug(ctx, "Fetched OHLC", fields)
	return cloneCandles(candles), nil
}

// parseOHLC decodes [[ms, open, high, low, close], ...].
func parseOHLC(body []byte) ([]domain.Candle, error) {
	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrParse, err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: row %d has %d fields, want 5", ports.ErrParse, i, len(row))
		}
		var vals [5]float64
		for j := range vals {
			v, err := row[j].Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: row %d field %d: %w", ports.ErrParse, i, j, err)
			}
			vals[j] = v
		}
		candles = append(candles, domain.Candle{
			Time:  int64(vals[0]) / 1000,
			Open:  vals[1],
			High:  vals[2],
			Low:   vals[3],
			Close: vals[4],
		})
	}
	return candles, nil
}

func cacheKey(assetID string, days int) string {
	return strings.ToLower(assetID) + "|" + strconv.Itoa(days)
}

func (c *Client) cached(key string) ([]domain.Candle, bool) {
	if c.ttl == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return cloneCandles(entry.candles), true
}

func (c *Client) store(key string, candles []domain.Candle) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{candles: cloneCandles(candles), expires: c.now().Add(c.ttl)}
}

// Purge drops every cached response.
func (c *Client) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

func cloneCandles(in []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, len(in))
	copy(out, in)
	return out
}

var _ ports.CandleSource = (*Client)(nil)
