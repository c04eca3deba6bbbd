package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"coinchart/internal/domain"
	"coinchart/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultQuote = "USDT"
)

// Well-known asset ids mapped to their futures base symbol.
var baseSymbols = map[string]string{
	"bitcoin":     "BTC",
	"ethereum":    "ETH",
	"solana":      "SOL",
	"binancecoin": "BNB",
	"ripple":      "XRP",
	"cardano":     "ADA",
	"dogecoin":    "DOGE",
	"tron":        "TRX",
	"avalanche-2": "AVAX",
	"chainlink":   "LINK",
	"polkadot":    "DOT",
	"litecoin":    "LTC",
}

// Kline intervals keyed by candle size in seconds.
var klineIntervals = map[int64]string{
	60:    "1m",
	300:   "5m",
	900:   "15m",
	1800:  "30m",
	3600:  "1h",
	14400: "4h",
	86400: "1d",
}

// Client implements ports.CandleSource over Binance USD-M futures klines.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	quote         string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	Quote      string // Quote asset appended to symbols, defaults to USDT
	Logger     ports.Logger
}

// New creates a new Binance client adapter. Klines are a public endpoint, so no keys are needed.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient("", "")
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	quote := strings.ToUpper(cfg.Quote)
	if quote == "" {
		quote = defaultQuote
	}
	return &Client{futuresClient: client, logger: cfg.Logger, quote: quote}, nil
}

// handleError translates Binance and transport errors into FetchFailed with a reason.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var reason error
	var apiErr *common.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		reason = ports.ErrHTTPStatus
	case errors.Is(err, context.DeadlineExceeded):
		reason = ports.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = ports.ErrTimeout
	case errors.Is(err, ports.ErrParse):
		reason = ports.ErrParse
	default:
		reason = ports.ErrNetwork
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	if errors.Is(err, reason) {
		return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrFetchFailed, err)
	}
	return fmt.Errorf("%s failed: %w: %w: %w", operation, ports.ErrFetchFailed, reason, err)
}

// Symbol returns the futures symbol for an asset id, e.g. bitcoin -> BTCUSDT.
func (c *Client) Symbol(assetID string) string {
	id := strings.ToLower(strings.TrimSpace(assetID))
	base, ok := baseSymbols[id]
	if !ok {
		base = strings.ToUpper(id)
	}
	if strings.HasSuffix(base, c.quote) {
		return base
	}
	return base + c.quote
}

// FetchCandles retrieves the period's lookback window as klines sized to the period's candle.
func (c *Client) FetchCandles(ctx context.Context, assetID string, period domain.PeriodConfig) ([]domain.Candle, error) {
	op := "FetchCandles"
	interval, ok := klineIntervals[period.CandleSeconds]
	if !ok {
		return nil, c.handleError(ctx, fmt.Errorf("%w: no kline interval for %ds candles", ports.ErrUnknownPeriod, period.CandleSeconds), op)
	}
	symbol := c.Symbol(assetID)

	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(period.MaxCandles()).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		cdl, err := translateBinanceKline(k)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("%w: failed to translate historical kline: %w", ports.ErrParse, err), op)
		}
		candles = append(candles, cdl)
	}

	c.logger.Debug(ctx, "Fetched klines", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(candles)})
	return candles, nil
}

func translateBinanceKline(bk *futures.Kline) (domain.Candle, error) {
	if bk == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}

	return domain.Candle{
		Time:  bk.OpenTime / 1000,
		Open:  open,
		High:  high,
		Low:   low,
		Close: cls,
	}, nil
}

var _ ports.CandleSource = (*Client)(nil)
