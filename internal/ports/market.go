package ports

import (
	"context"

	"coinchart/internal/domain"
)

// CandleSource fetches historical candles for an asset over a period's lookback window.
// Implementations must not retry; failures wrap ErrFetchFailed and one reason sentinel.
type CandleSource interface {
	FetchCandles(ctx context.Context, assetID string, period domain.PeriodConfig) ([]domain.Candle, error)
}

// StreamDialer opens connections to the streaming price feed.
type StreamDialer interface {
	// Dial blocks until the connect handshake completes or fails.
	Dial(ctx context.Context) (StreamConn, error)
}

// StreamConn is a single message-oriented streaming connection.
type StreamConn interface {
	// Send encodes v as one JSON message.
	Send(v interface{}) error
	// Receive blocks until the next message arrives or the connection fails.
	Receive() ([]byte, error)
	// Close terminates the connection. Pending Receive calls return an error.
	Close() error
}

// RenderSink consumes chart updates. These are the only notifications the
// controller emits outward.
type RenderSink interface {
	// OnReplace receives the full new series.
	OnReplace(series []domain.Candle)
	// OnUpsert receives a single merged or appended candle.
	OnUpsert(candle domain.Candle)
}
