package chart

import "coinchart/internal/domain"

// DefaultTradeHistory is the number of recent trades kept for display.
const DefaultTradeHistory = 20

// TradeBuffer is a fixed-capacity ring of the most recent trades.
type TradeBuffer struct {
	buf  []domain.LiveTick
	next int
	size int
}

// NewTradeBuffer creates a ring holding up to capacity trades.
func NewTradeBuffer(capacity int) *TradeBuffer {
	if capacity <= 0 {
		capacity = DefaultTradeHistory
	}
	return &TradeBuffer{buf: make([]domain.LiveTick, capacity)}
}

// Push records a trade, overwriting the oldest when full.
func (b *TradeBuffer) Push(t domain.LiveTick) {
	b.buf[b.next] = t
	b.next = (b.next + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
}

// Recent returns the stored trades, newest first.
func (b *TradeBuffer) Recent() []domain.LiveTick {
	out := make([]domain.LiveTick, 0, b.size)
	for i := 1; i <= b.size; i++ {
		idx := (b.next - i + len(b.buf)) % len(b.buf)
		out = append(out, b.buf[idx])
	}
	return out
}

// Len returns the number of stored trades.
func (b *TradeBuffer) Len() int { return b.size }

// Cap returns the ring capacity.
func (b *TradeBuffer) Cap() int { return len(b.buf) }

// Reset empties the ring.
func (b *TradeBuffer) Reset() {
	b.next, b.size = 0, 0
}
