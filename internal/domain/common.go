package domain

// TradeSide represents the aggressor side of a trade.
type TradeSide string

const (
	SideBuy     TradeSide = "buy"
	SideSell    TradeSide = "sell"
	SideUnknown TradeSide = ""
)

// LiveInterval is the update interval requested from the streaming feed.
type LiveInterval string

const (
	LiveInterval1s LiveInterval = "1s"
	LiveInterval1m LiveInterval = "1m"
)

// Valid reports whether the interval is one the feed accepts.
func (i LiveInterval) Valid() bool {
	return i == LiveInterval1s || i == LiveInterval1m
}
