package domain

// LiveTick is a single real-time trade or price event from the streaming feed.
type LiveTick struct {
	Asset    string    // Asset tag from the feed, empty if the message carried none
	Price    float64   // Trade or last price
	Time     int64     // Event time, unix seconds
	Side     TradeSide // Aggressor side, empty for ticker updates
	Quantity float64   // Traded quantity, zero for ticker updates
}

// Ticker is the latest price snapshot for the live price display.
type Ticker struct {
	Asset     string
	Price     float64
	Change24h float64 // 24h change in percent
	Time      int64
}
