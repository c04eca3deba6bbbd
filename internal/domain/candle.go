package domain

import "math"

// Candle represents a single OHLC bucket of a chart series.
type Candle struct {
	Time  int64   `json:"time" yaml:"time" parquet:"time"`    // Bucket start, unix seconds, aligned to the period's candle size
	Open  float64 `json:"open" yaml:"open" parquet:"open"`    // Opening price
	High  float64 `json:"high" yaml:"high" parquet:"high"`    // Highest price
	Low   float64 `json:"low" yaml:"low" parquet:"low"`       // Lowest price
	Close float64 `json:"close" yaml:"close" parquet:"close"` // Closing (latest) price
}

// NewPriceCandle creates a flat candle from a single price observation.
func NewPriceCandle(t int64, price float64) Candle {
	return Candle{Time: t, Open: price, High: price, Low: price, Close: price}
}

// Valid reports whether the candle satisfies low <= open,close <= high.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Low <= math.Min(c.Open, c.Close) && c.High >= math.Max(c.Open, c.Close)
}

// Merge folds a newer update for the same bucket into c.
// Open is kept, High and Low widen, Close takes the update's value.
func (c Candle) Merge(update Candle) Candle {
	return Candle{
		Time:  c.Time,
		Open:  c.Open,
		High:  math.Max(c.High, update.High),
		Low:   math.Min(c.Low, update.Low),
		Close: update.Close,
	}
}

// AlignTime floors a unix-seconds timestamp to the start of its bucket.
func AlignTime(ts, bucketSeconds int64) int64 {
	if bucketSeconds <= 0 {
		return ts
	}
	aligned := (ts / bucketSeconds) * bucketSeconds
	if ts < 0 && ts%bucketSeconds != 0 {
		aligned -= bucketSeconds
	}
	return aligned
}
