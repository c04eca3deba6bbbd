package chart

import (
	"fmt"
	"sort"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

// NormalizeSeries validates candles and returns a copy sorted ascending by time
// with one candle per timestamp. When a timestamp repeats, the candle that came
// last in the input wins. The number of discarded duplicates is returned.
func NormalizeSeries(series []domain.Candle) ([]domain.Candle, int, error) {
	for i, c := range series {
		if !c.Valid() {
			return nil, 0, fmt.Errorf("%w: candle %d at %d: %w", ports.ErrInvalidSeries, i, c.Time, ports.ErrInvalidCandle)
		}
	}

	sorted := make([]domain.Candle, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	out := sorted[:0]
	dups := 0
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			out[n-1] = c // last write wins
			dups++
			continue
		}
		out = append(out, c)
	}
	return out, dups, nil
}

// AlignSeries floors every candle time to bucketSeconds and normalizes the result.
func AlignSeries(series []domain.Candle, bucketSeconds int64) ([]domain.Candle, int, error) {
	aligned := make([]domain.Candle, len(series))
	for i, c := range series {
		c.Time = domain.AlignTime(c.Time, bucketSeconds)
		aligned[i] = c
	}
	return NormalizeSeries(aligned)
}

// IsSorted reports whether the series is strictly increasing by time.
func IsSorted(series []domain.Candle) bool {
	for i := 1; i < len(series); i++ {
		if series[i].Time <= series[i-1].Time {
			return false
		}
	}
	return true
}
