package domain

import (
	"fmt"
	"strings"
)

// Period identifies a historical lookback window selectable on the chart.
type Period string

const (
	Period1D Period = "1D"
	Period7D Period = "7D"
	Period1M Period = "1M"
)

// PeriodConfig parametrizes historical loads and live bucketing for a Period.
type PeriodConfig struct {
	Period        Period
	Label         string
	Days          int   // Lookback window passed to the historical source
	CandleSeconds int64 // Size of one candle in seconds
}

// MaxCandles is the number of candles that cover the lookback window.
func (p PeriodConfig) MaxCandles() int {
	if p.CandleSeconds <= 0 {
		return 0
	}
	return int(int64(p.Days) * 86400 / p.CandleSeconds)
}

// Candle sizes follow the OHLC granularity of the upstream API:
// 1-2 days -> 30 minutes, 3-30 days -> 4 hours.
var periodTable = []PeriodConfig{
	{Period: Period1D, Label: "1D", Days: 1, CandleSeconds: 30 * 60},
	{Period: Period7D, Label: "7D", Days: 7, CandleSeconds: 4 * 60 * 60},
	{Period: Period1M, Label: "1M", Days: 30, CandleSeconds: 4 * 60 * 60},
}

// Periods returns the static period table in display order.
func Periods() []PeriodConfig {
	out := make([]PeriodConfig, len(periodTable))
	copy(out, periodTable)
	return out
}

// LookupPeriod returns the configuration for p.
func LookupPeriod(p Period) (PeriodConfig, bool) {
	for _, cfg := range periodTable {
		if cfg.Period == p {
			return cfg, true
		}
	}
	return PeriodConfig{}, false
}

// ParsePeriod converts user input (case-insensitive) into a known Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := LookupPeriod(p); !ok {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}
