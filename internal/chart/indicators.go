package chart

import (
	"errors"
	"fmt"
	"math"

	"coinchart/internal/domain"
)

// DefaultOverlayPeriod is the lookback used for the status overlay.
const DefaultOverlayPeriod = 14

// ErrInsufficientData is returned when a series is shorter than an indicator's lookback.
var ErrInsufficientData = errors.New("not enough candles for indicator")

// Overlay holds indicator values computed over a series' closes.
type Overlay struct {
	Period int
	SMA    float64
	EMA    float64
	RSI    float64 // Wilder's smoothing, 0..100
	ATR    float64
}

// ComputeOverlay computes every indicator over the same lookback.
func ComputeOverlay(series []domain.Candle, period int) (Overlay, error) {
	o := Overlay{Period: period}
	var err error
	if o.SMA, err = SMA(series, period); err != nil {
		return Overlay{}, err
	}
	if o.EMA, err = EMA(series, period); err != nil {
		return Overlay{}, err
	}
	if o.RSI, err = RSI(series, period); err != nil {
		return Overlay{}, err
	}
	if o.ATR, err = ATR(series, period); err != nil {
		return Overlay{}, err
	}
	return o, nil
}

func checkLookback(name string, series []domain.Candle, period, need int) error {
	if period <= 0 {
		return fmt.Errorf("%s period must be positive, got %d", name, period)
	}
	if len(series) < need {
		return fmt.Errorf("%w: %s(%d) needs %d, got %d", ErrInsufficientData, name, period, need, len(series))
	}
	return nil
}

// SMA is the mean close of the last period candles.
func SMA(series []domain.Candle, period int) (float64, error) {
	if err := checkLookback("SMA", series, period, period); err != nil {
		return 0, err
	}
	total := 0.0
	for _, c := range series[len(series)-period:] {
		total += c.Close
	}
	return total / float64(period), nil
}

// EMA seeds with the SMA of the first period closes and smooths over the rest.
func EMA(series []domain.Candle, period int) (float64, error) {
	if err := checkLookback("EMA", series, period, period); err != nil {
		return 0, err
	}
	ema, _ := SMA(series[:period], period)
	k := 2.0 / float64(period+1)
	for _, c := range series[period:] {
		ema = (c.Close-ema)*k + ema
	}
	return ema, nil
}

// RSI uses Wilder's smoothing. A flat series is 50, a gains-only series 100.
func RSI(series []domain.Candle, period int) (float64, error) {
	if err := checkLookback("RSI", series, period, period+1); err != nil {
		return 0, err
	}
	p := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		if d := series[i].Close - series[i-1].Close; d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(series); i++ {
		d := series[i].Close - series[i-1].Close
		gain, loss := math.Max(d, 0), math.Max(-d, 0)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	return math.Min(math.Max(rsi, 0), 100), nil
}

// ATR is the Wilder-smoothed average true range.
func ATR(series []domain.Candle, period int) (float64, error) {
	if err := checkLookback("ATR", series, period, period+1); err != nil {
		return 0, err
	}
	trueRange := func(i int) float64 {
		c := series[i]
		if i == 0 {
			return c.High - c.Low
		}
		prev := series[i-1].Close
		return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRange(i)
	}
	atr /= float64(period)
	for i := period; i < len(series); i++ {
		atr = (atr*float64(period-1) + trueRange(i)) / float64(period)
	}
	return atr, nil
}
