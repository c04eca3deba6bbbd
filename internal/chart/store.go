package chart

import (
	"context"
	"fmt"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

// UpsertResult describes what Store.Upsert did with a candle.
type UpsertResult int

const (
	Dropped  UpsertResult = iota // Older than the last stored candle, discarded
	Merged                       // Folded into the last (open) candle
	Appended                     // Started a new candle at the tail
)

func (r UpsertResult) String() string {
	switch r {
	case Merged:
		return "merged"
	case Appended:
		return "appended"
	default:
		return "dropped"
	}
}

// Store holds the candle series for exactly one selection and pushes every
// change to the render sink.
// It is not safe for concurrent use; the selection controller owns it.
type Store struct {
	sink    ports.RenderSink
	logger  ports.Logger
	owner   domain.Selection
	candles []domain.Candle
	limit   int // 0 means unbounded
	dropped int
}

// NewStore creates an empty store.
func NewStore(sink ports.RenderSink, logger ports.Logger) (*Store, error) {
	if sink == nil || logger == nil {
		return nil, fmt.Errorf("render sink and logger are required for candle store")
	}
	return &Store{sink: sink, logger: logger}, nil
}

// Replace overwrites the series atomically and notifies the sink with the full series.
// Unsorted input is sorted and duplicate timestamps resolve last write wins.
// A candle violating the OHLC invariant rejects the whole series and leaves the
// store untouched.
func (s *Store) Replace(ctx context.Context, owner domain.Selection, series []domain.Candle, limit int) error {
	normalized, dups, err := NormalizeSeries(series)
	if err != nil {
		s.logger.Error(ctx, err, "Rejected candle series", map[string]interface{}{"asset": owner.AssetID, "period": owner.Period, "count": len(series)})
		return err
	}
	if dups > 0 || !IsSorted(series) {
		s.logger.Warn(ctx, "Candle series was unsorted or had duplicate timestamps, normalized", map[string]interface{}{
			"asset":      owner.AssetID,
			"period":     owner.Period,
			"duplicates": dups,
		})
	}
	if limit > 0 && len(normalized) > limit {
		normalized = normalized[len(normalized)-limit:]
	}

	s.owner = owner
	s.candles = normalized
	s.limit = limit
	s.sink.OnReplace(s.Candles())
	s.logger.Debug(ctx, "Candle series replaced", map[string]interface{}{"asset": owner.AssetID, "period": owner.Period, "count": len(normalized)})
	return nil
}

// Upsert applies a single candle update keyed by time.
// Equal to the last time: merge in place. Later: append (head-trimmed to the limit).
// Earlier: discarded and counted as dropped; this is not an error.
func (s *Store) Upsert(ctx context.Context, c domain.Candle) (UpsertResult, error) {
	if !c.Valid() {
		return Dropped, fmt.Errorf("%w: time %d", ports.ErrInvalidCandle, c.Time)
	}

	n := len(s.candles)
	switch {
	case n == 0 || c.Time > s.candles[n-1].Time:
		s.candles = append(s.candles, c)
		s.trimHead()
		s.sink.OnUpsert(c)
		return Appended, nil
	case c.Time == s.candles[n-1].Time:
		merged := s.candles[n-1].Merge(c)
		s.candles[n-1] = merged
		s.sink.OnUpsert(merged)
		return Merged, nil
	default:
		s.dropped++
		s.logger.Debug(ctx, "Dropped out-of-order candle update", map[string]interface{}{
			"time":     c.Time,
			"lastTime": s.candles[n-1].Time,
			"dropped":  s.dropped,
		})
		return Dropped, nil
	}
}

func (s *Store) trimHead() {
	if s.limit <= 0 || len(s.candles) <= s.limit {
		return
	}
	excess := len(s.candles) - s.limit
	s.candles = append(s.candles[:0], s.candles[excess:]...)
}

// Owner returns the selection the stored series belongs to.
func (s *Store) Owner() domain.Selection { return s.owner }

// Candles returns a copy of the stored series.
func (s *Store) Candles() []domain.Candle {
	out := make([]domain.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Last returns the newest candle, if any.
func (s *Store) Last() (domain.Candle, bool) {
	if len(s.candles) == 0 {
		return domain.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Len returns the number of stored candles.
func (s *Store) Len() int { return len(s.candles) }

// Limit returns the maximum series length, 0 if unbounded.
func (s *Store) Limit() int { return s.limit }

// Dropped returns how many out-of-order updates were discarded.
func (s *Store) Dropped() int { return s.dropped }
