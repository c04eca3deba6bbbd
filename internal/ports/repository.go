package ports

import (
	"context"

	"coinchart/internal/domain"
)

// SnapshotRepository persists the last applied historical series per selection,
// so a chart can be pre-seeded on start before the first fetch lands.
type SnapshotRepository interface {
	// SaveSeries replaces the stored series for the selection.
	SaveSeries(ctx context.Context, sel domain.Selection, candles []domain.Candle) error
	// LoadSeries returns the stored series ordered by time.
	// Returns nil, nil if nothing is stored for the selection.
	LoadSeries(ctx context.Context, sel domain.Selection) ([]domain.Candle, error)
}
