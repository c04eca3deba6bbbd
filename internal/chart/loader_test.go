package chart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

// gatedSource blocks each fetch until the test releases the asset's gate.
type gatedSource struct {
	gates   map[string]chan struct{}
	candles map[string][]domain.Candle
	errs    map[string]error
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		gates:   map[string]chan struct{}{},
		candles: map[string][]domain.Candle{},
		errs:    map[string]error{},
	}
}

func (g *gatedSource) gate(asset string) chan struct{} {
	ch := make(chan struct{})
	g.gates[asset] = ch
	return ch
}

func (g *gatedSource) FetchCandles(ctx context.Context, assetID string, period domain.PeriodConfig) ([]domain.Candle, error) {
	if gate, ok := g.gates[assetID]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.candles[assetID], g.errs[assetID]
}

func receive(t *testing.T, l *Loader) LoadResult {
	t.Helper()
	select {
	case res := <-l.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load result")
		return LoadResult{}
	}
}

func TestLoader_TokensAreMonotonicAndOnlyLatestIsCurrent(t *testing.T) {
	src := newGatedSource()
	loader, err := NewLoader(src, &mockLogger{}, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	t1, err := loader.Load(ctx, domain.Selection{AssetID: "bitcoin", Period: domain.Period7D})
	require.NoError(t, err)
	t2, err := loader.Load(ctx, domain.Selection{AssetID: "solana", Period: domain.Period7D})
	require.NoError(t, err)

	assert.Greater(t, t2, t1)
	assert.False(t, loader.IsCurrent(t1))
	assert.True(t, loader.IsCurrent(t2))
	assert.False(t, loader.IsCurrent(0))
	receive(t, loader)
	receive(t, loader)
}

func TestLoader_OutOfOrderResolutionKeepsTokens(t *testing.T) {
	src := newGatedSource()
	btcGate := src.gate("bitcoin")
	src.candles["bitcoin"] = []domain.Candle{candle(0, 1, 1, 1, 1)}
	src.candles["solana"] = []domain.Candle{candle(0, 2, 2, 2, 2)}
	loader, err := NewLoader(src, &mockLogger{}, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	btcToken, err := loader.Load(ctx, domain.Selection{AssetID: "bitcoin", Period: domain.Period7D})
	require.NoError(t, err)
	solToken, err := loader.Load(ctx, domain.Selection{AssetID: "solana", Period: domain.Period7D})
	require.NoError(t, err)

	first := receive(t, loader)
	assert.Equal(t, solToken, first.Token)
	assert.True(t, loader.IsCurrent(first.Token))

	close(btcGate)
	second := receive(t, loader)
	assert.Equal(t, btcToken, second.Token)
	assert.Equal(t, "bitcoin", second.Selection.AssetID)
	assert.False(t, loader.IsCurrent(second.Token), "late bitcoin result must be stale")
	loader.Wait()
}

func TestLoader_NormalizesCandles(t *testing.T) {
	src := newGatedSource()
	const h4 = 4 * 3600
	src.candles["bitcoin"] = []domain.Candle{
		candle(2*h4+60, 3, 3, 3, 3),
		candle(h4, 1, 1, 1, 1),
		candle(h4+30, 2, 2, 2, 2),
	}
	loader, err := NewLoader(src, &mockLogger{}, time.Second)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), domain.Selection{AssetID: "bitcoin", Period: domain.Period7D})
	require.NoError(t, err)
	res := receive(t, loader)
	require.NoError(t, res.Err)
	assert.Equal(t, []domain.Candle{candle(h4, 2, 2, 2, 2), candle(2*h4, 3, 3, 3, 3)}, res.Candles)
}

func TestLoader_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name       string
		sourceErr  error
		candles    []domain.Candle
		gate       bool
		wantReason error
	}{
		{
			name:       "adapter error with reason is passed through",
			sourceErr:  fmt.Errorf("%w: %w: %w", ports.ErrFetchFailed, ports.ErrHTTPStatus, &ports.HTTPStatusError{StatusCode: 500}),
			wantReason: ports.ErrHTTPStatus,
		},
		{
			name:       "bare error becomes a network failure",
			sourceErr:  errors.New("dial tcp: connection refused"),
			wantReason: ports.ErrNetwork,
		},
		{
			name:       "deadline becomes a timeout",
			gate:       true,
			wantReason: ports.ErrTimeout,
		},
		{
			name:       "malformed candles become a parse failure",
			candles:    []domain.Candle{candle(0, 10, 1, 1, 1)},
			wantReason: ports.ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newGatedSource()
			if tt.gate {
				src.gate("bitcoin")
			}
			src.errs["bitcoin"] = tt.sourceErr
			src.candles["bitcoin"] = tt.candles
			loader, err := NewLoader(src, &mockLogger{}, 20*time.Millisecond)
			require.NoError(t, err)

			_, err = loader.Load(context.Background(), domain.Selection{AssetID: "bitcoin", Period: domain.Period1D})
			require.NoError(t, err)
			res := receive(t, loader)
			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, ports.ErrFetchFailed)
			assert.ErrorIs(t, res.Err, tt.wantReason)
			assert.Nil(t, res.Candles)
		})
	}
}

func TestLoader_RejectsBadSelection(t *testing.T) {
	loader, err := NewLoader(newGatedSource(), &mockLogger{}, 0)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), domain.Selection{AssetID: "bitcoin", Period: "5Y"})
	assert.ErrorIs(t, err, ports.ErrUnknownPeriod)
	_, err = loader.Load(context.Background(), domain.Selection{Period: domain.Period1D})
	assert.ErrorIs(t, err, ports.ErrInvalidAsset)
	assert.Equal(t, RequestToken(0), loader.Current(), "rejected loads must not mint tokens")
}
