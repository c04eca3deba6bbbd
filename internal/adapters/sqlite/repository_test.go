package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coinchart/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "coinchart-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func testSeries(start int64, prices ...float64) []domain.Candle {
	out := make([]domain.Candle, len(prices))
	for i, p := range prices {
		out[i] = domain.Candle{Time: start + int64(i)*14400, Open: p, High: p + 1, Low: p - 1, Close: p + 0.5}
	}
	return out
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_SaveAndLoadSeries(t *testing.T) {
	btc7d := domain.Selection{AssetID: "bitcoin", Period: domain.Period7D}
	sol7d := domain.Selection{AssetID: "solana", Period: domain.Period7D}

	tests := []struct {
		name  string
		setup func(*Repository) error
		sel   domain.Selection
		want  []domain.Candle
	}{
		{
			name: "nothing stored",
			sel:  btc7d,
			want: nil,
		},
		{
			name: "round trip keeps order",
			setup: func(r *Repository) error {
				return r.SaveSeries(context.Background(), btc7d, testSeries(1700006400, 100, 101, 102))
			},
			sel:  btc7d,
			want: testSeries(1700006400, 100, 101, 102),
		},
		{
			name: "save replaces previous series",
			setup: func(r *Repository) error {
				if err := r.SaveSeries(context.Background(), btc7d, testSeries(1700006400, 1, 2, 3, 4)); err != nil {
					return err
				}
				return r.SaveSeries(context.Background(), btc7d, testSeries(1800000000, 9))
			},
			sel:  btc7d,
			want: testSeries(1800000000, 9),
		},
		{
			name: "selections are isolated",
			setup: func(r *Repository) error {
				if err := r.SaveSeries(context.Background(), btc7d, testSeries(1700006400, 100)); err != nil {
					return err
				}
				return r.SaveSeries(context.Background(), sol7d, testSeries(1700006400, 20, 21))
			},
			sel:  sol7d,
			want: testSeries(1700006400, 20, 21),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, cleanup := setupTestDB(t)
			defer cleanup()

			if tt.setup != nil {
				require.NoError(t, tt.setup(repo))
			}

			got, err := repo.LoadSeries(context.Background(), tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_DeleteAndListSnapshots(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	btc := domain.Selection{AssetID: "bitcoin", Period: domain.Period1D}
	eth := domain.Selection{AssetID: "ethereum", Period: domain.Period1M}
	require.NoError(t, repo.SaveSeries(ctx, btc, testSeries(1700006400, 1, 2, 3)))
	require.NoError(t, repo.SaveSeries(ctx, eth, testSeries(1700006400, 5)))

	infos, err := repo.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, SnapshotInfo{Selection: btc, Count: 3, First: 1700006400, Last: 1700006400 + 2*14400}, infos[0])
	assert.Equal(t, eth, infos[1].Selection)

	require.NoError(t, repo.DeleteSeries(ctx, btc))
	got, err := repo.LoadSeries(ctx, btc)
	require.NoError(t, err)
	assert.Empty(t, got)

	infos, err = repo.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
