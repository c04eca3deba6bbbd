package binanceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinchart/internal/domain"
	"coinchart/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Logger: &mockLogger{}})
	require.NoError(t, err)
	return c
}

func TestClient_Symbol(t *testing.T) {
	c, err := New(Config{Logger: &mockLogger{}})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", c.Symbol("bitcoin"))
	assert.Equal(t, "SOLUSDT", c.Symbol(" Solana "))
	assert.Equal(t, "PEPEUSDT", c.Symbol("pepe"))
	assert.Equal(t, "BTCUSDT", c.Symbol("btcusdt"))

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestClient_FetchCandles(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		gotQuery = map[string]string{
			"symbol":   r.URL.Query().Get("symbol"),
			"interval": r.URL.Query().Get("interval"),
			"limit":    r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1700006400000,"100.0","110.0","95.0","105.0","12.5",1700020799999,"1300.0",42,"6.0","630.0","0"],
			[1700020800000,"105.0","108.0","101.0","102.5","8.0",1700035199999,"820.0",30,"4.0","410.0","0"]
		]`))
	})

	period, _ := domain.LookupPeriod(domain.Period7D)
	candles, err := c.FetchCandles(context.Background(), "bitcoin", period)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"symbol": "BTCUSDT", "interval": "4h", "limit": "42"}, gotQuery)
	assert.Equal(t, []domain.Candle{
		{Time: 1700006400, Open: 100, High: 110, Low: 95, Close: 105},
		{Time: 1700020800, Open: 105, High: 108, Low: 101, Close: 102.5},
	}, candles)
}

func TestClient_FetchCandlesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason error
	}{
		{name: "api error", status: http.StatusBadRequest, body: `{"code":-1121,"msg":"Invalid symbol."}`, reason: ports.ErrHTTPStatus},
		{name: "malformed price", status: http.StatusOK, body: `[[1700006400000,"x","1","1","1","1",1700020799999,"1",1,"1","1","0"]]`, reason: ports.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			period, _ := domain.LookupPeriod(domain.Period1D)
			_, err := c.FetchCandles(context.Background(), "bitcoin", period)
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrFetchFailed)
			assert.ErrorIs(t, err, tt.reason)
		})
	}
}
