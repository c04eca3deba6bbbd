package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinchart/internal/ports"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestRefreshScheduler(t *testing.T) {
	target := &countingRefresher{}
	s, err := NewRefreshScheduler(context.Background(), "@every 1s", target, &mockLogger{})
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	after := target.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, target.calls.Load(), "no refresh after Stop")
}

func TestNewRefreshScheduler_InvalidSpec(t *testing.T) {
	_, err := NewRefreshScheduler(context.Background(), "every minute", &countingRefresher{}, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewRefreshScheduler(context.Background(), "@every 1m", nil, &mockLogger{})
	assert.Error(t, err)
}
