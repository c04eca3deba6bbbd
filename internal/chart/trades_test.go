package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coinchart/internal/domain"
)

func TestTradeBuffer_KeepsMostRecentNewestFirst(t *testing.T) {
	buf := NewTradeBuffer(3)
	for i := 1; i <= 5; i++ {
		buf.Push(domain.LiveTick{Price: float64(i), Time: int64(i)})
	}

	recent := buf.Recent()
	assert.Len(t, recent, 3)
	assert.Equal(t, []float64{5, 4, 3}, []float64{recent[0].Price, recent[1].Price, recent[2].Price})
	assert.Equal(t, 3, buf.Cap())
}

func TestTradeBuffer_PartialAndReset(t *testing.T) {
	buf := NewTradeBuffer(0)
	assert.Equal(t, DefaultTradeHistory, buf.Cap())
	assert.Empty(t, buf.Recent())

	buf.Push(domain.LiveTick{Price: 1})
	buf.Push(domain.LiveTick{Price: 2})
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, 2.0, buf.Recent()[0].Price)

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.Recent())
}
