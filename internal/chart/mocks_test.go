package chart

import (
	"context"
	"sync"

	"coinchart/internal/domain"
)

type mockLogger struct {
	mu       sync.Mutex
	debugMsg []string
	warnMsg  []string
	errorMsg []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsg = append(m.debugMsg, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsg = append(m.warnMsg, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsg = append(m.errorMsg, msg)
}

type mockSink struct {
	replaces [][]domain.Candle
	upserts  []domain.Candle
}

func (m *mockSink) OnReplace(series []domain.Candle) { m.replaces = append(m.replaces, series) }
func (m *mockSink) OnUpsert(c domain.Candle)         { m.upserts = append(m.upserts, c) }

func candle(t int64, o, h, l, c float64) domain.Candle {
	return domain.Candle{Time: t, Open: o, High: h, Low: l, Close: c}
}
