package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"coinchart/internal/domain"
	"coinchart/internal/feed"
	"coinchart/internal/ports"
)

type mockLogger struct {
	mu       sync.Mutex
	debugMsg []string
	warnMsg  []string
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
}

func (m *mockLogger) hasDebug(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.debugMsg {
		if d == msg {
			return true
		}
	}
	return false
}

type mockSink struct {
	mu       sync.Mutex
	replaces [][]domain.Candle
	upserts  []domain.Candle
}

func (m *mockSink) OnReplace(series []domain.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces = append(m.replaces, series)
}

func (m *mockSink) OnUpsert(c domain.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, c)
}

func (m *mockSink) Replaces() [][]domain.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Candle(nil), m.replaces...)
}

// gatedSource serves canned series per asset. Assets with a gate block until it is closed.
type gatedSource struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	candles map[string][]domain.Candle
	errs    map[string]error
	calls   map[string]int
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		gates:   map[string]chan struct{}{},
		candles: map[string][]domain.Candle{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (g *gatedSource) gate(asset string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[asset] = ch
	return ch
}

func (g *gatedSource) set(asset string, candles []domain.Candle, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.candles[asset] = candles
	g.errs[asset] = err
}

func (g *gatedSource) Calls(asset string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[asset]
}

func (g *gatedSource) FetchCandles(ctx context.Context, assetID string, period domain.PeriodConfig) ([]domain.Candle, error) {
	g.mu.Lock()
	g.calls[assetID]++
	gate := g.gates[assetID]
	candles, err := g.candles[assetID], g.errs[assetID]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return candles, err
}

// fakeFeed records subscriptions without any connection behind it.
type fakeFeed struct {
	mu      sync.Mutex
	subs    []feed.Subscription
	state   feed.State
	started bool
	closed  bool
}

func (f *fakeFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.state = feed.Connected
	return nil
}

func (f *fakeFeed) Subscribe(sub feed.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ports.ErrFeedClosed
	}
	f.subs = append(f.subs, sub)
	f.state = feed.Subscribed
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.state = feed.Closed
	return nil
}

func (f *fakeFeed) State() feed.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeFeed) setState(s feed.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeFeed) Subs() []feed.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.Subscription(nil), f.subs...)
}

func (f *fakeFeed) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type mockRepo struct {
	mu    sync.Mutex
	seed  []domain.Candle
	saved map[domain.Selection][]domain.Candle
}

func (m *mockRepo) SaveSeries(ctx context.Context, sel domain.Selection, candles []domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[domain.Selection][]domain.Candle{}
	}
	m.saved[sel] = candles
	return nil
}

func (m *mockRepo) LoadSeries(ctx context.Context, sel domain.Selection) ([]domain.Candle, error) {
	return m.seed, nil
}

func (m *mockRepo) Saved(sel domain.Selection) ([]domain.Candle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.saved[sel]
	return c, ok
}

// controlFrame is the decoded shape of a subscribe/unsubscribe message.
type controlFrame struct {
	Action string `json:"action"`
	Params struct {
		ID       string `json:"id"`
		Interval string `json:"interval"`
	} `json:"params"`
}

// recordingConn captures control frames sent over a stream connection.
type recordingConn struct {
	mu        sync.Mutex
	frames    []controlFrame
	closed    chan struct{}
	closeOnce sync.Once
}

func newRecordingConn() *recordingConn {
	return &recordingConn{closed: make(chan struct{})}
}

func (c *recordingConn) Send(v interface{}) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var f controlFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Receive() ([]byte, error) {
	<-c.closed
	return nil, errors.New("connection closed")
}

func (c *recordingConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *recordingConn) Frames() []controlFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]controlFrame(nil), c.frames...)
}

type recordingDialer struct {
	mu    sync.Mutex
	conns []*recordingConn
}

func (d *recordingDialer) Dial(ctx context.Context) (ports.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := newRecordingConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *recordingDialer) Conn(i int) *recordingConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}
