package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const (
	// DefaultReconnectDelay is the wait before redialing after a disconnect.
	DefaultReconnectDelay = 3 * time.Second
	// DefaultMaxReconnectAttempts is the number of consecutive failures after
	// which the feed reports live data as unavailable. Retrying continues.
	DefaultMaxReconnectAttempts = 5
)

// State of the streaming connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected // Open, no subscription sent yet
	Subscribed
	Reconnecting // Waiting for the reconnect timer
	Closed       // Torn down, terminal
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription is the single asset/interval pair the feed listens to.
type Subscription struct {
	AssetID  string
	Interval domain.LiveInterval
}

// EventKind discriminates feed events.
type EventKind int

const (
	EventTicker EventKind = iota
	EventTrade
	EventCandle
	EventStatus
)

// Event is a normalized message delivered to the consumer.
type Event struct {
	Kind   EventKind
	Asset  string // Asset tag carried by the message, empty if none
	Ticker domain.Ticker
	Trade  domain.LiveTick
	Candle domain.Candle

	// Status events only
	State       State
	Unavailable bool  // Reconnection has failed MaxReconnectAttempts times in a row
	Err         error // Wraps ports.ErrStream when the status change was caused by a failure
}

// Config holds the feed's collaborators and reconnect policy.
type Config struct {
	Dialer               ports.StreamDialer
	Logger               ports.Logger
	Events               chan<- Event
	ReconnectDelay       time.Duration // Defaults to DefaultReconnectDelay
	ReconnectMaxDelay    time.Duration // Upper bound for the growing delay, defaults to ReconnectDelay (fixed delay)
	MaxReconnectAttempts int           // Defaults to DefaultMaxReconnectAttempts
	Now                  func() time.Time
}

// Feed owns one streaming connection and keeps at most one subscription active on it.
// After a disconnect it redials on a timer and subscribes whatever pair is desired
// at that moment.
type Feed struct {
	dialer      ports.StreamDialer
	logger      ports.Logger
	events      chan<- Event
	maxAttempts int
	now         func() time.Time

	mu       sync.Mutex
	backoff  *backoff.Backoff
	ctx      context.Context
	cancel   context.CancelFunc
	state    State
	desired  *Subscription
	active   *Subscription
	conn     ports.StreamConn
	connID   string
	gen      uint64
	timer    *time.Timer
	failures int
	started  bool
	closed   bool
	done     chan struct{}
}

// New creates a feed in the Disconnected state. Call Start to connect.
func New(cfg Config) (*Feed, error) {
	if cfg.Dialer == nil || cfg.Logger == nil || cfg.Events == nil {
		return nil, fmt.Errorf("dialer, logger and events channel are required for live feed")
	}
	minDelay := cfg.ReconnectDelay
	if minDelay <= 0 {
		minDelay = DefaultReconnectDelay
	}
	maxDelay := cfg.ReconnectMaxDelay
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxReconnectAttempts
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Feed{
		dialer:      cfg.Dialer,
		logger:      cfg.Logger,
		events:      cfg.Events,
		maxAttempts: maxAttempts,
		now:         now,
		backoff:     &backoff.Backoff{Min: minDelay, Max: maxDelay, Factor: 2, Jitter: false},
		state:       Disconnected,
		done:        make(chan struct{}),
	}, nil
}

// Start begins connecting in the background. ctx bounds the feed's lifetime.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ports.ErrFeedClosed
	}
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	go f.connect()
	return nil
}

// Subscribe makes sub the single active subscription. On a live connection the
// previous pair is unsubscribed first. Without one, sub is remembered and sent on
// the next (re)connect. A send failure drops the connection and triggers a reconnect;
// sub stays desired and the error is returned for logging.
func (f *Feed) Subscribe(sub Subscription) error {
	if sub.AssetID == "" {
		return ports.ErrInvalidAsset
	}
	if !sub.Interval.Valid() {
		return fmt.Errorf("%w: %q", ports.ErrInvalidInterval, sub.Interval)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ports.ErrFeedClosed
	}
	desired := sub
	f.desired = &desired

	conn := f.conn
	if conn == nil {
		f.mu.Unlock()
		f.logger.Debug(context.Background(), "Subscription queued until connected", map[string]interface{}{"asset": sub.AssetID, "interval": sub.Interval})
		return nil
	}

	var err error
	if f.active != nil {
		prev := *f.active
		if err = f.sendLocked(actionUnsubscribe, prev); err == nil {
			f.active = nil
			f.state = Connected
		}
	}
	if err == nil {
		if err = f.sendLocked(actionSubscribe, sub); err == nil {
			f.active = &desired
			f.state = Subscribed
		}
	}
	gen := f.gen
	connID := f.connID
	f.mu.Unlock()

	// Subscribe is called by the events consumer, so it never blocks on the events channel.
	if err != nil {
		go f.handleDisconnect(gen, conn, err)
		return err
	}
	f.logger.Info(context.Background(), "Subscribed to live feed", map[string]interface{}{"asset": sub.AssetID, "interval": sub.Interval, "connID": connID})
	go f.emit(Event{Kind: EventStatus, State: Subscribed})
	return nil
}

// sendLocked writes a control frame. Caller holds f.mu and f.conn is non-nil.
func (f *Feed) sendLocked(action string, sub Subscription) error {
	if err := f.conn.Send(newControlMessage(action, sub)); err != nil {
		return fmt.Errorf("%w: %w: sending %s: %w", ports.ErrStream, ports.ErrRemoteClosed, action, err)
	}
	return nil
}

func (f *Feed) connect() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.gen++
	gen := f.gen
	f.state = Connecting
	ctx := f.ctx
	f.mu.Unlock()

	f.emit(Event{Kind: EventStatus, State: Connecting})
	conn, err := f.dialer.Dial(ctx)

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil && ctx.Err() != nil {
		f.state = Disconnected
		f.mu.Unlock()
		f.logger.Info(ctx, "Live feed context done, not reconnecting")
		return
	}
	if err != nil {
		f.mu.Unlock()
		if !errors.Is(err, ports.ErrConnectFailed) {
			err = fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrConnectFailed, err)
		}
		f.handleDisconnect(gen, nil, err)
		return
	}

	f.conn = conn
	f.connID = uuid.NewString()
	f.state = Connected
	connID := f.connID
	var sub *Subscription
	var subErr error
	if f.desired != nil {
		if subErr = f.sendLocked(actionSubscribe, *f.desired); subErr == nil {
			active := *f.desired
			f.active = &active
			f.state = Subscribed
			sub = &active
		}
	}
	recovered := f.failures >= f.maxAttempts
	if subErr == nil {
		f.failures = 0
		f.backoff.Reset()
	}
	state := f.state
	f.mu.Unlock()

	if subErr != nil {
		f.handleDisconnect(gen, conn, subErr)
		return
	}

	fields := map[string]interface{}{"connID": connID, "state": state.String()}
	if sub != nil {
		fields["asset"] = sub.AssetID
		fields["interval"] = sub.Interval
	}
	f.logger.Info(ctx, "Live feed connected", fields)
	if recovered {
		f.logger.Info(ctx, "Live data available again", map[string]interface{}{"connID": connID})
	}
	f.emit(Event{Kind: EventStatus, State: state})

	go f.readLoop(conn, gen)
}

func (f *Feed) readLoop(conn ports.StreamConn, gen uint64) {
	for {
		data, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, ports.ErrStream) {
				err = fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrRemoteClosed, err)
			}
			f.handleDisconnect(gen, conn, err)
			return
		}

		ev, ok, err := decodeMessage(data, f.now().Unix())
		if err != nil {
			f.logger.Warn(context.Background(), "Ignoring malformed live feed message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if !ok {
			continue
		}
		if !f.emit(ev) {
			return
		}
	}
}

// handleDisconnect tears down conn and schedules a reconnect. It is a no-op when
// the feed is closed or conn is no longer the current connection.
func (f *Feed) handleDisconnect(gen uint64, conn ports.StreamConn, cause error) {
	f.mu.Lock()
	if f.closed || gen != f.gen || f.conn != conn || f.state == Reconnecting {
		f.mu.Unlock()
		return
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.active = nil
	f.state = Disconnected
	f.failures++
	failures := f.failures
	unavailable := failures >= f.maxAttempts
	delay := f.backoff.Duration()
	f.state = Reconnecting
	f.timer = time.AfterFunc(delay, func() { f.reconnect(gen) })
	connID := f.connID
	f.mu.Unlock()

	f.logger.Warn(context.Background(), "Live feed disconnected, reconnecting", map[string]interface{}{
		"connID":   connID,
		"error":    cause.Error(),
		"failures": failures,
		"delay":    delay.String(),
	})
	if unavailable {
		f.logger.Error(context.Background(), cause, "Live data unavailable", map[string]interface{}{"failures": failures})
	}
	f.emit(Event{Kind: EventStatus, State: Reconnecting, Unavailable: unavailable, Err: cause})
}

func (f *Feed) reconnect(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.mu.Unlock()
	f.connect()
}

// emit delivers ev unless the feed is closed. Returns false once closed.
func (f *Feed) emit(ev Event) bool {
	select {
	case f.events <- ev:
		return true
	case <-f.done:
		return false
	}
}

// Close tears the feed down: the pending reconnect timer is stopped, the active
// subscription is unsubscribed best effort and the connection closed. No reconnect
// fires afterwards. Close is idempotent.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.state = Closed
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	conn := f.conn
	if conn != nil && f.active != nil {
		_ = f.sendLocked(actionUnsubscribe, *f.active)
	}
	f.conn = nil
	f.active = nil
	if f.cancel != nil {
		f.cancel()
	}
	close(f.done)
	f.mu.Unlock()

	f.logger.Info(context.Background(), "Live feed closed")
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// State returns the current connection state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Active returns the subscription currently established on the connection.
func (f *Feed) Active() (Subscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return Subscription{}, false
	}
	return *f.active, true
}

// Desired returns the subscription the feed will (re)establish.
func (f *Feed) Desired() (Subscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.desired == nil {
		return Subscription{}, false
	}
	return *f.desired, true
}
