package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"coinchart/internal/chart"
	"coinchart/internal/domain"
	"coinchart/internal/feed"
	"coinchart/internal/ports"
)

const snapshotSaveTimeout = 5 * time.Second

// LiveFeed is the streaming side the controller drives. *feed.Feed implements it.
type LiveFeed interface {
	Start(ctx context.Context) error
	Subscribe(sub feed.Subscription) error
	Close() error
	State() feed.State
}

// Config holds the controller's initial state and policies.
type Config struct {
	InitialSelection   domain.Selection
	LiveInterval       domain.LiveInterval // Defaults to 1s
	TickerUpdatesChart bool                // Ticker prices also upsert the open candle
	TradeHistorySize   int                 // Defaults to chart.DefaultTradeHistory
	Seed               []domain.Candle     // Optional series shown before the first fetch lands
	OnStatus           func(Status)        // Optional, called from the event loop after every state change
}

// Status is a point-in-time view of the controller for display.
type Status struct {
	Selection       domain.Selection
	LiveInterval    domain.LiveInterval
	Token           chart.RequestToken
	Pending         bool  // A historical load for the current token is in flight
	LastError       error // Last historical failure for the current selection
	Ticker          domain.Ticker
	HasTicker       bool
	FeedState       feed.State
	LiveUnavailable bool
	Trades          []domain.LiveTick // Newest first
	Candles         int
	Dropped         int
}

type commandKind int

const (
	cmdSetAsset commandKind = iota
	cmdSetPeriod
	cmdSetInterval
	cmdRefresh
)

type command struct {
	kind     commandKind
	asset    string
	period   domain.Period
	interval domain.LiveInterval
	reply    chan error
}

// Controller is the single source of truth for the chart selection. All state
// below the loop-owned marker is only touched by the Run goroutine; historical
// results and live events are posted back to it, and stale historical results
// are discarded by token comparison.
type Controller struct {
	cfg        Config
	logger     ports.Logger
	loader     *chart.Loader
	store      *chart.Store
	feed       LiveFeed
	feedEvents <-chan feed.Event
	repo       ports.SnapshotRepository // Optional
	commands   chan command
	done       chan struct{}
	running    atomic.Bool
	sessionID  string
	saves      sync.WaitGroup

	// loop-owned
	selection   domain.Selection
	interval    domain.LiveInterval
	token       chart.RequestToken
	pending     bool
	lastErr     error
	ticker      domain.Ticker
	hasTicker   bool
	feedState   feed.State
	unavailable bool
	trades      *chart.TradeBuffer
	queued      []domain.Candle

	// published snapshots for readers outside the loop
	mu        sync.RWMutex
	status    Status
	published []domain.Candle
}

// NewController wires the controller. repo may be nil to disable snapshots.
func NewController(
	cfg Config,
	logger ports.Logger,
	loader *chart.Loader,
	store *chart.Store,
	liveFeed LiveFeed,
	feedEvents <-chan feed.Event,
	repo ports.SnapshotRepository,
) (*Controller, error) {
	if logger == nil || loader == nil || store == nil || liveFeed == nil || feedEvents == nil {
		return nil, fmt.Errorf("missing required dependencies for Controller")
	}
	cfg.InitialSelection.AssetID = strings.TrimSpace(cfg.InitialSelection.AssetID)
	if cfg.InitialSelection.AssetID == "" {
		return nil, fmt.Errorf("initial selection: %w", ports.ErrInvalidAsset)
	}
	if _, ok := domain.LookupPeriod(cfg.InitialSelection.Period); !ok {
		return nil, fmt.Errorf("initial selection: %w: %q", ports.ErrUnknownPeriod, cfg.InitialSelection.Period)
	}
	if cfg.LiveInterval == "" {
		cfg.LiveInterval = domain.LiveInterval1s
	}
	if !cfg.LiveInterval.Valid() {
		return nil, fmt.Errorf("%w: %q", ports.ErrInvalidInterval, cfg.LiveInterval)
	}
	if cfg.TradeHistorySize <= 0 {
		cfg.TradeHistorySize = chart.DefaultTradeHistory
	}

	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		loader:     loader,
		store:      store,
		feed:       liveFeed,
		feedEvents: feedEvents,
		repo:       repo,
		commands:   make(chan command),
		done:       make(chan struct{}),
		sessionID:  uuid.NewString(),
		interval:   cfg.LiveInterval,
		trades:     chart.NewTradeBuffer(cfg.TradeHistorySize),
	}
	c.status = Status{Selection: cfg.InitialSelection, LiveInterval: cfg.LiveInterval}
	return c, nil
}

// Run drives the event loop until ctx is cancelled. It seeds the store, starts
// the live feed and issues the initial historical load.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("controller is already running")
	}
	defer close(c.done)

	fields := map[string]interface{}{"session": c.sessionID, "asset": c.cfg.InitialSelection.AssetID, "period": c.cfg.InitialSelection.Period}
	c.logger.Info(ctx, "Starting chart controller", fields)

	c.seed(ctx)
	if err := c.feed.Start(ctx); err != nil {
		c.logger.Error(ctx, err, "Failed to start live feed")
		return fmt.Errorf("failed to start live feed: %w", err)
	}
	if err := c.applySelection(ctx, c.cfg.InitialSelection); err != nil {
		c.feed.Close()
		return fmt.Errorf("failed to issue initial load: %w", err)
	}
	c.publish()

	for {
		// Historical results take priority over live events that are ready in the same turn.
		select {
		case res := <-c.loader.Results():
			c.handleLoadResult(ctx, res)
			c.publish()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return nil
		case cmd := <-c.commands:
			cmd.reply <- c.handleCommand(ctx, cmd)
		case res := <-c.loader.Results():
			c.handleLoadResult(ctx, res)
		case ev := <-c.feedEvents:
			c.handleFeedEvent(ctx, ev)
		}
		c.publish()
	}
}

func (c *Controller) shutdown(ctx context.Context) {
	c.logger.Info(ctx, "Chart controller shutting down", map[string]interface{}{"session": c.sessionID})
	if err := c.feed.Close(); err != nil {
		c.logger.Warn(ctx, "Error closing live feed", map[string]interface{}{"error": err.Error()})
	}
	c.saves.Wait()
	c.logger.Info(ctx, "Chart controller stopped", map[string]interface{}{"session": c.sessionID})
}

// seed pre-populates the store from the configured seed or the persisted snapshot.
func (c *Controller) seed(ctx context.Context) {
	sel := c.cfg.InitialSelection
	period, _ := domain.LookupPeriod(sel.Period)

	candles, source := c.cfg.Seed, "config"
	if len(candles) == 0 && c.repo != nil {
		var err error
		candles, err = c.repo.LoadSeries(ctx, sel)
		if err != nil {
			c.logger.Warn(ctx, "Failed to load series snapshot", map[string]interface{}{"asset": sel.AssetID, "period": sel.Period, "error": err.Error()})
			return
		}
		source = "snapshot"
	}
	if len(candles) == 0 {
		return
	}
	if err := c.store.Replace(ctx, sel, candles, period.MaxCandles()); err != nil {
		c.logger.Warn(ctx, "Ignoring invalid seed series", map[string]interface{}{"source": source, "error": err.Error()})
		return
	}
	c.logger.Info(ctx, "Chart pre-seeded", map[string]interface{}{"source": source, "count": c.store.Len()})
}

// applySelection mints a token for next, starts its load and then re-subscribes the feed.
func (c *Controller) applySelection(ctx context.Context, next domain.Selection) error {
	token, err := c.loader.Load(ctx, next)
	if err != nil {
		return err
	}

	prev := c.selection
	c.selection = next
	c.token = token
	c.pending = true
	c.lastErr = nil
	if prev != next {
		c.queued = c.queued[:0]
	}
	if prev.AssetID != next.AssetID {
		c.trades.Reset()
		c.ticker, c.hasTicker = domain.Ticker{}, false
	}

	if err := c.feed.Subscribe(feed.Subscription{AssetID: next.AssetID, Interval: c.interval}); err != nil {
		// The feed keeps the subscription desired and retries on reconnect.
		c.logger.Warn(ctx, "Live feed re-subscription failed", map[string]interface{}{"asset": next.AssetID, "error": err.Error()})
	}
	c.logger.Info(ctx, "Selection applied", map[string]interface{}{"asset": next.AssetID, "period": next.Period, "token": token})
	return nil
}

func (c *Controller) handleCommand(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdSetAsset:
		if cmd.asset == c.selection.AssetID {
			return nil
		}
		return c.applySelection(ctx, domain.Selection{AssetID: cmd.asset, Period: c.selection.Period})

	case cmdSetPeriod:
		if cmd.period == c.selection.Period {
			return nil
		}
		return c.applySelection(ctx, domain.Selection{AssetID: c.selection.AssetID, Period: cmd.period})

	case cmdSetInterval:
		if cmd.interval == c.interval {
			return nil
		}
		c.interval = cmd.interval
		if err := c.feed.Subscribe(feed.Subscription{AssetID: c.selection.AssetID, Interval: c.interval}); err != nil {
			c.logger.Warn(ctx, "Live feed re-subscription failed", map[string]interface{}{"interval": c.interval, "error": err.Error()})
		}
		return nil

	case cmdRefresh:
		return c.applySelection(ctx, c.selection)

	default:
		return fmt.Errorf("unknown command %d", cmd.kind)
	}
}

func (c *Controller) handleLoadResult(ctx context.Context, res chart.LoadResult) {
	if res.Token != c.token || !c.loader.IsCurrent(res.Token) {
		c.logger.Debug(ctx, "Discarded stale historical result", map[string]interface{}{
			"token":   res.Token,
			"current": c.token,
			"asset":   res.Selection.AssetID,
			"reason":  ports.ErrStaleResult.Error(),
		})
		return
	}

	c.pending = false
	if res.Err != nil {
		c.lastErr = res.Err
		c.logger.Warn(ctx, "Historical fetch failed, keeping previous series", map[string]interface{}{
			"asset":  res.Selection.AssetID,
			"period": res.Selection.Period,
			"error":  res.Err.Error(),
		})
		return
	}

	period, _ := domain.LookupPeriod(res.Selection.Period)
	if err := c.store.Replace(ctx, res.Selection, res.Candles, period.MaxCandles()); err != nil {
		c.lastErr = err
		return
	}
	c.lastErr = nil
	c.logger.Info(ctx, "Historical series applied", map[string]interface{}{
		"asset":   res.Selection.AssetID,
		"period":  res.Selection.Period,
		"count":   c.store.Len(),
		"elapsed": res.Elapsed.String(),
	})

	c.replayQueued(ctx)
	c.saveSnapshot(ctx, res.Selection, res.Candles)
}

func (c *Controller) handleFeedEvent(ctx context.Context, ev feed.Event) {
	if ev.Kind == feed.EventStatus {
		// Status events may arrive out of order; the feed's own state is authoritative.
		c.feedState = c.feed.State()
		switch {
		case c.feedState == feed.Connected || c.feedState == feed.Subscribed:
			c.unavailable = false
		case ev.Unavailable:
			c.unavailable = true
		}
		return
	}

	if ev.Asset != "" && ev.Asset != c.selection.AssetID {
		c.logger.Debug(ctx, "Dropped live update for another asset", map[string]interface{}{"asset": ev.Asset, "current": c.selection.AssetID})
		return
	}

	period, _ := domain.LookupPeriod(c.selection.Period)
	var update domain.Candle
	switch ev.Kind {
	case feed.EventTicker:
		c.ticker, c.hasTicker = ev.Ticker, true
		if !c.cfg.TickerUpdatesChart {
			return
		}
		update = domain.NewPriceCandle(domain.AlignTime(ev.Ticker.Time, period.CandleSeconds), ev.Ticker.Price)
	case feed.EventTrade:
		c.trades.Push(ev.Trade)
		update = domain.NewPriceCandle(domain.AlignTime(ev.Trade.Time, period.CandleSeconds), ev.Trade.Price)
	case feed.EventCandle:
		update = ev.Candle
		update.Time = domain.AlignTime(update.Time, period.CandleSeconds)
	default:
		return
	}
	c.applyLive(ctx, update, period)
}

// applyLive upserts a live candle into the current series. While a load is pending,
// or while the store still shows another selection, updates are also queued so the
// historical replace cannot erase them.
func (c *Controller) applyLive(ctx context.Context, update domain.Candle, period domain.PeriodConfig) {
	owned := c.store.Owner() == c.selection
	if c.pending || !owned {
		c.enqueue(update, period.MaxCandles())
	}
	if !owned {
		return
	}
	if _, err := c.store.Upsert(ctx, update); err != nil {
		c.logger.Warn(ctx, "Rejected live candle update", map[string]interface{}{"time": update.Time, "error": err.Error()})
	}
}

func (c *Controller) enqueue(update domain.Candle, limit int) {
	if limit <= 0 {
		limit = 1
	}
	if n := len(c.queued); n > 0 && c.queued[n-1].Time == update.Time {
		c.queued[n-1] = c.queued[n-1].Merge(update)
		return
	}
	c.queued = append(c.queued, update)
	if len(c.queued) > limit {
		c.queued = append(c.queued[:0], c.queued[len(c.queued)-limit:]...)
	}
}

func (c *Controller) replayQueued(ctx context.Context) {
	if len(c.queued) == 0 {
		return
	}
	applied := 0
	for _, update := range c.queued {
		res, err := c.store.Upsert(ctx, update)
		if err == nil && res != chart.Dropped {
			applied++
		}
	}
	c.logger.Debug(ctx, "Replayed queued live updates", map[string]interface{}{"queued": len(c.queued), "applied": applied})
	c.queued = c.queued[:0]
}

func (c *Controller) saveSnapshot(ctx context.Context, sel domain.Selection, candles []domain.Candle) {
	if c.repo == nil {
		return
	}
	series := make([]domain.Candle, len(candles))
	copy(series, candles)

	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotSaveTimeout)
		defer cancel()
		if err := c.repo.SaveSeries(saveCtx, sel, series); err != nil {
			c.logger.Error(saveCtx, err, "Failed to save series snapshot", map[string]interface{}{"asset": sel.AssetID, "period": sel.Period})
		}
	}()
}

func (c *Controller) publish() {
	st := Status{
		Selection:       c.selection,
		LiveInterval:    c.interval,
		Token:           c.token,
		Pending:         c.pending,
		LastError:       c.lastErr,
		Ticker:          c.ticker,
		HasTicker:       c.hasTicker,
		FeedState:       c.feedState,
		LiveUnavailable: c.unavailable,
		Trades:          c.trades.Recent(),
		Candles:         c.store.Len(),
		Dropped:         c.store.Dropped(),
	}
	candles := c.store.Candles()

	c.mu.Lock()
	c.status = st
	c.published = candles
	c.mu.Unlock()

	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(st)
	}
}

// Status returns the latest published status.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	st.Trades = append([]domain.LiveTick(nil), c.status.Trades...)
	return st
}

// Candles returns the render-ready series as of the last event.
func (c *Controller) Candles() []domain.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Candle(nil), c.published...)
}

// SetAsset switches the chart to another asset, keeping the period.
func (c *Controller) SetAsset(ctx context.Context, assetID string) error {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return ports.ErrInvalidAsset
	}
	return c.send(ctx, command{kind: cmdSetAsset, asset: assetID})
}

// SetPeriod switches the chart to another period, keeping the asset.
func (c *Controller) SetPeriod(ctx context.Context, p domain.Period) error {
	if _, ok := domain.LookupPeriod(p); !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownPeriod, p)
	}
	return c.send(ctx, command{kind: cmdSetPeriod, period: p})
}

// SetLiveInterval changes the streaming interval without reloading history.
func (c *Controller) SetLiveInterval(ctx context.Context, i domain.LiveInterval) error {
	if !i.Valid() {
		return fmt.Errorf("%w: %q", ports.ErrInvalidInterval, i)
	}
	return c.send(ctx, command{kind: cmdSetInterval, interval: i})
}

// Refresh reloads history for the current selection under a new token.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdRefresh})
}

func (c *Controller) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ports.ErrControllerStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ports.ErrControllerStopped
	}
}

// IsStopped reports whether Run has returned.
func (c *Controller) IsStopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

var _ LiveFeed = (*feed.Feed)(nil)
