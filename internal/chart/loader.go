package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const (
	// DefaultFetchTimeout bounds a single historical fetch.
	DefaultFetchTimeout = 15 * time.Second
	resultsBuffer       = 16
)

// RequestToken identifies one historical load. Tokens increase monotonically;
// only the most recently minted one is current.
type RequestToken uint64

// LoadResult is the outcome of a historical load.
type LoadResult struct {
	Token     RequestToken
	Selection domain.Selection
	Candles   []domain.Candle // Aligned, sorted ascending, one per timestamp
	Err       error           // Wraps ports.ErrFetchFailed on failure
	Elapsed   time.Duration
}

// Loader runs historical fetches and tags every result with the token it was
// issued under. Superseded fetches are not cancelled; their results still
// arrive and are discarded by whoever compares tokens.
type Loader struct {
	source  ports.CandleSource
	logger  ports.Logger
	timeout time.Duration
	results chan LoadResult
	current atomic.Uint64
	wg      sync.WaitGroup
}

// NewLoader creates a loader. A non-positive timeout uses DefaultFetchTimeout.
func NewLoader(source ports.CandleSource, logger ports.Logger, timeout time.Duration) (*Loader, error) {
	if source == nil || logger == nil {
		return nil, fmt.Errorf("candle source and logger are required for historical loader")
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Loader{
		source:  source,
		logger:  logger,
		timeout: timeout,
		results: make(chan LoadResult, resultsBuffer),
	}, nil
}

// Results delivers load outcomes in completion order, which may differ from issue order.
func (l *Loader) Results() <-chan LoadResult {
	return l.results
}

// Load mints a new token, invalidating the previous one immediately, and starts
// fetching sel in the background. The result is sent on Results unless ctx is
// done first.
func (l *Loader) Load(ctx context.Context, sel domain.Selection) (RequestToken, error) {
	period, ok := domain.LookupPeriod(sel.Period)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ports.ErrUnknownPeriod, sel.Period)
	}
	if sel.AssetID == "" {
		return 0, ports.ErrInvalidAsset
	}

	token := RequestToken(l.current.Add(1))
	l.logger.Debug(ctx, "Historical load issued", map[string]interface{}{"token": token, "asset": sel.AssetID, "period": sel.Period})

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := l.fetch(ctx, token, sel, period)
		select {
		case l.results <- res:
		case <-ctx.Done():
			l.logger.Debug(ctx, "Historical load result dropped on shutdown", map[string]interface{}{"token": token})
		}
	}()
	return token, nil
}

func (l *Loader) fetch(ctx context.Context, token RequestToken, sel domain.Selection, period domain.PeriodConfig) LoadResult {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res := LoadResult{Token: token, Selection: sel}
	candles, err := l.source.FetchCandles(fetchCtx, sel.AssetID, period)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = classifyFetchError(err)
		return res
	}

	aligned, dups, err := AlignSeries(candles, period.CandleSeconds)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w: %w", ports.ErrFetchFailed, ports.ErrParse, err)
		return res
	}
	if dups > 0 {
		l.logger.Debug(ctx, "Collapsed candles sharing a bucket", map[string]interface{}{"token": token, "duplicates": dups})
	}
	res.Candles = aligned
	return res
}

// classifyFetchError makes sure every failure carries ErrFetchFailed and a reason.
func classifyFetchError(err error) error {
	if errors.Is(err, ports.ErrFetchFailed) && ports.FetchReason(err) != nil {
		return err
	}
	reason := ports.FetchReason(err)
	if reason == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ports.ErrTimeout
		} else {
			reason = ports.ErrNetwork
		}
	}
	return fmt.Errorf("%w: %w: %w", ports.ErrFetchFailed, reason, err)
}

// Current returns the most recently minted token, 0 before the first load.
func (l *Loader) Current() RequestToken {
	return RequestToken(l.current.Load())
}

// IsCurrent reports whether token is the most recently minted one.
func (l *Loader) IsCurrent(token RequestToken) bool {
	return token != 0 && token == l.Current()
}

// Wait blocks until every issued fetch has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}
