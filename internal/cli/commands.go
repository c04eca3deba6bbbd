package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinchart/internal/adapters/console"
	"coinchart/internal/app"
	"coinchart/internal/chart"
	"coinchart/internal/domain"
)

// chartController is the part of *app.Controller the command interpreter drives.
type chartController interface {
	SetAsset(ctx context.Context, assetID string) error
	SetPeriod(ctx context.Context, p domain.Period) error
	SetLiveInterval(ctx context.Context, i domain.LiveInterval) error
	Refresh(ctx context.Context) error
	Status() app.Status
	Candles() []domain.Candle
}

// printer is where command output goes.
type printer interface {
	Printf(format string, args ...interface{})
}

// execLine runs one stdin command. It reports whether the user asked to quit.
func execLine(ctx context.Context, ctrl chartController, out printer, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToLower(fields[0]) {
	case "asset", "a":
		if arg == "" {
			return false, fmt.Errorf("usage: asset <id>")
		}
		return false, ctrl.SetAsset(ctx, strings.ToLower(arg))
	case "period", "p":
		p, err := domain.ParsePeriod(arg)
		if err != nil {
			return false, err
		}
		return false, ctrl.SetPeriod(ctx, p)
	case "interval", "i":
		return false, ctrl.SetLiveInterval(ctx, domain.LiveInterval(strings.ToLower(arg)))
	case "refresh", "r":
		return false, ctrl.Refresh(ctx)
	case "status", "s":
		out.Printf("%s", formatStatus(ctrl.Status(), ctrl.Candles()))
		return false, nil
	case "trades", "t":
		trades := ctrl.Status().Trades
		if len(trades) == 0 {
			out.Printf("no trades yet\n")
			return false, nil
		}
		out.Printf("%s", console.FormatTrades(trades))
		return false, nil
	case "help", "h", "?":
		out.Printf("commands: asset <id>, period <1D|7D|1M>, interval <1s|1m>, refresh, status, trades, quit\n")
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}

func formatStatus(st app.Status, candles []domain.Candle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "asset:    %s\n", st.Selection.AssetID)
	fmt.Fprintf(&b, "period:   %s\n", st.Selection.Period)
	fmt.Fprintf(&b, "interval: %s\n", st.LiveInterval)
	fmt.Fprintf(&b, "candles:  %d", st.Candles)
	if st.Pending {
		b.WriteString(" (loading)")
	}
	b.WriteByte('\n')
	if st.HasTicker {
		fmt.Fprintf(&b, "price:    %g (%+.2f%% 24h) at %s\n", st.Ticker.Price, st.Ticker.Change24h,
			time.Unix(st.Ticker.Time, 0).UTC().Format(time.TimeOnly))
	}
	if o, err := chart.ComputeOverlay(candles, chart.DefaultOverlayPeriod); err == nil {
		fmt.Fprintf(&b, "overlay:  sma(%d) %g  ema %g  rsi %.1f  atr %g\n", o.Period, o.SMA, o.EMA, o.RSI, o.ATR)
	}
	live := st.FeedState.String()
	if st.LiveUnavailable {
		live += ", live data unavailable"
	}
	fmt.Fprintf(&b, "live:     %s\n", live)
	if st.Dropped > 0 {
		fmt.Fprintf(&b, "dropped:  %d out-of-order updates\n", st.Dropped)
	}
	if st.LastError != nil {
		fmt.Fprintf(&b, "error:    %v\n", st.LastError)
	}
	return b.String()
}

// statusWatcher prints status transitions worth telling the user about.
type statusWatcher struct {
	mu   sync.Mutex
	out  *console.Sink
	prev app.Status
	seen bool
}

func newStatusWatcher(out *console.Sink) *statusWatcher {
	return &statusWatcher{out: out}
}

func (w *statusWatcher) observe(st app.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.prev, w.seen
	w.prev, w.seen = st, true

	if !seen || st.Selection.AssetID != prev.Selection.AssetID {
		w.out.SetLabel(st.Selection.AssetID)
	}
	if st.Pending && (!seen || st.Token != prev.Token) {
		w.out.Printf("loading %s %s...\n", st.Selection.AssetID, st.Selection.Period)
	}
	if st.LastError != nil && (!seen || st.LastError != prev.LastError) {
		w.out.Printf("load failed, keeping previous chart: %v\n", st.LastError)
	}
	if seen && st.LiveUnavailable != prev.LiveUnavailable {
		if st.LiveUnavailable {
			w.out.Printf("live data unavailable, still retrying\n")
		} else {
			w.out.Printf("live data restored\n")
		}
	}
}
