package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const timeLayout = "2006-01-02 15:04"

// Sink renders chart updates as plain text lines.
type Sink struct {
	mu    sync.Mutex
	out   io.Writer
	tail  int // Candles printed on replace, 0 prints a summary only
	asset string
}

// NewSink creates a sink writing to out. tail bounds the candles printed per replace.
func NewSink(out io.Writer, tail int) *Sink {
	return &Sink{out: out, tail: tail}
}

// SetLabel tags subsequent lines with the asset being shown.
func (s *Sink) SetLabel(asset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asset = asset
}

func (s *Sink) OnReplace(series []domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(series) == 0 {
		fmt.Fprintf(s.out, "%schart cleared\n", s.label())
		return
	}
	first, last := series[0], series[len(series)-1]
	fmt.Fprintf(s.out, "%s%d candles %s .. %s, last close %s\n",
		s.label(), len(series), formatTime(first.Time), formatTime(last.Time), formatPrice(last.Close))

	start := len(series) - s.tail
	if start < 0 {
		start = 0
	}
	if s.tail > 0 {
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  TIME\tOPEN\tHIGH\tLOW\tCLOSE")
		for _, c := range series[start:] {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", formatTime(c.Time),
				formatPrice(c.Open), formatPrice(c.High), formatPrice(c.Low), formatPrice(c.Close))
		}
		tw.Flush()
	}
}

func (s *Sink) OnUpsert(c domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s%s O %s H %s L %s C %s\n", s.label(), formatTime(c.Time),
		formatPrice(c.Open), formatPrice(c.High), formatPrice(c.Low), formatPrice(c.Close))
}

// Printf writes a free-form line, serialized with chart output.
func (s *Sink) Printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Sink) label() string {
	if s.asset == "" {
		return ""
	}
	return "[" + s.asset + "] "
}

// PrintPeriods writes the period table.
func PrintPeriods(out io.Writer, periods []domain.PeriodConfig) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tLABEL\tDAYS\tCANDLE\tMAX CANDLES")
	for _, p := range periods {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", p.Period, p.Label, p.Days,
			time.Duration(p.CandleSeconds)*time.Second, p.MaxCandles())
	}
	return tw.Flush()
}

// FormatTrades renders trades newest first, one per line.
func FormatTrades(trades []domain.LiveTick) string {
	var b strings.Builder
	for _, t := range trades {
		side := string(t.Side)
		if side == "" {
			side = "-"
		}
		fmt.Fprintf(&b, "  %s  %-4s %s", time.Unix(t.Time, 0).UTC().Format("15:04:05"), side, formatPrice(t.Price))
		if t.Quantity > 0 {
			fmt.Fprintf(&b, " x %g", t.Quantity)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(timeLayout)
}

func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}

var _ ports.RenderSink = (*Sink)(nil)
