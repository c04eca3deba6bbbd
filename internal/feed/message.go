package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"coinchart/internal/domain"
	"coinchart/internal/ports"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	tickerChannel     = "ticker"
)

// outboundMessage is the subscription control frame sent to the provider.
type outboundMessage struct {
	Action string         `json:"action"`
	Params outboundParams `json:"params"`
}

type outboundParams struct {
	Channel  string `json:"channel"`
	ID       string `json:"id"`
	Interval string `json:"interval"`
}

func newControlMessage(action string, sub Subscription) outboundMessage {
	return outboundMessage{
		Action: action,
		Params: outboundParams{Channel: tickerChannel, ID: sub.AssetID, Interval: string(sub.Interval)},
	}
}

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// inboundMessage covers every message kind the provider pushes, discriminated by Type.
type inboundMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	CoinID    string    `json:"i"`
	Price     flexFloat `json:"p"`
	Change24h flexFloat `json:"c24"`
	Quantity  flexFloat `json:"q"`
	Time      flexFloat `json:"t"`
	Side      string    `json:"s"`
	Open      flexFloat `json:"o"`
	High      flexFloat `json:"h"`
	Low       flexFloat `json:"l"`
	Close     flexFloat `json:"c"`
	Message   string    `json:"message"`
}

func (m inboundMessage) asset() string {
	if m.ID != "" {
		return m.ID
	}
	return m.CoinID
}

// normalizeTime converts a provider timestamp (seconds or milliseconds) to unix
// seconds. Zero means the message carried none and now is used.
func normalizeTime(t float64, now int64) int64 {
	switch {
	case t <= 0:
		return now
	case t >= 1e12:
		return int64(t / 1000)
	default:
		return int64(t)
	}
}

func parseSide(s string) domain.TradeSide {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return domain.SideBuy
	case "sell", "s":
		return domain.SideSell
	default:
		return domain.SideUnknown
	}
}

// decodeMessage classifies one inbound frame. ok is false for frames that carry
// no market data (acks, heartbeats, unknown kinds).
func decodeMessage(data []byte, now int64) (ev Event, ok bool, err error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false, fmt.Errorf("%w: %w: decoding message: %w", ports.ErrStream, ports.ErrProtocol, err)
	}

	switch strings.ToLower(msg.Type) {
	case "ticker":
		if msg.Price <= 0 {
			return Event{}, false, fmt.Errorf("%w: %w: ticker without price", ports.ErrStream, ports.ErrProtocol)
		}
		return Event{
			Kind:  EventTicker,
			Asset: msg.asset(),
			Ticker: domain.Ticker{
				Asset:     msg.asset(),
				Price:     float64(msg.Price),
				Change24h: float64(msg.Change24h),
				Time:      normalizeTime(float64(msg.Time), now),
			},
		}, true, nil

	case "trades", "trade":
		if msg.Price <= 0 {
			return Event{}, false, fmt.Errorf("%w: %w: trade without price", ports.ErrStream, ports.ErrProtocol)
		}
		return Event{
			Kind:  EventTrade,
			Asset: msg.asset(),
			Trade: domain.LiveTick{
				Asset:    msg.asset(),
				Price:    float64(msg.Price),
				Time:     normalizeTime(float64(msg.Time), now),
				Side:     parseSide(msg.Side),
				Quantity: float64(msg.Quantity),
			},
		}, true, nil

	case "ohlcv", "ohlc", "candle":
		c := domain.Candle{
			Time:  normalizeTime(float64(msg.Time), now),
			Open:  float64(msg.Open),
			High:  float64(msg.High),
			Low:   float64(msg.Low),
			Close: float64(msg.Close),
		}
		if !c.Valid() {
			return Event{}, false, fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrProtocol, ports.ErrInvalidCandle)
		}
		return Event{Kind: EventCandle, Asset: msg.asset(), Candle: c}, true, nil

	case "error":
		return Event{}, false, fmt.Errorf("%w: %w: provider error: %s", ports.ErrStream, ports.ErrProtocol, msg.Message)

	default:
		return Event{}, false, nil
	}
}
