package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinchart/internal/ports"
)

const (
	DefaultWebSocketURL = "wss://stream.coingecko.com/v1"

	wsKeyParam       = "x_cg_pro_api_key"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// StreamDialer implements ports.StreamDialer over gorilla/websocket.
type StreamDialer struct {
	url    string
	logger ports.Logger
	dialer *websocket.Dialer
}

// StreamConfig holds configuration for the CoinGecko streaming transport.
type StreamConfig struct {
	URL    string
	APIKey string
	Logger ports.Logger
}

// NewStreamDialer builds the dial URL once; the key travels as a query parameter.
func NewStreamDialer(cfg StreamConfig) (*StreamDialer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CoinGecko stream dialer")
	}
	raw := cfg.URL
	if raw == "" {
		raw = DefaultWebSocketURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid websocket url %q: %w", ports.ErrConfigurationError, raw, err)
	}
	if cfg.APIKey != "" {
		q := u.Query()
		q.Set(wsKeyParam, cfg.APIKey)
		u.RawQuery = q.Encode()
	}

	return &StreamDialer{
		url:    u.String(),
		logger: cfg.Logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}, nil
}

// Dial opens a connection, blocking until the handshake completes or fails.
func (d *StreamDialer) Dial(ctx context.Context) (ports.StreamConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		if resp != nil {
			fields["status"] = resp.StatusCode
			err = fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		d.logger.Debug(ctx, "WebSocket handshake failed", fields)
		return nil, fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrConnectFailed, err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to ports.StreamConn. Writes are serialized;
// reads happen on the single feed read loop.
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrRemoteClosed, err)
	}
	return nil
}

func (c *wsConn) Receive() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("%w: %w: code %d: %w", ports.ErrStream, ports.ErrRemoteClosed, closeErr.Code, err)
			}
			return nil, fmt.Errorf("%w: %w: %w", ports.ErrStream, ports.ErrRemoteClosed, err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

var _ ports.StreamDialer = (*StreamDialer)(nil)
