package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so callers can use errors.Is.
var (
	// General Errors
	ErrConfigurationError = errors.New("invalid or missing configuration")
	ErrUnknownPeriod      = errors.New("unknown chart period")
	ErrInvalidAsset       = errors.New("asset id must not be empty")
	ErrInvalidInterval    = errors.New("unsupported live interval")
	ErrControllerStopped  = errors.New("selection controller is not running")

	// Historical fetch errors (FetchFailed and its reasons)
	ErrFetchFailed = errors.New("historical fetch failed")
	ErrNetwork     = errors.New("network error")
	ErrHTTPStatus  = errors.New("unexpected http status")
	ErrParse       = errors.New("malformed response body")
	ErrTimeout     = errors.New("operation timed out")

	// Streaming errors (StreamError and its reasons)
	ErrStream        = errors.New("stream error")
	ErrConnectFailed = errors.New("failed to connect to stream")
	ErrProtocol      = errors.New("stream protocol error")
	ErrRemoteClosed  = errors.New("stream closed by remote")
	ErrFeedClosed    = errors.New("live feed has been closed")

	// Series errors
	ErrInvalidSeries = errors.New("invalid candle series")
	ErrInvalidCandle = errors.New("candle violates OHLC invariant")
	ErrStaleResult   = errors.New("stale historical result discarded")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)

// HTTPStatusError carries the status of a non-2xx historical response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// FetchReason returns the reason sentinel of a FetchFailed error, or nil.
func FetchReason(err error) error {
	for _, reason := range []error{ErrTimeout, ErrHTTPStatus, ErrParse, ErrNetwork} {
		if errors.Is(err, reason) {
			return reason
		}
	}
	return nil
}

// StreamReason returns the reason sentinel of a StreamError, or nil.
func StreamReason(err error) error {
	for _, reason := range []error{ErrConnectFailed, ErrProtocol, ErrRemoteClosed} {
		if errors.Is(err, reason) {
			return reason
		}
	}
	return nil
}
