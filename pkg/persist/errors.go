package persist

import (
	"fmt"
	"time"
)

// TimeoutError reports a request that did not complete within the client
// timeout. The remote service may or may not have applied the write; the
// idempotency key attached to inserts keeps a retried call from
// double-writing.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("persist: %s network timeout after %s: %v", e.Op, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnError reports a connection-level failure before a response was
// received (refused, reset, DNS, TLS).
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("persist: %s connection failed: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// APIError reports a non-2xx response from the persistence service.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("persist: %s http status %d %s: %s", e.Op, e.Status, statusText(e.Status), e.Body)
}

func statusText(status int) string {
	switch status {
	case 400:
		return "bad request"
	case 401:
		return "unauthorized"
	case 403:
		return "permission denied"
	case 404:
		return "not found"
	case 409:
		return "duplicate key"
	case 429:
		return "too many requests"
	case 500:
		return "internal server error"
	case 502:
		return "bad gateway"
	case 503:
		return "service unavailable"
	case 504:
		return "gateway timeout"
	default:
		return "error"
	}
}
