package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// bodyPreviewLimit caps how much upstream response body is kept for
// diagnostics.
const bodyPreviewLimit = 500

// StatusError reports a non-2xx upstream HTTP response, carrying a truncated
// body preview for diagnostics.
type StatusError struct {
	StatusCode  int
	Path        string
	BodyPreview string

	// SessionExpired is set when the response carried a session-reinit
	// header, asking the client to initialize a fresh MCP session.
	SessionExpired bool
	// RetryAfterSeconds is the parsed Retry-After value on 429 responses,
	// zero when absent.
	RetryAfterSeconds float64
}

func (e *StatusError) Error() string {
	if e.BodyPreview != "" {
		return fmt.Sprintf("upstream returned status %d for %s: %s", e.StatusCode, e.Path, e.BodyPreview)
	}
	return fmt.Sprintf("upstream returned status %d for %s", e.StatusCode, e.Path)
}

// previewBody truncates an upstream body for logging and error payloads.
func previewBody(body []byte) string {
	if len(body) <= bodyPreviewLimit {
		return string(body)
	}
	return string(body[:bodyPreviewLimit]) + "..."
}

// ErrorKind classifies upstream failures for gateway error mapping.
type ErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindNetwork is a connection-level failure (refused, DNS, reset).
	KindNetwork ErrorKind = "network_error"
	// KindUpstreamStatus is a non-2xx upstream HTTP response.
	KindUpstreamStatus ErrorKind = "upstream_http_error"
	// KindUpstream is any other upstream failure.
	KindUpstream ErrorKind = "upstream_error"
)

// ClassifyError buckets an adapter error for error responses and circuit
// breaker accounting.
func ClassifyError(err error) ErrorKind {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return KindUpstreamStatus
	}
	if IsTimeout(err) {
		return KindTimeout
	}
	var urlErr *url.Error
	var netErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUpstream
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
