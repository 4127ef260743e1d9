package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BreakerState is the lifecycle state of a circuit breaker.
type BreakerState string

const (
	// BreakerClosed lets requests through and counts failures.
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects requests until the open timeout elapses.
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen lets probe requests through; one failure reopens.
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes a circuit breaker. Zero values take the defaults used
// for upstream sources: 5 failures inside a 60s window open the breaker, it
// stays open for 60s, and 2 consecutive probe successes close it again.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	FailureWindow    time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 60 * time.Second
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 60 * time.Second
	}
	return c
}

// CircuitBreaker sheds load from a failing upstream. Only infrastructure
// failures count against the breaker: timeouts, connection errors, 5xx and
// 429 responses. Contract-level errors (4xx) pass through without tripping
// it.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	openedAt    time.Time
	windowStart time.Time
}

// NewCircuitBreaker builds a breaker named after the source it protects.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{name: name, cfg: cfg.withDefaults(), state: BreakerClosed}
}

// Allow reports whether a request may proceed. When the breaker is open and
// the open timeout has elapsed it transitions to half-open and lets the
// probe through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if time.Since(cb.openedAt) < cb.cfg.OpenTimeout {
			return fmt.Errorf("circuit breaker %q is open - service unavailable, try again in %s",
				cb.name, cb.cfg.OpenTimeout)
		}
		cb.state = BreakerHalfOpen
		cb.successes = 0
		slog.Info("Circuit breaker transitioned to half-open", "breaker", cb.name)
	}
	return nil
}

// RecordResult updates breaker state after a request. err == nil counts as
// success; failures only count when CountsAsFailure says so.
func (cb *CircuitBreaker) RecordResult(err error) {
	if err == nil {
		cb.recordSuccess()
		return
	}
	if CountsAsFailure(err) {
		cb.recordFailure()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			slog.Info("Circuit breaker closed after successful probes", "breaker", cb.name)
		}
	case BreakerClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.state {
	case BreakerHalfOpen:
		// A probe failure reopens immediately.
		cb.state = BreakerOpen
		cb.openedAt = now
		slog.Warn("Circuit breaker reopened after probe failure", "breaker", cb.name)
	case BreakerClosed:
		if cb.windowStart.IsZero() || now.Sub(cb.windowStart) > cb.cfg.FailureWindow {
			cb.windowStart = now
			cb.failures = 0
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = BreakerOpen
			cb.openedAt = now
			slog.Warn("Circuit breaker opened",
				"breaker", cb.name, "failures", cb.failures, "open_timeout", cb.cfg.OpenTimeout)
		}
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Do runs fn behind the breaker, recording the outcome.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.RecordResult(err)
	return err
}

// CountsAsFailure reports whether err should count against a circuit
// breaker: timeouts, connection errors, and 5xx/429 upstream responses.
func CountsAsFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	switch ClassifyError(err) {
	case KindTimeout, KindNetwork:
		return true
	}
	return false
}

// RateLimitInfo is rate limit metadata extracted from upstream response
// headers. Fields are nil when the corresponding header is absent or
// unparseable.
type RateLimitInfo struct {
	RetryAfterSeconds *float64
	Limit             *int
	Remaining         *int
	ResetAt           *float64
}

// ExtractRateLimitInfo parses the standard rate limit headers. Retry-After
// accepts both delta-seconds and HTTP-date forms.
func ExtractRateLimitInfo(h http.Header) RateLimitInfo {
	var info RateLimitInfo

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			info.RetryAfterSeconds = &secs
		} else if t, err := http.ParseTime(v); err == nil {
			secs := time.Until(t).Seconds()
			if secs < 0 {
				secs = 0
			}
			info.RetryAfterSeconds = &secs
		}
	}
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Limit = &n
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining = &n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			info.ResetAt = &f
		}
	}
	return info
}

// ErrQueueFull is returned when a request queue is at capacity.
var ErrQueueFull = errors.New("request queue full - too many pending requests")

// RequestQueue bounds concurrent upstream requests and caps how many may
// wait for a slot. Requests beyond the wait cap are rejected immediately
// instead of piling up.
type RequestQueue struct {
	name     string
	sem      *semaphore.Weighted
	capacity int64
	pending  atomic.Int64
}

// NewRequestQueue builds a queue allowing maxConcurrent in-flight requests
// and maxQueued waiters. Non-positive values take the defaults (10 and 100).
func NewRequestQueue(name string, maxConcurrent, maxQueued int) *RequestQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if maxQueued <= 0 {
		maxQueued = 100
	}
	return &RequestQueue{
		name:     name,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		capacity: int64(maxConcurrent + maxQueued),
	}
}

// Acquire blocks until a slot is free or ctx is done. It fails fast with
// ErrQueueFull when the queue is at capacity.
func (q *RequestQueue) Acquire(ctx context.Context) error {
	if q.pending.Add(1) > q.capacity {
		q.pending.Add(-1)
		slog.Warn("Request queue full, rejecting request", "queue", q.name)
		return fmt.Errorf("queue %q: %w", q.name, ErrQueueFull)
	}
	if err := q.sem.Acquire(ctx, 1); err != nil {
		q.pending.Add(-1)
		return err
	}
	return nil
}

// Release frees the slot taken by a successful Acquire.
func (q *RequestQueue) Release() {
	q.sem.Release(1)
	q.pending.Add(-1)
}

// Do runs fn inside a queue slot.
func (q *RequestQueue) Do(ctx context.Context, fn func() error) error {
	if err := q.Acquire(ctx); err != nil {
		return err
	}
	defer q.Release()
	return fn()
}
