package llm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client limiter for LLM endpoints.
type RateLimitConfig struct {
	RequestsPerHour int
	TokensPerHour   int
	Window          time.Duration
	Enabled         bool
	AdminBypassKey  string
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.RequestsPerHour <= 0 {
		c.RequestsPerHour = 100
	}
	if c.TokensPerHour <= 0 {
		c.TokensPerHour = 100000
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	return c
}

type tokenEntry struct {
	at     time.Time
	tokens int
}

type clientState struct {
	requests []time.Time
	tokens   []tokenEntry
}

// ClientStats reports a client's remaining budget.
type ClientStats struct {
	ClientID          string `json:"client_id"`
	RequestsRemaining int    `json:"requests_remaining"`
	RequestsLimit     int    `json:"requests_limit"`
	TokensRemaining   int    `json:"tokens_remaining"`
	TokensLimit       int    `json:"tokens_limit"`
	WindowSeconds     int    `json:"window_seconds"`
}

// RateLimiter enforces sliding-window request and token budgets per client.
// Safe for concurrent use. State is in-memory only; restarts reset budgets.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientState
	now     func() time.Time
}

// NewRateLimiter builds a limiter with sane defaults for zero fields.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	slog.Info("Rate limiter initialized",
		"requests_per_hour", cfg.RequestsPerHour,
		"tokens_per_hour", cfg.TokensPerHour,
		"enabled", cfg.Enabled)
	return &RateLimiter{
		cfg:     cfg,
		clients: map[string]*clientState{},
		now:     time.Now,
	}
}

// Check reports whether the client may issue a request. A non-empty message
// explains which limit was exceeded and when to retry.
func (r *RateLimiter) Check(clientID, adminKey string) (bool, string) {
	if adminKey != "" && r.cfg.AdminBypassKey != "" && adminKey == r.cfg.AdminBypassKey {
		slog.Debug("Admin bypass used", "client_id", clientID)
		return true, ""
	}
	if !r.cfg.Enabled {
		return true, ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(clientID)
	now := r.now()
	r.expire(state, now.Add(-r.cfg.Window))

	if len(state.requests) >= r.cfg.RequestsPerHour {
		retryAfter := int(state.requests[0].Add(r.cfg.Window).Sub(now).Seconds())
		slog.Warn("Request rate limit exceeded",
			"client_id", clientID,
			"requests", len(state.requests),
			"limit", r.cfg.RequestsPerHour,
			"retry_after_seconds", retryAfter)
		return false, fmt.Sprintf(
			"Request rate limit exceeded (%d requests/hour). Retry after %d seconds.",
			r.cfg.RequestsPerHour, retryAfter)
	}

	tokenCount := 0
	for _, e := range state.tokens {
		tokenCount += e.tokens
	}
	if tokenCount >= r.cfg.TokensPerHour {
		retryAfter := int(state.tokens[0].at.Add(r.cfg.Window).Sub(now).Seconds())
		slog.Warn("Token budget exceeded",
			"client_id", clientID,
			"tokens", tokenCount,
			"limit", r.cfg.TokensPerHour,
			"retry_after_seconds", retryAfter)
		return false, fmt.Sprintf(
			"Token budget exceeded (%d tokens/hour). Retry after %d seconds.",
			r.cfg.TokensPerHour, retryAfter)
	}
	return true, ""
}

// Record registers a completed request and its token consumption.
func (r *RateLimiter) Record(clientID string, tokensUsed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(clientID)
	now := r.now()
	state.requests = append(state.requests, now)
	if tokensUsed > 0 {
		state.tokens = append(state.tokens, tokenEntry{at: now, tokens: tokensUsed})
	}
}

// Stats returns the client's current usage within the window.
func (r *RateLimiter) Stats(clientID string) ClientStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(clientID)
	r.expire(state, r.now().Add(-r.cfg.Window))

	tokenCount := 0
	for _, e := range state.tokens {
		tokenCount += e.tokens
	}
	return ClientStats{
		ClientID:          clientID,
		RequestsRemaining: max(0, r.cfg.RequestsPerHour-len(state.requests)),
		RequestsLimit:     r.cfg.RequestsPerHour,
		TokensRemaining:   max(0, r.cfg.TokensPerHour-tokenCount),
		TokensLimit:       r.cfg.TokensPerHour,
		WindowSeconds:     int(r.cfg.Window.Seconds()),
	}
}

func (r *RateLimiter) state(clientID string) *clientState {
	state, ok := r.clients[clientID]
	if !ok {
		state = &clientState{}
		r.clients[clientID] = state
	}
	return state
}

// expire drops entries that fell out of the sliding window.
func (r *RateLimiter) expire(state *clientState, windowStart time.Time) {
	i := 0
	for i < len(state.requests) && state.requests[i].Before(windowStart) {
		i++
	}
	state.requests = state.requests[i:]

	i = 0
	for i < len(state.tokens) && state.tokens[i].at.Before(windowStart) {
		i++
	}
	state.tokens = state.tokens[i:]
}
