package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/perfscale/domain-mcp/pkg/config"
	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/version"
)

// horreumMaxPageSize is the page size limit reported by source.describe for
// the Horreum HTTP adapter.
const horreumMaxPageSize = 1000

// sessionHeader carries the MCP session id on every request once a session
// has been initialized.
const sessionHeader = "mcp-session-id"

// reinitHeaders are the response headers a Horreum MCP server sets when the
// current session is stale and must be re-initialized before retrying.
var reinitHeaders = []string{"mcp-session-reinit", "mcp-session-id-expired"}

// retryableStatuses are upstream statuses worth retrying: auth/session
// failures (after re-initializing the session), rate limits, and transient
// unavailability.
var retryableStatuses = map[int]bool{
	http.StatusUnauthorized:       true,
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	440:                           true, // login timeout, non-standard
	http.StatusServiceUnavailable: true,
}

// sessionReinitStatuses additionally require a fresh MCP session before the
// retry is attempted.
var sessionReinitStatuses = map[int]bool{
	http.StatusUnauthorized: true,
	http.StatusForbidden:    true,
	440:                     true,
}

// HorreumHTTP talks to a Horreum MCP server over its HTTP tool endpoints.
//
// It maintains an optional MCP session (some deployments require one), and
// retries transient failures with exponential backoff: timeouts, connection
// errors, rate limits, and auth/session expiry (the latter after
// re-initializing the session). Every call runs inside a bounded request
// queue and behind a circuit breaker, so a failing or slow upstream sheds
// load instead of accumulating goroutines.
type HorreumHTTP struct {
	endpoint          string
	apiKey            string
	client            *http.Client
	maxRetries        int
	backoffInitial    time.Duration
	backoffMultiplier float64
	breaker           *CircuitBreaker
	queue             *RequestQueue

	mu        sync.Mutex
	sessionID string
}

var _ Source = (*HorreumHTTP)(nil)

// NewHorreumHTTP builds a Horreum HTTP adapter from source configuration.
// Backoff knobs are clamped to sane minimums.
func NewHorreumHTTP(cfg config.SourceConfig) *HorreumHTTP {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &HorreumHTTP{
		endpoint:          strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:            cfg.APIKey,
		client:            &http.Client{Timeout: timeout},
		maxRetries:        max(0, cfg.MaxRetries),
		backoffInitial:    time.Duration(max(0, cfg.BackoffInitialMS)) * time.Millisecond,
		backoffMultiplier: math.Max(1.0, cfg.BackoffMultiplier),
	}
	h.breaker = NewCircuitBreaker(h.endpoint, BreakerConfig{})
	h.queue = NewRequestQueue(h.endpoint, 0, 0)
	slog.Info("Horreum HTTP adapter configured",
		"endpoint", h.endpoint,
		"timeout", timeout,
		"max_retries", h.maxRetries,
		"auth", h.apiKey != "")
	return h
}

// SourceDescribe is answered locally; the HTTP tool surface has no describe
// endpoint and the capabilities of a Horreum MCP server are fixed.
func (h *HorreumHTTP) SourceDescribe(_ context.Context, _ contract.SourceDescribeRequest) (contract.SourceDescribeResponse, error) {
	maxPage := horreumMaxPageSize
	return contract.SourceDescribeResponse{
		SourceType:      contract.SourceTypeHorreum,
		Version:         version.Version,
		ContractVersion: contract.ContractVersion,
		Capabilities:    contract.SourceCapabilities{Pagination: true, Caching: true},
		Limits:          &contract.SourceLimits{MaxPageSize: &maxPage},
	}, nil
}

// TestsList lists tests. The Horreum tool expects "name" and "limit" instead
// of the contract's query/page_size field names.
func (h *HorreumHTTP) TestsList(ctx context.Context, req contract.TestsListRequest) (contract.TestsListResponse, error) {
	payload := map[string]any{}
	if req.Query != "" {
		payload["name"] = req.Query
	}
	if req.PageSize > 0 {
		payload["limit"] = req.PageSize
	}
	if req.PageToken != "" {
		payload["page_token"] = req.PageToken
	}
	var resp contract.TestsListResponse
	err := h.callTool(ctx, "horreum_list_tests", payload, &resp)
	return resp, err
}

// RunsList lists runs for a test.
func (h *HorreumHTTP) RunsList(ctx context.Context, req contract.RunsListRequest) (contract.RunsListResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.RunsListResponse{}, err
	}
	coerceIntField(payload, "test_id")
	var resp contract.RunsListResponse
	err = h.callTool(ctx, "horreum_list_runs", payload, &resp)
	return resp, err
}

// DatasetsSearch searches datasets by test, schema, run ids and time range.
func (h *HorreumHTTP) DatasetsSearch(ctx context.Context, req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.DatasetsSearchResponse{}, err
	}
	coerceIntField(payload, "test_id")
	coerceIntList(payload, "run_ids")
	var resp contract.DatasetsSearchResponse
	err = h.callTool(ctx, "horreum_list_datasets", payload, &resp)
	return resp, err
}

// DatasetsGet fetches dataset content by id.
func (h *HorreumHTTP) DatasetsGet(ctx context.Context, req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.DatasetsGetResponse{}, err
	}
	coerceIntField(payload, "dataset_id")
	var resp contract.DatasetsGetResponse
	err = h.callTool(ctx, "horreum_get_dataset", payload, &resp)
	return resp, err
}

// ArtifactsGet fetches a run artifact.
func (h *HorreumHTTP) ArtifactsGet(ctx context.Context, req contract.ArtifactsGetRequest) (contract.ArtifactsGetResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.ArtifactsGetResponse{}, err
	}
	coerceIntField(payload, "run_id")
	var resp contract.ArtifactsGetResponse
	err = h.callTool(ctx, "horreum_get_artifact", payload, &resp)
	return resp, err
}

// RunLabelValues fetches label values for one run.
func (h *HorreumHTTP) RunLabelValues(ctx context.Context, req contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.RunLabelValuesResponse{}, err
	}
	coerceIntField(payload, "run_id")
	var resp contract.RunLabelValuesResponse
	err = h.callTool(ctx, "horreum_get_run_label_values", payload, &resp)
	return resp, err
}

// TestLabelValues fetches aggregated label values across a test's runs.
func (h *HorreumHTTP) TestLabelValues(ctx context.Context, req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.TestLabelValuesResponse{}, err
	}
	coerceIntField(payload, "test_id")
	var resp contract.TestLabelValuesResponse
	err = h.callTool(ctx, "horreum_get_test_label_values", payload, &resp)
	return resp, err
}

// DatasetLabelValues fetches label values for one dataset.
func (h *HorreumHTTP) DatasetLabelValues(ctx context.Context, req contract.DatasetLabelValuesRequest) (contract.DatasetLabelValuesResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return contract.DatasetLabelValuesResponse{}, err
	}
	coerceIntField(payload, "dataset_id")
	var resp contract.DatasetLabelValuesResponse
	err = h.callTool(ctx, "horreum_get_dataset_label_values", payload, &resp)
	return resp, err
}

// callTool posts a payload to a Horreum tool endpoint and decodes the JSON
// result into out.
func (h *HorreumHTTP) callTool(ctx context.Context, tool string, payload any, out any) error {
	data, err := h.postJSON(ctx, "/api/tools/"+tool, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", tool, err)
	}
	return nil
}

// postJSON posts payload to path, retrying transient failures. Timeouts and
// connection errors are always retryable; upstream statuses are retried only
// for the auth/session/rate-limit family, with a session re-init first when
// the server signals session expiry.
func (h *HorreumHTTP) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload for %s: %w", path, err)
	}

	operation := func() ([]byte, error) {
		if err := h.breaker.Allow(); err != nil {
			// Retrying against an open breaker would just hammer the open
			// window; fail the whole call.
			return nil, backoff.Permanent(err)
		}
		data, err := h.doPost(ctx, path, body)
		h.breaker.RecordResult(err)
		if err == nil {
			return data, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if !retryableStatuses[statusErr.StatusCode] && !statusErr.SessionExpired {
				slog.Error("Horreum request failed",
					"path", path,
					"status", statusErr.StatusCode,
					"body", statusErr.BodyPreview)
				return nil, backoff.Permanent(err)
			}
			if sessionReinitStatuses[statusErr.StatusCode] || statusErr.SessionExpired {
				h.initSession(ctx)
			}
			slog.Warn("Horreum request hit retryable status",
				"path", path, "status", statusErr.StatusCode)
			if statusErr.StatusCode == http.StatusTooManyRequests && statusErr.RetryAfterSeconds > 0 {
				return nil, backoff.RetryAfter(int(math.Ceil(statusErr.RetryAfterSeconds)))
			}
			return nil, err
		}

		if IsTimeout(err) {
			slog.Warn("Horreum request timed out, retrying", "path", path)
			return nil, err
		}
		// Connection-level errors (refused, DNS, reset) are retryable too.
		slog.Warn("Horreum request failed, retrying", "path", path, "error", err)
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.backoffInitial
	b.Multiplier = h.backoffMultiplier
	b.RandomizationFactor = 0

	// The queue slot is held across the whole retry span, so a slow upstream
	// backs pressure up to callers instead of fanning out attempts.
	var data []byte
	err = h.queue.Do(ctx, func() error {
		var opErr error
		data, opErr = backoff.Retry(ctx, operation,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(h.maxRetries)+1))
		return opErr
	})
	return data, err
}

// doPost performs a single HTTP POST with auth and session headers.
func (h *HorreumHTTP) doPost(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	if sid := h.currentSession(); sid != "" {
		req.Header.Set(sessionHeader, sid)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{
			StatusCode:  resp.StatusCode,
			Path:        path,
			BodyPreview: previewBody(data),
		}
		for _, name := range reinitHeaders {
			if resp.Header.Get(name) != "" {
				statusErr.SessionExpired = true
			}
		}
		if info := ExtractRateLimitInfo(resp.Header); info.RetryAfterSeconds != nil {
			statusErr.RetryAfterSeconds = *info.RetryAfterSeconds
		}
		return nil, statusErr
	}
	return data, nil
}

// initSession initializes (or re-initializes) an MCP session and stores the
// returned session id. Failures are logged and swallowed: deployments that
// do not require sessions reject the initialize endpoint.
func (h *HorreumHTTP) initSession(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/mcp/initialize", strings.NewReader("{}"))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Warn("MCP session initialization failed", "error", err)
		return
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	var parsed struct {
		SessionID    string `json:"session_id"`
		SessionIDAlt string `json:"sessionId"`
	}
	_ = json.Unmarshal(data, &parsed)

	sid := parsed.SessionID
	if sid == "" {
		sid = parsed.SessionIDAlt
	}
	if sid == "" {
		sid = resp.Header.Get(sessionHeader)
	}
	if sid == "" {
		slog.Warn("MCP session initialization returned no session id", "status", resp.StatusCode)
		return
	}

	h.mu.Lock()
	h.sessionID = sid
	h.mu.Unlock()
	slog.Info("MCP session initialized", "endpoint", h.endpoint)
}

func (h *HorreumHTTP) currentSession() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// payloadFromRequest converts a contract request struct into a generic JSON
// payload map, dropping empty fields via the struct's omitempty tags.
func payloadFromRequest(req any) (map[string]any, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return payload, nil
}

// coerceIntField converts a numeric string id in payload to an int. Horreum
// tools expect integer ids; non-numeric ids are passed through unchanged.
func coerceIntField(payload map[string]any, key string) {
	s, ok := payload[key].(string)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(s); err == nil {
		payload[key] = n
	}
}

// coerceIntList converts a list of numeric string ids to ints. The list is
// converted all-or-nothing: one non-numeric entry leaves it untouched.
func coerceIntList(payload map[string]any, key string) {
	list, ok := payload[key].([]any)
	if !ok {
		return
	}
	ints := make([]any, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return
		}
		ints[i] = n
	}
	payload[key] = ints
}
