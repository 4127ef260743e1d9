package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/config"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/llm"
	"github.com/perfscale/domain-mcp/pkg/normalize"
	"github.com/perfscale/domain-mcp/pkg/orchestrator"
	"github.com/perfscale/domain-mcp/pkg/resources"
)

// suspiciousPatterns are rejected in queries: control bytes and common
// prompt-injection markers. Matched case-insensitively.
var suspiciousPatterns = []string{
	"\x00",
	"IGNORE PREVIOUS",
	"IGNORE ALL",
	"SYSTEM:",
	"</S>",
	"<|ENDOFTEXT|>",
}

// QueryService runs natural language queries through the LLM tool loop.
type QueryService struct {
	client         llm.Client
	limiter        *llm.RateLimiter
	tools          []llm.Tool
	maxIterations  int
	temperature    float64
	maxTokens      int
	maxQueryLength int
}

// NewQueryService wires the LLM query feature. Returns nil when client is
// nil, so callers can pass the result straight to NewServer.
func NewQueryService(
	env config.EnvSettings,
	client llm.Client,
	orch *orchestrator.Orchestrator,
	res *resources.Registry,
) *QueryService {
	if client == nil {
		return nil
	}

	tools := []llm.Tool{
		{
			Name:   "get_key_metrics",
			Schema: llm.GetKeyMetricsToolSchema,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				slog.Info("llm.tool_call.get_key_metrics", "arguments", args)
				req, err := orchestrator.ParseParams(normalize.GetKeyMetricsParams(args))
				if err != nil {
					return nil, err
				}
				return orch.GetKeyMetrics(ctx, req)
			},
		},
		{
			Name:   "resources/read",
			Schema: llm.ResourcesReadToolSchema,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				uri, _ := args["uri"].(string)
				return res.Read(uri)
			},
		},
	}

	limiter := llm.NewRateLimiter(llm.RateLimitConfig{
		RequestsPerHour: env.RateLimitRequestsPerHour,
		TokensPerHour:   env.RateLimitTokensPerHour,
		Enabled:         env.RateLimitEnabled,
		AdminBypassKey:  env.RateLimitAdminKey,
	})

	slog.Info("/api/query endpoint enabled",
		"llm_model", client.Model(),
		"max_iterations", env.LLMMaxIterations,
		"temperature", env.LLMTemperature)

	return &QueryService{
		client:         client,
		limiter:        limiter,
		tools:          tools,
		maxIterations:  env.LLMMaxIterations,
		temperature:    env.LLMTemperature,
		maxTokens:      env.LLMMaxTokens,
		maxQueryLength: env.QueryMaxLength,
	}
}

// queryRequest is the POST /api/query body.
type queryRequest struct {
	Query    string `json:"query"`
	AdminKey string `json:"admin_key,omitempty"`
}

// queryResponse carries the LLM answer plus the execution trace.
type queryResponse struct {
	Query     string           `json:"query"`
	Answer    string           `json:"answer"`
	Metadata  map[string]any   `json:"metadata"`
	ToolCalls []llm.TraceEntry `json:"tool_calls"`
}

// queryHandler handles POST /api/query.
func (s *Server) queryHandler(c *echo.Context) error {
	if s.query == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Detail:    "LLM not configured. Set LLM_PROVIDER, LLM_API_KEY, and LLM_MODEL to enable.",
			ErrorType: "llm_not_configured",
		})
	}

	var req queryRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "invalid JSON body: " + err.Error(),
			ErrorType: "invalid_request",
		})
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "Query cannot be empty",
			ErrorType: "invalid_request",
		})
	}
	if len(query) > s.query.maxQueryLength {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "Query too long",
			ErrorType: "invalid_request",
		})
	}
	queryUpper := strings.ToUpper(query)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(queryUpper, pattern) {
			slog.Warn("Suspicious query pattern detected",
				"req_id", requestID(c), "query_prefix", truncateQuery(query, 100))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Detail:    "Query contains suspicious patterns. Please rephrase without special control sequences.",
				ErrorType: "invalid_request",
			})
		}
	}

	clientID := clientHost(c.Request())
	if allowed, msg := s.query.limiter.Check(clientID, req.AdminKey); !allowed {
		slog.Warn("Rate limit exceeded", "req_id", requestID(c), "client_id", clientID)
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Detail:    msg,
			ErrorType: "rate_limited",
		})
	}

	slog.Info("api.query.start",
		"req_id", requestID(c),
		"client_id", clientID,
		"query", truncateQuery(query, 100),
		"query_length", len(query))
	start := time.Now()

	// The orchestrator keeps per-conversation state, so each request gets a
	// fresh one.
	orch := llm.NewQueryOrchestrator(
		s.query.client, s.query.tools,
		s.query.maxIterations, s.query.temperature, s.query.maxTokens)

	result, err := orch.ExecuteQuery(c.Request().Context(), query)
	if err != nil {
		slog.Error("api.query.failed", "req_id", requestID(c), "error", err)
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") {
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Detail:    "LLM API rate limit exceeded: " + err.Error(),
				ErrorType: "rate_limited",
			})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Detail:    "Query processing failed: " + err.Error(),
			ErrorType: "internal_error",
		})
	}

	s.query.limiter.Record(clientID, result.TotalTokens)
	stats := s.query.limiter.Stats(clientID)

	slog.Info("api.query.complete",
		"req_id", requestID(c),
		"client_id", clientID,
		"tool_calls", len(result.ToolCalls),
		"llm_calls", result.LLMCalls,
		"duration", time.Since(start).Round(time.Millisecond),
		"total_tokens", result.TotalTokens,
		"tokens_remaining", stats.TokensRemaining)

	return c.JSON(http.StatusOK, queryResponse{
		Query:  query,
		Answer: result.Answer,
		Metadata: map[string]any{
			"tool_calls":           len(result.ToolCalls),
			"llm_calls":            result.LLMCalls,
			"duration_ms":          result.TotalDurationMS,
			"total_tokens":         result.TotalTokens,
			"rate_limit":           stats,
			"domain_model_version": domain.ModelVersion,
		},
		ToolCalls: result.ToolCalls,
	})
}

// clientHost extracts the peer host for rate limiting.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

func truncateQuery(q string, n int) string {
	if len(q) <= n {
		return q
	}
	return q[:n]
}
