package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfscale/domain-mcp/pkg/adapter"
)

func TestGatherPartial_CollectsSuccessesAndFailures(t *testing.T) {
	operations := map[string]func(context.Context) (int, error){
		"a": func(context.Context) (int, error) { return 1, nil },
		"b": func(context.Context) (int, error) { return 2, nil },
		"c": func(context.Context) (int, error) { return 0, errors.New("boom") },
	}

	result, err := GatherPartial(context.Background(), operations, "dataset fetch", 0.5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, result.Successes)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "c", result.Failures[0].Identifier)
	assert.InDelta(t, 0.667, result.SuccessRate(), 0.01)
	assert.True(t, result.HasFailures())
	assert.False(t, result.AllFailed())
}

func TestGatherPartial_BelowMinimumRate(t *testing.T) {
	operations := map[string]func(context.Context) (int, error){
		"a": func(context.Context) (int, error) { return 0, errors.New("boom") },
		"b": func(context.Context) (int, error) { return 0, errors.New("boom") },
		"c": func(context.Context) (int, error) { return 1, nil },
	}

	result, err := GatherPartial(context.Background(), operations, "dataset fetch", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
	assert.False(t, result.AllFailed())
}

func TestGatherPartial_ExactlyAtMinimumRate(t *testing.T) {
	operations := map[string]func(context.Context) (int, error){
		"a": func(context.Context) (int, error) { return 1, nil },
		"b": func(context.Context) (int, error) { return 2, nil },
		"c": func(context.Context) (int, error) { return 0, errors.New("boom") },
		"d": func(context.Context) (int, error) { return 0, errors.New("boom") },
	}

	// Hitting the minimum exactly is still a success; only falling below it fails.
	result, err := GatherPartial(context.Background(), operations, "dataset fetch", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.SuccessRate(), 1e-9)
	assert.ElementsMatch(t, []int{1, 2}, result.Successes)
	assert.Len(t, result.Failures, 2)
}

func TestGatherPartial_Empty(t *testing.T) {
	_, err := GatherPartial(context.Background(), map[string]func(context.Context) (int, error){}, "x", 0.5)
	assert.Error(t, err)
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server error", &adapter.StatusError{StatusCode: 503, Path: "/x"}, "server_error"},
		{"rate limit", &adapter.StatusError{StatusCode: 429, Path: "/x"}, "rate_limit"},
		{"unauthorized", &adapter.StatusError{StatusCode: 401, Path: "/x"}, "auth_error"},
		{"forbidden", &adapter.StatusError{StatusCode: 403, Path: "/x"}, "auth_error"},
		{"not found", &adapter.StatusError{StatusCode: 404, Path: "/x"}, "not_found"},
		{"other http", &adapter.StatusError{StatusCode: 400, Path: "/x"}, "http_error"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"parse", &json.SyntaxError{}, "parse_error"},
		{"unknown", errors.New("weird"), "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}

func TestRetryableFailure(t *testing.T) {
	assert.True(t, retryableFailure("timeout"))
	assert.True(t, retryableFailure("server_error"))
	assert.True(t, retryableFailure("rate_limit"))
	assert.False(t, retryableFailure("auth_error"))
	assert.False(t, retryableFailure("not_found"))
}

func TestFormatFailureSummary(t *testing.T) {
	result := PartialResult[int]{
		Successes: []int{1},
		Failures: []FailureInfo{
			{Identifier: "d1", ErrorType: "timeout", Retryable: true},
			{Identifier: "d2", ErrorType: "timeout", Retryable: true},
			{Identifier: "d3", ErrorType: "timeout", Retryable: true},
			{Identifier: "d4", ErrorType: "timeout", Retryable: true},
			{Identifier: "d5", ErrorType: "not_found", Retryable: false},
		},
	}

	summary := FormatFailureSummary(result, "dataset fetch")
	assert.Contains(t, summary, "1 succeeded, 5 failed")
	assert.Contains(t, summary, "4 timeout (retryable)")
	assert.Contains(t, summary, "... and 1 more")
	assert.Contains(t, summary, "1 not_found (not retryable)")
	assert.True(t, strings.HasPrefix(summary, "Partial results:"))
}

func TestFormatFailureSummary_AllSucceeded(t *testing.T) {
	result := PartialResult[int]{Successes: []int{1, 2}}
	assert.Equal(t, "All 2 dataset fetch(s) succeeded.", FormatFailureSummary(result, "dataset fetch"))
}
