package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/perfscale/domain-mcp/pkg/adapter"
)

// maxConcurrentFetches bounds parallel per-item fetches in GatherPartial.
const maxConcurrentFetches = 8

// FailureInfo describes one failed operation in a partial result.
type FailureInfo struct {
	Identifier string
	Error      string
	ErrorType  string
	Retryable  bool
}

// PartialResult collects the outcome of a batch where individual operations
// may fail without aborting the batch.
type PartialResult[T any] struct {
	Successes []T
	Failures  []FailureInfo
}

// SuccessRate is the ratio of successes to total attempts (0.0-1.0).
func (p PartialResult[T]) SuccessRate() float64 {
	total := len(p.Successes) + len(p.Failures)
	if total == 0 {
		return 0
	}
	return float64(len(p.Successes)) / float64(total)
}

// HasFailures reports whether any operation failed.
func (p PartialResult[T]) HasFailures() bool { return len(p.Failures) > 0 }

// AllFailed reports whether nothing succeeded.
func (p PartialResult[T]) AllFailed() bool {
	return len(p.Successes) == 0 && len(p.Failures) > 0
}

// GatherPartial runs all operations concurrently and collects partial
// results: failures are recorded, not propagated, so users get as much data
// as possible. It returns an error only when the success rate falls below
// minSuccessRate.
func GatherPartial[T any](
	ctx context.Context,
	operations map[string]func(context.Context) (T, error),
	operationType string,
	minSuccessRate float64,
) (PartialResult[T], error) {
	var result PartialResult[T]
	if len(operations) == 0 {
		return result, errors.New("no operations to gather")
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentFetches)

	for identifier, op := range operations {
		g.Go(func() error {
			value, err := op(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errorType := classifyFailure(err)
				result.Failures = append(result.Failures, FailureInfo{
					Identifier: identifier,
					Error:      err.Error(),
					ErrorType:  errorType,
					Retryable:  retryableFailure(errorType),
				})
				slog.Warn("Partial operation failed",
					"operation", operationType,
					"identifier", identifier,
					"error_type", errorType,
					"error", err)
				return nil
			}
			result.Successes = append(result.Successes, value)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Partial gather complete",
		"operation", operationType,
		"total", len(operations),
		"successes", len(result.Successes),
		"failures", len(result.Failures),
		"success_rate", result.SuccessRate())

	if result.SuccessRate() < minSuccessRate {
		return result, fmt.Errorf(
			"success rate %.1f%% below minimum %.1f%% for %s: %d successes, %d failures",
			result.SuccessRate()*100, minSuccessRate*100, operationType,
			len(result.Successes), len(result.Failures))
	}
	return result, nil
}

// classifyFailure buckets an error for failure reporting.
func classifyFailure(err error) string {
	var statusErr *adapter.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= 500:
			return "server_error"
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden:
			return "auth_error"
		case statusErr.StatusCode == http.StatusNotFound:
			return "not_found"
		default:
			return "http_error"
		}
	}
	switch adapter.ClassifyError(err) {
	case adapter.KindTimeout:
		return "timeout"
	case adapter.KindNetwork:
		return "connection_error"
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "parse_error"
	}
	return "unknown_error"
}

// retryableFailure reports whether a failure type might succeed on retry.
func retryableFailure(errorType string) bool {
	switch errorType {
	case "timeout", "connection_error", "server_error", "rate_limit":
		return true
	}
	return false
}

// FormatFailureSummary renders a human-readable digest of a partial result,
// grouping failures by type.
func FormatFailureSummary[T any](result PartialResult[T], operationType string) string {
	if !result.HasFailures() {
		return fmt.Sprintf("All %d %s(s) succeeded.", len(result.Successes), operationType)
	}

	lines := []string{fmt.Sprintf("Partial results: %d succeeded, %d failed (%.1f%% success rate)",
		len(result.Successes), len(result.Failures), result.SuccessRate()*100)}

	byType := map[string][]FailureInfo{}
	for _, f := range result.Failures {
		byType[f.ErrorType] = append(byType[f.ErrorType], f)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, errorType := range types {
		failures := byType[errorType]
		retryNote := " (not retryable)"
		if failures[0].Retryable {
			retryNote = " (retryable)"
		}
		lines = append(lines, fmt.Sprintf("  - %d %s%s", len(failures), errorType, retryNote))

		identifiers := make([]string, 0, 4)
		for i, f := range failures {
			if i == 3 {
				identifiers = append(identifiers, fmt.Sprintf("... and %d more", len(failures)-3))
				break
			}
			identifiers = append(identifiers, f.Identifier)
		}
		lines = append(lines, "    Affected: "+strings.Join(identifiers, ", "))
	}
	return strings.Join(lines, "\n")
}
