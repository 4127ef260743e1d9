// Package contract defines the Source MCP Contract v1.0.0 wire types.
//
// These types are shared by every source adapter: they are the request and
// response shapes of the contract operations (source.describe, tests.list,
// runs.list, datasets.search, datasets.get, artifacts.get and the label-values
// family). Adapters translate backend-specific payloads into these shapes so
// the orchestration layer never sees backend details.
package contract

import "time"

// ContractVersion is the Source MCP Contract revision this build implements.
const ContractVersion = "1.0.0"

// SourceType identifies the backend family behind a source adapter.
type SourceType string

const (
	SourceTypeHorreum       SourceType = "horreum"
	SourceTypeCustom        SourceType = "custom-backend"
	SourceTypeDataWarehouse SourceType = "data-warehouse"
	SourceTypeElasticsearch SourceType = "elasticsearch"
)

// ErrorCode is a standardized contract error code.
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
)

// MergeStrategy controls how get_key_metrics combines the label-values path
// with the dataset path.
type MergeStrategy string

const (
	// MergePreferFast tries label values first and falls back to datasets
	// when labels produce nothing. This is the default.
	MergePreferFast MergeStrategy = "prefer_fast"
	// MergeComprehensive fetches both label values and datasets and merges,
	// with label-derived points taking precedence on conflicts.
	MergeComprehensive MergeStrategy = "comprehensive"
	// MergeLabelsOnly uses label values exclusively and fails when empty.
	MergeLabelsOnly MergeStrategy = "labels_only"
	// MergeDatasetsOnly skips label values entirely.
	MergeDatasetsOnly MergeStrategy = "datasets_only"
)

// ParseMergeStrategy validates a merge strategy string, defaulting to
// MergePreferFast for the empty string.
func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	switch MergeStrategy(s) {
	case "":
		return MergePreferFast, true
	case MergePreferFast, MergeComprehensive, MergeLabelsOnly, MergeDatasetsOnly:
		return MergeStrategy(s), true
	default:
		return "", false
	}
}

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Pagination carries page cursor metadata on list responses.
type Pagination struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
	TotalCount    *int   `json:"total_count,omitempty"`
}

// CacheInfo carries cache metadata for conditional requests.
type CacheInfo struct {
	ETag         string     `json:"etag,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	MaxAge       *int       `json:"max_age,omitempty"`
}

// ErrorDetails is the structured error body sources return.
type ErrorDetails struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RetryAfter *int           `json:"retry_after,omitempty"`
	Retryable  *bool          `json:"retryable,omitempty"`
}

// ErrorResponse wraps ErrorDetails on the wire.
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// SourceCapabilities describes what a source implementation supports.
type SourceCapabilities struct {
	Pagination bool `json:"pagination"`
	Caching    bool `json:"caching"`
	Streaming  bool `json:"streaming"`
	Schemas    bool `json:"schemas"`
}

// SourceLimits describes operational limits of a source implementation.
type SourceLimits struct {
	MaxPageSize        *int `json:"max_page_size,omitempty"`
	MaxDatasetSize     *int `json:"max_dataset_size,omitempty"`
	RateLimitPerMinute *int `json:"rate_limit_per_minute,omitempty"`
}

// SourceDescribeRequest is the (empty) request for source.describe.
type SourceDescribeRequest struct{}

// SourceDescribeResponse reports source identity, contract version and limits.
type SourceDescribeResponse struct {
	SourceType      SourceType         `json:"source_type"`
	Version         string             `json:"version"`
	ContractVersion string             `json:"contract_version"`
	Capabilities    SourceCapabilities `json:"capabilities"`
	Limits          *SourceLimits      `json:"limits,omitempty"`
}

// ValidateContractCompatibility reports whether a source implements the
// minimum contract requirements this server depends on.
func ValidateContractCompatibility(resp SourceDescribeResponse) bool {
	return resp.ContractVersion == ContractVersion &&
		resp.Capabilities.Pagination &&
		resp.Capabilities.Caching
}
