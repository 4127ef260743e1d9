package orchestrator

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/perfscale/domain-mcp/pkg/adapter"
)

// Error types surfaced to clients in error payloads. The API layer maps
// HTTPStatus directly; the MCP surface folds Type and Detail into the tool
// error text.
const (
	ErrTypeMissingConfiguration = "missing_configuration"
	ErrTypeUnknownSourceID      = "unknown_source_id"
	ErrTypeUnknownDatasetType   = "unknown_dataset_type"
	ErrTypeInvalidRequest       = "invalid_request"
	ErrTypeLabelsUnavailable    = "labels_unavailable"
	ErrTypeTimeout              = "timeout"
	ErrTypeNetworkError         = "network_error"
	ErrTypeUpstreamHTTPError    = "upstream_http_error"
	ErrTypeUpstreamError        = "upstream_error"
)

// Error is a structured tool failure: a machine-readable type, a
// human-readable detail, optional valid alternatives, and the HTTP status
// the REST surface should answer with.
type Error struct {
	Type       string
	Detail     string
	Options    []string
	HTTPStatus int
}

func (e *Error) Error() string { return e.Detail }

// AsError extracts a structured *Error from err, wrapping anything else as
// a 500 internal error.
func AsError(err error) *Error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return &Error{Type: "internal_error", Detail: err.Error(), HTTPStatus: http.StatusInternalServerError}
}

// upstreamError maps an adapter failure during phase to a structured error:
// timeouts and connection failures answer 504, upstream HTTP statuses and
// everything else answer 502.
func upstreamError(err error, phase string) *Error {
	switch adapter.ClassifyError(err) {
	case adapter.KindTimeout:
		return &Error{
			Type: ErrTypeTimeout,
			Detail: fmt.Sprintf("Timeout during %s: %v. The query exceeded the configured "+
				"timeout_seconds; consider raising it for complex queries with auto-discovery.",
				phase, err),
			HTTPStatus: http.StatusGatewayTimeout,
		}
	case adapter.KindNetwork:
		return &Error{
			Type:       ErrTypeNetworkError,
			Detail:     err.Error(),
			HTTPStatus: http.StatusGatewayTimeout,
		}
	case adapter.KindUpstreamStatus:
		var statusErr *adapter.StatusError
		errors.As(err, &statusErr)
		return &Error{
			Type:       ErrTypeUpstreamHTTPError,
			Detail:     fmt.Sprintf("Upstream error %d", statusErr.StatusCode),
			HTTPStatus: http.StatusBadGateway,
		}
	default:
		return &Error{
			Type:       ErrTypeUpstreamError,
			Detail:     err.Error(),
			HTTPStatus: http.StatusBadGateway,
		}
	}
}
