package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perfscale/domain-mcp/pkg/adapter"
)

func TestUpstreamError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   string
		wantStatus int
	}{
		{"timeout", context.DeadlineExceeded, ErrTypeTimeout, 504},
		{"upstream status", &adapter.StatusError{StatusCode: 503, Path: "/x"}, ErrTypeUpstreamHTTPError, 502},
		{"other", errors.New("decode failed"), ErrTypeUpstreamError, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oerr := AsError(upstreamError(tt.err, "datasets.search"))
			assert.Equal(t, tt.wantType, oerr.Type)
			assert.Equal(t, tt.wantStatus, oerr.HTTPStatus)
		})
	}
}

func TestAsError_WrapsUnknown(t *testing.T) {
	oerr := AsError(errors.New("plain"))
	assert.Equal(t, "internal_error", oerr.Type)
	assert.Equal(t, 500, oerr.HTTPStatus)
	assert.Equal(t, "plain", oerr.Detail)
}
