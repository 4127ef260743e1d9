package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/orchestrator"
)

// HealthResponse is returned by the probe endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the structured error payload every endpoint uses.
type ErrorResponse struct {
	Detail           string   `json:"detail"`
	ErrorType        string   `json:"error_type"`
	AvailableOptions []string `json:"available_options,omitempty"`
}

// CapabilitiesResponse summarizes the running server for diagnostics.
type CapabilitiesResponse struct {
	DomainVersion string          `json:"domain_version"`
	HTTPAuth      string          `json:"http_auth"`
	CORSOrigins   []string        `json:"cors_origins"`
	Modes         map[string]bool `json:"modes"`
	Tools         []string        `json:"tools"`
	Plugins       []string        `json:"plugins"`
	Sources       []string        `json:"sources"`
}

// writeError maps an orchestrator error to the HTTP error payload.
func writeError(c *echo.Context, err error) error {
	oerr := orchestrator.AsError(err)
	return c.JSON(oerr.HTTPStatus, ErrorResponse{
		Detail:           oerr.Detail,
		ErrorType:        oerr.Type,
		AvailableOptions: oerr.Options,
	})
}
