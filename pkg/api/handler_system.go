package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/domain"
)

// capabilitiesHandler handles GET /capabilities.
func (s *Server) capabilitiesHandler(c *echo.Context) error {
	authState := "disabled"
	if s.env.HTTPAuthToken != "" {
		authState = "enabled"
	}
	cors := s.env.CORSOrigins
	if cors == nil {
		cors = []string{}
	}
	sourceIDs := s.sources.SourceIDs()

	return c.JSON(http.StatusOK, CapabilitiesResponse{
		DomainVersion: domain.ModelVersion,
		HTTPAuth:      authState,
		CORSOrigins:   cors,
		Modes: map[string]bool{
			"raw":           true,
			"source_driven": len(sourceIDs) > 0,
			"query":         s.query != nil,
		},
		Tools:   []string{"get_key_metrics", "get_key_metrics_raw"},
		Plugins: s.plugins.IDs(),
		Sources: sourceIDs,
	})
}

// listResourcesHandler handles GET /resources.
func (s *Server) listResourcesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"resources": s.resources.List(),
	})
}

// readResourceHandler handles GET /resources/*, reconstructing the
// domain:// URI from the path.
func (s *Server) readResourceHandler(c *echo.Context) error {
	uri := "domain://" + c.Param("*")
	result, err := s.resources.Read(uri)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Detail:    err.Error(),
			ErrorType: "not_found",
		})
	}
	return c.JSON(http.StatusOK, result)
}
