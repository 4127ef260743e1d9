package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health, the liveness probe. No external
// dependency is checked so an unhealthy upstream cannot get the process
// restarted.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// readyHandler handles GET /ready.
func (s *Server) readyHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}
