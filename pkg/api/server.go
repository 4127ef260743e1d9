// Package api exposes the tool surface over HTTP: health probes, server
// capabilities, domain resources, the get_key_metrics tool endpoints, a
// debug extraction endpoint, and the LLM-backed natural language query
// endpoint. The HTTP layer is intentionally thin and defers to the shared
// orchestrator and normalization used by the MCP surface.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/adapter"
	"github.com/perfscale/domain-mcp/pkg/config"
	"github.com/perfscale/domain-mcp/pkg/orchestrator"
	"github.com/perfscale/domain-mcp/pkg/plugin"
	"github.com/perfscale/domain-mcp/pkg/resources"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	env       config.EnvSettings
	orch      *orchestrator.Orchestrator
	sources   *adapter.Registry
	plugins   *plugin.Registry
	resources *resources.Registry
	query     *QueryService
}

// NewServer builds the server and registers all routes. query may be nil
// when the LLM is not configured; /api/query then answers 503.
func NewServer(
	env config.EnvSettings,
	orch *orchestrator.Orchestrator,
	sources *adapter.Registry,
	plugins *plugin.Registry,
	res *resources.Registry,
	query *QueryService,
) *Server {
	e := echo.New()

	s := &Server{
		echo:      e,
		env:       env,
		orch:      orch,
		sources:   sources,
		plugins:   plugins,
		resources: res,
		query:     query,
	}

	e.Use(correlationID())
	e.Use(requestLogging())
	e.Use(securityHeaders())
	if len(env.CORSOrigins) > 0 {
		e.Use(corsMiddleware(env.CORSOrigins))
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	// Probes stay unauthenticated so orchestrators can reach them.
	e.GET("/health", s.healthHandler)
	e.GET("/ready", s.readyHandler)

	auth := bearerAuth(s.env.HTTPAuthToken)

	e.GET("/capabilities", s.capabilitiesHandler, auth)
	e.GET("/resources", s.listResourcesHandler, auth)
	e.GET("/resources/*", s.readResourceHandler, auth)
	e.POST("/debug/extract", s.debugExtractHandler, auth)
	e.POST("/tools/get_key_metrics", s.getKeyMetricsHandler, auth)
	e.POST("/tools/get_key_metrics_raw", s.getKeyMetricsRawHandler, auth)
	e.POST("/api/query", s.queryHandler, auth)
}

// Handler returns the underlying handler, used by tests and for mounting
// additional surfaces (the MCP streamable endpoint) on the same listener.
func (s *Server) Handler() http.Handler { return s.echo }

// Mount registers an extra handler subtree on the server, e.g. /mcp.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.echo.Any(prefix, echo.WrapHandler(h))
	s.echo.Any(prefix+"/*", echo.WrapHandler(h))
}

// Start serves HTTP on addr, blocking until the listener fails or Shutdown
// is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
