// Package mcpserver exposes the tool surface over the Model Context
// Protocol so MCP-capable AI chat clients can connect directly. The same
// server serves two transports: stdio for local clients and streamable
// HTTP mounted under /mcp on the API listener.
package mcpserver

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/perfscale/domain-mcp/pkg/orchestrator"
	"github.com/perfscale/domain-mcp/pkg/resources"
	"github.com/perfscale/domain-mcp/pkg/version"
)

// Server wraps the MCP server with the domain tool and resource handlers.
type Server struct {
	mcp  *mcpsdk.Server
	orch *orchestrator.Orchestrator
	res  *resources.Registry
}

// New builds the MCP server and registers the ping, get_key_metrics, and
// get_key_metrics_raw tools plus every domain:// resource.
func New(orch *orchestrator.Orchestrator, res *resources.Registry) *Server {
	s := &Server{
		mcp: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    version.AppName,
			Version: version.Version,
		}, nil),
		orch: orch,
		res:  res,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// RunStdio serves MCP over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP handler for mounting on the API
// listener.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil)
}

func (s *Server) registerResources() {
	for _, meta := range s.res.List() {
		uri := meta.URI
		s.mcp.AddResource(&mcpsdk.Resource{
			URI:         meta.URI,
			Name:        meta.Name,
			Description: meta.Description,
			MIMEType:    meta.MimeType,
		}, func(_ context.Context, _ *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
			result, err := s.res.Read(uri)
			if err != nil {
				return nil, err
			}
			contents := make([]*mcpsdk.ResourceContents, 0, len(result.Contents))
			for _, c := range result.Contents {
				contents = append(contents, &mcpsdk.ResourceContents{
					URI:      c.URI,
					MIMEType: c.MimeType,
					Text:     c.Text,
				})
			}
			return &mcpsdk.ReadResourceResult{Contents: contents}, nil
		})
	}
}
