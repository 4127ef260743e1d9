package api

import (
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/normalize"
	"github.com/perfscale/domain-mcp/pkg/orchestrator"
)

// getKeyMetricsHandler handles POST /tools/get_key_metrics. The body is an
// open parameter map so clients can use any of the accepted synonyms; it
// runs through normalization before typed parsing, exactly like the MCP
// tool surface.
func (s *Server) getKeyMetricsHandler(c *echo.Context) error {
	var params map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&params); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "invalid JSON body: " + err.Error(),
			ErrorType: "invalid_request",
		})
	}

	req, err := orchestrator.ParseParams(normalize.GetKeyMetricsParams(params))
	if err != nil {
		return writeError(c, err)
	}

	resp, err := s.orch.GetKeyMetrics(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// rawMetricsRequest is the POST /tools/get_key_metrics_raw body.
type rawMetricsRequest struct {
	DatasetTypes []string          `json:"dataset_types"`
	Data         []json.RawMessage `json:"data"`
	OSID         string            `json:"os_id"`
}

// rawMetricsResponse mirrors the source-driven response shape for raw mode.
type rawMetricsResponse struct {
	MetricPoints []domain.MetricPoint `json:"metric_points"`
	ModelVersion string               `json:"domain_model_version"`
}

// getKeyMetricsRawHandler handles POST /tools/get_key_metrics_raw:
// extraction over client-provided dataset bodies, no source access. The OS
// filter passes through as-is; run-type detection only applies to
// source-driven queries.
func (s *Server) getKeyMetricsRawHandler(c *echo.Context) error {
	var req rawMetricsRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "invalid JSON body: " + err.Error(),
			ErrorType: "invalid_request",
		})
	}
	if len(req.DatasetTypes) == 0 {
		req.DatasetTypes = []string{"boot-time-verbose"}
	}

	points, err := s.orch.GetKeyMetricsRaw(c.Request().Context(), req.DatasetTypes, req.Data, req.OSID, "")
	if err != nil {
		return writeError(c, err)
	}
	if points == nil {
		points = []domain.MetricPoint{}
	}
	return c.JSON(http.StatusOK, rawMetricsResponse{
		MetricPoints: points,
		ModelVersion: domain.ModelVersion,
	})
}
