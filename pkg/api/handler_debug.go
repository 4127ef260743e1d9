package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
)

// debugExtractRequest is the POST /debug/extract body.
type debugExtractRequest struct {
	DatasetJSON   map[string]any                 `json:"dataset_json"`
	LabelValues   []contract.ExportedLabelValues `json:"label_values,omitempty"`
	DatasetType   string                         `json:"dataset_type"`
	RunTypeFilter string                         `json:"run_type_filter,omitempty"`
	OSFilter      string                         `json:"os_filter,omitempty"`
}

// debugExtractResponse reports what a plugin extracted from the payload.
type debugExtractResponse struct {
	MetricsExtracted int                  `json:"metrics_extracted"`
	MetricPoints     []domain.MetricPoint `json:"metric_points"`
	ExtractionPath   string               `json:"extraction_path"`
	FiltersApplied   map[string]string    `json:"filters_applied"`
	Logs             []string             `json:"logs"`
}

// debugExtractHandler handles POST /debug/extract: run one plugin against a
// provided payload and report what it extracted. Useful for debugging
// production data issues without touching a source.
func (s *Server) debugExtractHandler(c *echo.Context) error {
	req := debugExtractRequest{DatasetType: "boot-time-verbose"}
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "invalid JSON body: " + err.Error(),
			ErrorType: "invalid_request",
		})
	}

	filters := map[string]string{
		"run_type": req.RunTypeFilter,
		"os":       req.OSFilter,
	}

	plug, ok := s.plugins.Get(req.DatasetType)
	if !ok {
		return c.JSON(http.StatusOK, debugExtractResponse{
			MetricPoints:   []domain.MetricPoint{},
			ExtractionPath: "error",
			FiltersApplied: filters,
			Logs:           []string{fmt.Sprintf("Plugin %s not found", req.DatasetType)},
		})
	}

	var dataset json.RawMessage
	if req.DatasetJSON != nil {
		dataset, _ = json.Marshal(req.DatasetJSON)
	}

	points, err := plug.Extract(c.Request().Context(), plugin.Input{
		Dataset:       dataset,
		Refs:          map[string]string{},
		LabelValues:   req.LabelValues,
		RunTypeFilter: req.RunTypeFilter,
		OSFilter:      req.OSFilter,
	})

	extractionPath := "dataset"
	if len(req.LabelValues) > 0 {
		extractionPath = "label_values"
	}

	logs := []string{}
	if err != nil {
		extractionPath = "error"
		logs = append(logs, fmt.Sprintf("ERROR: %v", err))
		points = nil
	}
	if points == nil {
		points = []domain.MetricPoint{}
	}

	return c.JSON(http.StatusOK, debugExtractResponse{
		MetricsExtracted: len(points),
		MetricPoints:     points,
		ExtractionPath:   extractionPath,
		FiltersApplied:   filters,
		Logs:             logs,
	})
}
