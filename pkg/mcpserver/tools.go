package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/normalize"
	"github.com/perfscale/domain-mcp/pkg/orchestrator"
)

// getKeyMetricsSchema documents the primary tool for MCP clients. The
// description steers models away from the common mistakes: passing OS or
// platform names as test IDs, and doing statistics client-side.
var getKeyMetricsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "source_id": {
      "type": "string",
      "description": "Configured source to query. Auto-selects the first available source when omitted."
    },
    "dataset_types": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Metric types to extract, e.g. [\"boot-time-verbose\"]. Defaults to boot-time-verbose."
    },
    "test_id": {
      "type": "string",
      "description": "Optional test name or ID. Auto-discovered for boot-time queries; never pass OS or platform names here."
    },
    "run_id": {
      "type": "string",
      "description": "Fetch datasets for one specific run only."
    },
    "from_timestamp": {
      "type": "string",
      "description": "Start time: natural language (\"last 30 days\"), ISO date, or epoch millis."
    },
    "to_timestamp": {
      "type": "string",
      "description": "End time: \"now\", \"yesterday\", ISO timestamp, or epoch millis."
    },
    "os_id": {
      "type": "string",
      "description": "OS filter (rhel, autosd, fedora, centos). Aliases like rhivos are normalized."
    },
    "run_type": {
      "type": "string",
      "description": "Run type filter: nightly, ci, release, or manual."
    },
    "merge_strategy": {
      "type": "string",
      "enum": ["prefer_fast", "comprehensive", "labels_only", "datasets_only"],
      "description": "How label-values and dataset extraction paths are combined. Defaults to prefer_fast."
    },
    "limit": {
      "type": "integer",
      "description": "Page size (default 100). The server paginates through all results regardless."
    },
    "plan_only": {
      "type": "boolean",
      "description": "Return a client-executable fetch plan instead of running the query."
    },
    "data": {
      "type": "array",
      "items": {"type": "object"},
      "description": "Raw dataset JSON bodies for raw mode; bypasses configured sources."
    }
  }
}`)

var getKeyMetricsRawSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "dataset_types": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Metric types to extract, e.g. [\"boot-time-verbose\"]."
    },
    "data": {
      "type": "array",
      "items": {"type": "object"},
      "description": "Raw JSON dataset objects from performance tests."
    },
    "os_id": {
      "type": "string",
      "description": "Optional OS filter applied during extraction."
    },
    "run_type_filter": {
      "type": "string",
      "description": "Optional run type filter applied during extraction."
    }
  },
  "required": ["data"]
}`)

var pingSchema = json.RawMessage(`{"type": "object"}`)

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        "ping",
		Description: "Health check. Returns \"ok\" when the server is responsive.",
		InputSchema: pingSchema,
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return textResult("ok"), nil
	})

	s.mcp.AddTool(&mcpsdk.Tool{
		Name: "get_key_metrics",
		Description: "PRIMARY TOOL for boot time and performance analysis. " +
			"Fetches datasets from configured sources (with test auto-discovery " +
			"and full pagination), extracts key metrics server-side, and returns " +
			"metric points with os_id/mode/target dimensions for 3D grouping. " +
			"All parameters are optional. Read domain://examples/boot-time-report-template " +
			"before building reports.",
		InputSchema: getKeyMetricsSchema,
	}, s.getKeyMetricsTool)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name: "get_key_metrics_raw",
		Description: "Extract performance metrics from raw dataset JSON you already " +
			"have, without touching any configured source. Supports boot-time " +
			"analysis and other registered dataset types.",
		InputSchema: getKeyMetricsRawSchema,
	}, s.getKeyMetricsRawTool)
}

func (s *Server) getKeyMetricsTool(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	params, result := decodeArguments(req)
	if result != nil {
		return result, nil
	}

	oreq, err := orchestrator.ParseParams(normalize.GetKeyMetricsParams(params))
	if err != nil {
		return errorResult(err), nil
	}
	resp, err := s.orch.GetKeyMetrics(ctx, oreq)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) getKeyMetricsRawTool(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		DatasetTypes  []string          `json:"dataset_types"`
		Data          []json.RawMessage `json:"data"`
		OSID          string            `json:"os_id"`
		OSFilter      string            `json:"os_filter"`
		RunTypeFilter string            `json:"run_type_filter"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorText("invalid tool arguments: " + err.Error()), nil
	}
	if len(args.DatasetTypes) == 0 {
		args.DatasetTypes = []string{"boot-time-verbose"}
	}
	osFilter := args.OSID
	if osFilter == "" {
		osFilter = args.OSFilter
	}

	points, err := s.orch.GetKeyMetricsRaw(ctx, args.DatasetTypes, args.Data, osFilter, args.RunTypeFilter)
	if err != nil {
		return errorResult(err), nil
	}
	if points == nil {
		points = []domain.MetricPoint{}
	}
	return jsonResult(map[string]any{
		"metric_points":        points,
		"domain_model_version": domain.ModelVersion,
	}), nil
}

func decodeArguments(req *mcpsdk.CallToolRequest) (map[string]any, *mcpsdk.CallToolResult) {
	params := map[string]any{}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return nil, errorText("invalid tool arguments: " + err.Error())
		}
	}
	return params, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcpsdk.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorText("failed to encode result: " + err.Error())
	}
	return textResult(string(data))
}

// errorResult folds a structured failure into tool-error content. Tool
// failures are reported as content rather than protocol errors so the model
// can read the detail and adjust its next call.
func errorResult(err error) *mcpsdk.CallToolResult {
	oerr := orchestrator.AsError(err)
	payload := map[string]any{
		"error":                oerr.Detail,
		"error_type":           oerr.Type,
		"domain_model_version": domain.ModelVersion,
	}
	if len(oerr.Options) > 0 {
		payload["available_options"] = oerr.Options
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		return errorText(oerr.Detail)
	}
	slog.Warn("MCP tool call failed", "error_type", oerr.Type, "detail", oerr.Detail)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func errorText(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: true,
	}
}
