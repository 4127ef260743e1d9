// Package orchestrator implements the get_key_metrics flow shared by the
// HTTP and MCP surfaces: source resolution, test auto-discovery, the
// label-values fast path, the paginated dataset fallback with
// partial-results gathering, and merge-strategy handling.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/perfscale/domain-mcp/pkg/adapter"
	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
)

// defaultDatasetType is assumed when the client names no dataset types.
const defaultDatasetType = "boot-time-verbose"

// fallbackBootTimeTestID is the known boot-time test used when discovery
// finds nothing.
const fallbackBootTimeTestID = "109"

// defaultPageSize bounds page size when the request leaves it unset. The
// orchestrator paginates through all pages regardless.
const defaultPageSize = 100

// minDatasetSuccessRate is the share of dataset fetches that must succeed
// before partial results are returned.
const minDatasetSuccessRate = 0.5

// Request is a typed, normalized get_key_metrics request.
type Request struct {
	SourceID      string
	DatasetTypes  []string
	TestID        string
	RunID         string
	SchemaURI     string
	From          string
	To            string
	Limit         int
	MergeStrategy contract.MergeStrategy
	PlanOnly      bool
	// Data holds raw dataset bodies for raw mode; non-empty Data bypasses
	// source fetching entirely.
	Data []json.RawMessage
	// OSFilter and RunTypeFilter are detection hints from normalization.
	OSFilter      string
	RunTypeFilter string
}

// PlanStep is one tool invocation in a client-executable fetch plan.
type PlanStep struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Response carries extracted metric points (or a fetch plan in plan-only
// mode) plus the canonical model version.
type Response struct {
	MetricPoints []domain.MetricPoint `json:"metric_points,omitempty"`
	FetchPlan    []PlanStep           `json:"fetch_plan,omitempty"`
	ModelVersion string               `json:"domain_model_version"`
}

// Orchestrator wires source adapters and dataset-type plugins into the
// tool-level flows.
type Orchestrator struct {
	sources *adapter.Registry
	plugins *plugin.Registry
}

// New builds an orchestrator over the given registries.
func New(sources *adapter.Registry, plugins *plugin.Registry) *Orchestrator {
	return &Orchestrator{sources: sources, plugins: plugins}
}

// GetKeyMetrics runs the full source-driven flow (or raw / plan-only when
// the request says so).
func (o *Orchestrator) GetKeyMetrics(ctx context.Context, req Request) (Response, error) {
	if req.Limit <= 0 {
		req.Limit = defaultPageSize
	}
	if req.MergeStrategy == "" {
		req.MergeStrategy = contract.MergePreferFast
	}

	if req.PlanOnly {
		return Response{
			FetchPlan:    o.BuildFetchPlan(req.TestID, req.SchemaURI, req.Limit),
			ModelVersion: domain.ModelVersion,
		}, nil
	}

	if len(req.Data) > 0 {
		points, err := o.GetKeyMetricsRaw(ctx, req.DatasetTypes, req.Data, req.OSFilter, req.RunTypeFilter)
		if err != nil {
			return Response{}, err
		}
		return Response{MetricPoints: points, ModelVersion: domain.ModelVersion}, nil
	}

	src, err := o.resolveSource(&req)
	if err != nil {
		return Response{}, err
	}
	if len(req.DatasetTypes) == 0 {
		req.DatasetTypes = []string{defaultDatasetType}
		slog.Info("Auto-configured dataset types", "dataset_types", req.DatasetTypes)
	}

	if req.RunID == "" {
		req.TestID = o.discoverTestID(ctx, src, req.DatasetTypes, req.TestID)
	} else {
		slog.Info("Fetching specific run only", "run_id", req.RunID)
	}

	if req.OSFilter != "" {
		slog.Info("OS filter active", "os_filter", req.OSFilter, "label", "RHIVOS OS ID")
	}

	queryStart := time.Now()
	slog.Info("Query started",
		"dataset_types", req.DatasetTypes,
		"test_id", req.TestID,
		"run_id", req.RunID,
		"os_filter", req.OSFilter,
		"merge_strategy", req.MergeStrategy,
		"from", req.From,
		"to", req.To)

	labelPoints, datasetPoints, err := o.fetchFromSource(ctx, src, req)
	if err != nil {
		return Response{}, err
	}

	points := MergePoints(labelPoints, datasetPoints, req.MergeStrategy)
	if points == nil {
		points = []domain.MetricPoint{}
	}
	slog.Info("Query complete",
		"duration", time.Since(queryStart).Round(10*time.Millisecond),
		"points", len(points),
		"label_points", len(labelPoints),
		"dataset_points", len(datasetPoints),
		"strategy", req.MergeStrategy)

	return Response{MetricPoints: points, ModelVersion: domain.ModelVersion}, nil
}

// GetKeyMetricsRaw extracts metric points from client-provided dataset
// bodies using the named plugins.
func (o *Orchestrator) GetKeyMetricsRaw(ctx context.Context, datasetTypes []string, data []json.RawMessage, osFilter, runTypeFilter string) ([]domain.MetricPoint, error) {
	slog.Debug("Raw extraction started",
		"dataset_types", datasetTypes,
		"datasets", len(data),
		"os_filter", osFilter,
		"run_type_filter", runTypeFilter)

	points := []domain.MetricPoint{}
	for _, pluginID := range datasetTypes {
		plug, ok := o.plugins.Get(pluginID)
		if !ok {
			return nil, o.unknownDatasetType(pluginID)
		}
		for _, body := range data {
			extracted, err := plug.Extract(ctx, plugin.Input{
				Dataset:       body,
				Refs:          map[string]string{},
				OSFilter:      osFilter,
				RunTypeFilter: runTypeFilter,
			})
			if err != nil {
				return nil, fmt.Errorf("plugin %s: %w", pluginID, err)
			}
			points = append(points, extracted...)
		}
	}
	slog.Debug("Raw extraction done", "points", len(points))
	return points, nil
}

// BuildFetchPlan returns a client-executable fetch plan: the datasets.search
// call plus a template datasets.get step the client repeats per result.
func (o *Orchestrator) BuildFetchPlan(testID, schemaURI string, limit int) []PlanStep {
	return []PlanStep{
		{
			Tool: "datasets.search",
			Args: map[string]any{
				"test_id":    testID,
				"schema_uri": schemaURI,
				"page_size":  limit,
			},
		},
		{
			Tool: "datasets.get",
			Args: map[string]any{"dataset_id": "<id from datasets.search>"},
		},
	}
}

// resolveSource fills in req.SourceID (first configured source when unset)
// and returns its adapter.
func (o *Orchestrator) resolveSource(req *Request) (adapter.Source, error) {
	if req.SourceID == "" {
		ids := o.sources.SourceIDs()
		if len(ids) == 0 {
			return nil, &Error{
				Type: ErrTypeMissingConfiguration,
				Detail: "No external MCP source configured. Configure a sources block " +
					"or provide 'data' for raw mode.",
				HTTPStatus: http.StatusBadRequest,
			}
		}
		req.SourceID = ids[0]
		slog.Info("Auto-selected source", "source_id", req.SourceID, "available", ids)
	}

	src, ok := o.sources.Get(req.SourceID)
	if !ok {
		available := o.sources.SourceIDs()
		detail := fmt.Sprintf("Source ID %q not found. Check your sources configuration.", req.SourceID)
		if len(available) == 0 {
			detail = "No external MCP source connection configured. Configure a sources " +
				"block to enable source-driven mode, or use raw mode by providing 'data'."
		}
		return nil, &Error{
			Type:       ErrTypeUnknownSourceID,
			Detail:     detail,
			Options:    available,
			HTTPStatus: http.StatusNotFound,
		}
	}
	return src, nil
}

// discoverTestID finds the boot-time test when the client named none: exact
// name match first, then a broader "boot" search excluding framework boot
// tests, then the known fallback id.
func (o *Orchestrator) discoverTestID(ctx context.Context, src adapter.Source, datasetTypes []string, testID string) string {
	if testID != "" || !containsType(datasetTypes, defaultDatasetType) {
		return testID
	}

	resp, err := src.TestsList(ctx, contract.TestsListRequest{Query: defaultDatasetType, PageSize: 10})
	if err == nil {
		for _, t := range resp.Tests {
			if strings.Contains(strings.ToLower(t.Name), defaultDatasetType) {
				slog.Info("Boot-time test selected", "name", t.Name, "test_id", t.TestID)
				return t.TestID.String()
			}
		}
		resp, err = src.TestsList(ctx, contract.TestsListRequest{Query: "boot", PageSize: 50})
	}
	if err != nil {
		slog.Warn("Test discovery failed", "error", err)
	} else {
		for _, t := range resp.Tests {
			name := strings.ToLower(t.Name)
			if strings.Contains(name, "boot-time") &&
				!strings.Contains(name, "quarkus") && !strings.Contains(name, "spring") {
				slog.Info("Boot-time test selected", "name", t.Name, "test_id", t.TestID)
				return t.TestID.String()
			}
		}
		slog.Warn("No boot-time tests found", "query", "boot")
	}

	slog.Info("Using fallback boot-time test id", "test_id", fallbackBootTimeTestID)
	return fallbackBootTimeTestID
}

// fetchFromSource runs the label-values and/or dataset paths per the merge
// strategy.
func (o *Orchestrator) fetchFromSource(ctx context.Context, src adapter.Source, req Request) (labelPoints, datasetPoints []domain.MetricPoint, err error) {
	fetchLabels := req.MergeStrategy == contract.MergePreferFast ||
		req.MergeStrategy == contract.MergeComprehensive ||
		req.MergeStrategy == contract.MergeLabelsOnly
	fetchDatasets := req.MergeStrategy == contract.MergeDatasetsOnly ||
		req.MergeStrategy == contract.MergeComprehensive

	if fetchLabels {
		items := o.labelValues(ctx, src, req)
		if len(items) > 0 {
			plug, ok := o.plugins.Get(req.DatasetTypes[0])
			if !ok {
				return nil, nil, o.unknownDatasetType(req.DatasetTypes[0])
			}
			labelPoints, err = plug.Extract(ctx, plugin.Input{
				LabelValues:   items,
				Refs:          map[string]string{},
				OSFilter:      req.OSFilter,
				RunTypeFilter: req.RunTypeFilter,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("plugin %s: %w", req.DatasetTypes[0], err)
			}
			slog.Info("Label values path complete",
				"points", len(labelPoints), "strategy", req.MergeStrategy)
		}
	}

	if req.MergeStrategy == contract.MergePreferFast {
		if len(labelPoints) > 0 {
			return labelPoints, nil, nil
		}
		fetchDatasets = true
	}

	if fetchDatasets {
		bodies, ferr := o.fetchSourceDatasets(ctx, src, req)
		if ferr != nil {
			return nil, nil, ferr
		}
		datasetPoints, err = o.GetKeyMetricsRaw(ctx, req.DatasetTypes, bodies, req.OSFilter, req.RunTypeFilter)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Dataset path complete",
			"points", len(datasetPoints), "strategy", req.MergeStrategy)
	}

	if req.MergeStrategy == contract.MergeLabelsOnly && len(labelPoints) == 0 {
		return nil, nil, &Error{
			Type: ErrTypeLabelsUnavailable,
			Detail: "merge_strategy=labels_only but no label values available. Label values " +
				"may not be supported for this query or data source.",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return labelPoints, datasetPoints, nil
}

// labelValues fetches label values when the query allows it, paginating
// through all pages. Failures are swallowed: the caller falls back to the
// dataset path on an empty result.
func (o *Orchestrator) labelValues(ctx context.Context, src adapter.Source, req Request) []contract.ExportedLabelValues {
	if !containsType(req.DatasetTypes, defaultDatasetType) {
		return nil
	}

	if req.RunID != "" {
		var items []contract.ExportedLabelValues
		pageToken := ""
		for {
			resp, err := src.RunLabelValues(ctx, contract.RunLabelValuesRequest{
				RunID:     req.RunID,
				PageSize:  req.Limit,
				PageToken: pageToken,
			})
			if err != nil {
				slog.Debug("Run label values unavailable, falling back to datasets", "error", err)
				return nil
			}
			items = append(items, resp.Items...)
			pageToken = nextToken(resp.Pagination)
			if pageToken == "" {
				return items
			}
		}
	}

	if req.TestID == "" {
		return nil
	}

	lvReq := contract.TestLabelValuesRequest{
		TestID:   req.TestID,
		PageSize: req.Limit,
		// Request both metrics and filtering (dimension) labels; the source
		// default excludes dimension labels like OS ID, Mode, Target.
		Metrics:   true,
		Filtering: true,
		Before:    req.To,
		After:     req.From,
	}
	filter := map[string]any{}
	if req.OSFilter != "" {
		filter["OS ID"] = []string{req.OSFilter}
	}
	if req.RunTypeFilter != "" {
		// Exact-match server-side filter on the modern 'Run type' label.
		// Legacy data (run type inside 'Test Description') is filtered
		// client-side by the plugin.
		filter["Run type"] = []string{req.RunTypeFilter}
	}
	if len(filter) > 0 {
		lvReq.Filter = filter
		lvReq.MultiFilter = true
	}

	var items []contract.ExportedLabelValues
	for {
		resp, err := src.TestLabelValues(ctx, lvReq)
		if err != nil {
			slog.Debug("Test label values unavailable, falling back to datasets", "error", err)
			return nil
		}
		items = append(items, resp.Items...)
		lvReq.PageToken = nextToken(resp.Pagination)
		if lvReq.PageToken == "" {
			return items
		}
	}
}

// fetchSourceDatasets paginates datasets.search, then fetches all dataset
// bodies with partial-results handling.
func (o *Orchestrator) fetchSourceDatasets(ctx context.Context, src adapter.Source, req Request) ([]json.RawMessage, error) {
	search := contract.DatasetsSearchRequest{
		TestID:    req.TestID,
		SchemaURI: req.SchemaURI,
		PageSize:  req.Limit,
		From:      req.From,
		To:        req.To,
	}
	if req.RunID != "" {
		// A run id filter takes precedence over time filters.
		search.RunIDs = []string{req.RunID}
	}

	var datasetIDs []string
	pages := 0
	for {
		pages++
		resp, err := src.DatasetsSearch(ctx, search)
		if err != nil {
			return nil, upstreamError(err, "datasets.search")
		}
		for _, ds := range resp.Datasets {
			datasetIDs = append(datasetIDs, ds.DatasetID.String())
		}
		search.PageToken = nextToken(resp.Pagination)
		if search.PageToken == "" {
			break
		}
	}

	if len(datasetIDs) == 0 {
		slog.Info("Dataset search returned nothing", "pages", pages)
		return nil, nil
	}

	operations := make(map[string]func(context.Context) (contract.DatasetsGetResponse, error), len(datasetIDs))
	for _, id := range datasetIDs {
		operations[id] = func(ctx context.Context) (contract.DatasetsGetResponse, error) {
			return src.DatasetsGet(ctx, contract.DatasetsGetRequest{DatasetID: id})
		}
	}

	result, err := GatherPartial(ctx, operations, "dataset fetch", minDatasetSuccessRate)
	if err != nil {
		if result.AllFailed() {
			return nil, upstreamError(fmt.Errorf("%s", result.Failures[0].Error), "datasets.get")
		}
		return nil, &Error{
			Type:       ErrTypeUpstreamError,
			Detail:     err.Error(),
			HTTPStatus: http.StatusBadGateway,
		}
	}
	if result.HasFailures() {
		slog.Warn("Dataset fetch returned partial results",
			"summary", FormatFailureSummary(result, "dataset fetch"))
	}

	bodies := make([]json.RawMessage, 0, len(result.Successes))
	for _, resp := range result.Successes {
		bodies = append(bodies, flattenContent(resp.Content)...)
	}
	slog.Info("Dataset fetch done",
		"total", len(bodies), "pages", pages, "failures", len(result.Failures))
	return bodies, nil
}

// flattenContent renders dataset content into raw JSON bodies. Horreum
// wraps content in a list; each object item becomes its own body.
func flattenContent(content any) []json.RawMessage {
	var bodies []json.RawMessage
	appendObject := func(v any) {
		if obj, ok := v.(map[string]any); ok {
			if raw, err := json.Marshal(obj); err == nil {
				bodies = append(bodies, raw)
			}
		}
	}
	switch v := content.(type) {
	case map[string]any:
		appendObject(v)
	case []any:
		for _, item := range v {
			appendObject(item)
		}
	}
	return bodies
}

// nextToken returns the next page token, or "" when pagination is done. A
// has_more page without a token would loop forever, so it ends pagination
// with a warning.
func nextToken(p contract.Pagination) string {
	if !p.HasMore {
		return ""
	}
	if p.NextPageToken == "" {
		slog.Warn("Pagination indicated has_more without a next_page_token")
		return ""
	}
	return p.NextPageToken
}

func (o *Orchestrator) unknownDatasetType(pluginID string) *Error {
	return &Error{
		Type:       ErrTypeUnknownDatasetType,
		Detail:     fmt.Sprintf("unknown dataset type %q", pluginID),
		Options:    o.plugins.IDs(),
		HTTPStatus: http.StatusBadRequest,
	}
}

func containsType(datasetTypes []string, want string) bool {
	for _, dt := range datasetTypes {
		if dt == want {
			return true
		}
	}
	return false
}
