package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/stats"
	"github.com/perfscale/domain-mcp/pkg/version"
)

// esDefaultPageSize is the page size used when a request leaves it unset.
const esDefaultPageSize = 100

// ErrArtifactsUnsupported is returned for artifacts.get on sources that have
// no artifact storage.
var ErrArtifactsUnsupported = errors.New("artifacts are not supported by this source")

// Elasticsearch maps the Source MCP Contract onto a generic Elasticsearch
// MCP server reached through a stdio bridge. Indices become tests and
// documents become datasets; the composite dataset id "index::doc_id"
// carries both coordinates.
//
// The ES server is not contract-aware, so this adapter does the translation
// itself on top of raw tool calls (list_indices, search).
type Elasticsearch struct {
	caller toolCaller
}

var _ Source = (*Elasticsearch)(nil)

// NewElasticsearch wraps a stdio bridge (or any raw tool caller) with the
// index/document mapping.
func NewElasticsearch(caller toolCaller) *Elasticsearch {
	return &Elasticsearch{caller: caller}
}

// SourceDescribe is answered locally. Elasticsearch paginates and exposes
// index mappings as schemas, but has no dataset caching or streaming.
func (e *Elasticsearch) SourceDescribe(_ context.Context, _ contract.SourceDescribeRequest) (contract.SourceDescribeResponse, error) {
	maxPage := horreumMaxPageSize
	return contract.SourceDescribeResponse{
		SourceType:      contract.SourceTypeElasticsearch,
		Version:         version.Version,
		ContractVersion: contract.ContractVersion,
		Capabilities:    contract.SourceCapabilities{Pagination: true, Schemas: true},
		Limits:          &contract.SourceLimits{MaxPageSize: &maxPage},
	}, nil
}

// TestsList lists indices as tests. The index list is paginated locally with
// a numeric offset token since list_indices returns everything at once.
func (e *Elasticsearch) TestsList(ctx context.Context, req contract.TestsListRequest) (contract.TestsListResponse, error) {
	pattern := req.Query
	if pattern == "" {
		pattern = "*"
	}
	raw, err := e.caller.CallTool(ctx, "list_indices", map[string]any{"index_pattern": pattern})
	if err != nil {
		return contract.TestsListResponse{}, err
	}

	names := indexNames(gjson.ParseBytes(raw))
	tests := make([]contract.TestInfo, 0, len(names))
	for _, name := range names {
		tests = append(tests, contract.TestInfo{
			TestID:      contract.FlexID(name),
			Name:        name,
			Description: "Elasticsearch Index",
			Tags:        []string{"elasticsearch", "index"},
		})
	}

	start := pageOffset(req.PageToken)
	size := req.PageSize
	if size <= 0 {
		size = esDefaultPageSize
	}
	end := min(start+size, len(tests))
	if start > len(tests) {
		start = len(tests)
	}

	total := len(tests)
	resp := contract.TestsListResponse{
		Tests:      tests[start:end],
		Pagination: contract.Pagination{HasMore: end < total, TotalCount: &total},
	}
	if end < total {
		resp.Pagination.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

// RunsList returns an empty page: Elasticsearch has no run concept, datasets
// hang directly off the index.
func (e *Elasticsearch) RunsList(_ context.Context, _ contract.RunsListRequest) (contract.RunsListResponse, error) {
	total := 0
	return contract.RunsListResponse{
		Runs:       []contract.RunInfo{},
		Pagination: contract.Pagination{TotalCount: &total},
	}, nil
}

// DatasetsSearch searches documents in the index named by test_id. Search
// failures degrade to an empty page so partial-results aggregation across
// sources keeps working.
func (e *Elasticsearch) DatasetsSearch(ctx context.Context, req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
	if req.TestID == "" {
		slog.Warn("Dataset search without test_id against Elasticsearch; returning empty page")
		return contract.DatasetsSearchResponse{Datasets: []contract.DatasetInfo{}}, nil
	}

	size := req.PageSize
	if size <= 0 {
		size = esDefaultPageSize
	}
	from := pageOffset(req.PageToken)

	var filters []map[string]any
	if req.From != "" || req.To != "" {
		timeRange := map[string]any{}
		if req.From != "" {
			timeRange["gte"] = req.From
		}
		if req.To != "" {
			timeRange["lte"] = req.To
		}
		filters = append(filters, map[string]any{"range": map[string]any{"@timestamp": timeRange}})
	}

	queryBody := map[string]any{
		"size": size,
		"from": from,
		"sort": []map[string]any{{"@timestamp": map[string]any{"order": "desc"}}},
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
	}

	raw, err := e.caller.CallTool(ctx, "search", map[string]any{
		"index":      req.TestID,
		"query_body": queryBody,
	})
	if err != nil {
		slog.Error("Elasticsearch search failed, returning empty page",
			"index", req.TestID, "error", err)
		return contract.DatasetsSearchResponse{Datasets: []contract.DatasetInfo{}}, nil
	}

	result := gjson.ParseBytes(raw)
	hits := result.Get("hits.hits").Array()
	datasets := make([]contract.DatasetInfo, 0, len(hits))
	for _, hit := range hits {
		docID := hit.Get("_id").String()
		info := contract.DatasetInfo{
			DatasetID:   contract.FlexID(req.TestID + "::" + docID),
			RunID:       "unknown",
			TestID:      contract.FlexID(req.TestID),
			Name:        "Log " + docID,
			ContentType: "application/json",
		}
		if ts, ok := stats.ParseTimestamp(hit.Get("_source.\\@timestamp").Value()); ok {
			info.CreatedAt = &ts
		}
		datasets = append(datasets, info)
	}

	total := int(result.Get("hits.total.value").Int())
	nextFrom := from + len(hits)
	resp := contract.DatasetsSearchResponse{
		Datasets:   datasets,
		Pagination: contract.Pagination{HasMore: nextFrom < total, TotalCount: &total},
	}
	if resp.Pagination.HasMore {
		resp.Pagination.NextPageToken = strconv.Itoa(nextFrom)
	}
	return resp, nil
}

// DatasetsGet fetches a single document by its composite "index::doc_id" id.
func (e *Elasticsearch) DatasetsGet(ctx context.Context, req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
	index, docID, ok := strings.Cut(req.DatasetID, "::")
	if !ok || index == "" || docID == "" {
		return contract.DatasetsGetResponse{}, fmt.Errorf("invalid dataset_id format %q, expected 'index::doc_id'", req.DatasetID)
	}

	raw, err := e.caller.CallTool(ctx, "search", map[string]any{
		"index": index,
		"query_body": map[string]any{
			"query": map[string]any{"ids": map[string]any{"values": []string{docID}}},
		},
	})
	if err != nil {
		return contract.DatasetsGetResponse{}, err
	}

	hits := gjson.ParseBytes(raw).Get("hits.hits").Array()
	if len(hits) == 0 {
		return contract.DatasetsGetResponse{}, fmt.Errorf("document not found: %s", req.DatasetID)
	}

	source, _ := hits[0].Get("_source").Value().(map[string]any)
	if source == nil {
		source = map[string]any{}
	}
	// Keep the document coordinates visible to extraction plugins.
	source["_es_id"] = docID
	source["_es_index"] = index

	return contract.DatasetsGetResponse{
		DatasetID:   contract.FlexID(req.DatasetID),
		Content:     source,
		ContentType: "application/json",
	}, nil
}

// ArtifactsGet is not supported: Elasticsearch documents have no attached
// binary artifacts.
func (e *Elasticsearch) ArtifactsGet(_ context.Context, req contract.ArtifactsGetRequest) (contract.ArtifactsGetResponse, error) {
	return contract.ArtifactsGetResponse{}, fmt.Errorf("artifact %q for run %s: %w", req.Name, req.RunID, ErrArtifactsUnsupported)
}

// RunLabelValues returns an empty page: logs carry no Horreum-style labels.
func (e *Elasticsearch) RunLabelValues(_ context.Context, _ contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error) {
	return contract.RunLabelValuesResponse{Items: []contract.ExportedLabelValues{}}, nil
}

// TestLabelValues returns an empty page, steering extraction to the dataset
// path.
func (e *Elasticsearch) TestLabelValues(_ context.Context, _ contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
	return contract.TestLabelValuesResponse{Items: []contract.ExportedLabelValues{}}, nil
}

// DatasetLabelValues returns an empty set.
func (e *Elasticsearch) DatasetLabelValues(_ context.Context, _ contract.DatasetLabelValuesRequest) (contract.DatasetLabelValuesResponse, error) {
	return contract.DatasetLabelValuesResponse{Values: contract.LabelValueSet{}}, nil
}

// indexNames extracts index names from the list_indices result, which comes
// in several shapes: a bare list, {"indices": [...]}, or {"items": [...]}.
// List entries are either plain strings or objects with an index/name field.
func indexNames(result gjson.Result) []string {
	list := result
	if result.IsObject() {
		if indices := result.Get("indices"); indices.Exists() {
			list = indices
		} else if items := result.Get("items"); items.Exists() {
			list = items
		}
	}

	var names []string
	for _, entry := range list.Array() {
		switch {
		case entry.Type == gjson.String:
			names = append(names, entry.String())
		case entry.IsObject():
			name := entry.Get("index").String()
			if name == "" {
				name = entry.Get("name").String()
			}
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// pageOffset parses a numeric page token, treating anything else as zero.
func pageOffset(token string) int {
	if token == "" {
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
