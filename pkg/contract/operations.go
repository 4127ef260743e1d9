package contract

import "time"

// --- tests.list ---

// TestsListRequest asks a source for its known tests.
type TestsListRequest struct {
	Query     string   `json:"query,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	PageToken string   `json:"page_token,omitempty"`
	PageSize  int      `json:"page_size,omitempty"`
}

// TestInfo is test metadata returned by tests.list.
type TestInfo struct {
	TestID      FlexID     `json:"test_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TestsListResponse is the tests.list result page.
type TestsListResponse struct {
	Tests      []TestInfo `json:"tests"`
	Pagination Pagination `json:"pagination"`
	CacheInfo  *CacheInfo `json:"cache_info,omitempty"`
}

// --- runs.list ---

// RunsListRequest asks for runs of a given test, optionally time-bounded.
// From/To accept ISO datetimes, epoch millis, or natural language; the
// interpretation is source-dependent.
type RunsListRequest struct {
	TestID    string `json:"test_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

// RunInfo is run metadata returned by runs.list.
type RunInfo struct {
	RunID       FlexID            `json:"run_id"`
	TestID      FlexID            `json:"test_id"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Status      RunStatus         `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// RunsListResponse is the runs.list result page.
type RunsListResponse struct {
	Runs       []RunInfo  `json:"runs"`
	Pagination Pagination `json:"pagination"`
	CacheInfo  *CacheInfo `json:"cache_info,omitempty"`
}

// --- datasets.search ---

// DatasetsSearchRequest filters datasets by test, schema, run ids and time.
type DatasetsSearchRequest struct {
	TestID    string   `json:"test_id,omitempty"`
	SchemaURI string   `json:"schema_uri,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	RunIDs    []string `json:"run_ids,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	PageToken string   `json:"page_token,omitempty"`
	PageSize  int      `json:"page_size,omitempty"`
}

// DatasetInfo is dataset metadata returned by datasets.search.
type DatasetInfo struct {
	DatasetID   FlexID     `json:"dataset_id"`
	RunID       FlexID     `json:"run_id"`
	TestID      FlexID     `json:"test_id"`
	SchemaURI   string     `json:"schema_uri,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	SizeBytes   *int64     `json:"size_bytes,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
}

// DatasetsSearchResponse is the datasets.search result page.
type DatasetsSearchResponse struct {
	Datasets   []DatasetInfo `json:"datasets"`
	Pagination Pagination    `json:"pagination"`
	CacheInfo  *CacheInfo    `json:"cache_info,omitempty"`
}

// --- datasets.get ---

// DatasetsGetRequest fetches a single dataset's raw content.
type DatasetsGetRequest struct {
	DatasetID       string     `json:"dataset_id"`
	IfNoneMatch     string     `json:"if_none_match,omitempty"`
	IfModifiedSince *time.Time `json:"if_modified_since,omitempty"`
}

// DatasetMetadata describes dataset content encoding details.
type DatasetMetadata struct {
	SchemaURI   string `json:"schema_uri,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	Compression string `json:"compression,omitempty"`
}

// DatasetsGetResponse carries raw dataset content. Content holds the parsed
// JSON body (object, array, or string) exactly as the source returned it.
type DatasetsGetResponse struct {
	DatasetID   FlexID           `json:"dataset_id"`
	Content     any              `json:"content"`
	ContentType string           `json:"content_type,omitempty"`
	SizeBytes   *int64           `json:"size_bytes,omitempty"`
	CacheInfo   *CacheInfo       `json:"cache_info,omitempty"`
	Metadata    *DatasetMetadata `json:"metadata,omitempty"`
}

// --- artifacts.get ---

// ArtifactsGetRequest fetches a named artifact of a run.
type ArtifactsGetRequest struct {
	RunID           string     `json:"run_id"`
	Name            string     `json:"name"`
	IfNoneMatch     string     `json:"if_none_match,omitempty"`
	IfModifiedSince *time.Time `json:"if_modified_since,omitempty"`
}

// ArtifactsGetResponse carries base64-encoded artifact content.
type ArtifactsGetResponse struct {
	RunID       FlexID     `json:"run_id"`
	Name        string     `json:"name"`
	Content     string     `json:"content"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	CacheInfo   *CacheInfo `json:"cache_info,omitempty"`
}

// --- label values ---

// LabelValue is a single label record produced by the source system.
// Value is left raw; consumers coerce as needed.
type LabelValue struct {
	ID        FlexID `json:"id,omitempty"`
	Name      string `json:"name"`
	SchemaURI string `json:"schema,omitempty"`
	Value     any    `json:"value"`
}

// ExportedLabelValues bundles label values for one run/dataset observation
// window.
type ExportedLabelValues struct {
	Values    LabelValueSet `json:"values"`
	RunID     FlexID        `json:"run_id,omitempty"`
	DatasetID FlexID        `json:"dataset_id,omitempty"`
	Start     *time.Time    `json:"start,omitempty"`
	Stop      *time.Time    `json:"stop,omitempty"`
}

// RunLabelValuesRequest fetches label values for a single run.
type RunLabelValuesRequest struct {
	RunID       string         `json:"run_id"`
	Include     []string       `json:"include,omitempty"`
	Exclude     []string       `json:"exclude,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	MultiFilter bool           `json:"multiFilter,omitempty"`
	Sort        string         `json:"sort,omitempty"`
	Direction   string         `json:"direction,omitempty"`
	PageToken   string         `json:"page_token,omitempty"`
	PageSize    int            `json:"page_size,omitempty"`
}

// RunLabelValuesResponse is the run_label_values.get result page.
type RunLabelValuesResponse struct {
	Items      []ExportedLabelValues `json:"items"`
	Pagination Pagination            `json:"pagination"`
	CacheInfo  *CacheInfo            `json:"cache_info,omitempty"`
}

// TestLabelValuesRequest fetches label values across the runs of a test.
// Before/After accept ISO datetimes, epoch millis, or natural language.
type TestLabelValuesRequest struct {
	TestID      string         `json:"test_id"`
	Include     []string       `json:"include,omitempty"`
	Exclude     []string       `json:"exclude,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	MultiFilter bool           `json:"multiFilter,omitempty"`
	Filtering   bool           `json:"filtering,omitempty"`
	Metrics     bool           `json:"metrics,omitempty"`
	Before      string         `json:"before,omitempty"`
	After       string         `json:"after,omitempty"`
	PageToken   string         `json:"page_token,omitempty"`
	PageSize    int            `json:"page_size,omitempty"`
}

// TestLabelValuesResponse is the test_label_values.get result page.
type TestLabelValuesResponse struct {
	Items      []ExportedLabelValues `json:"items"`
	Pagination Pagination            `json:"pagination"`
	CacheInfo  *CacheInfo            `json:"cache_info,omitempty"`
}

// DatasetLabelValuesRequest fetches label values for a single dataset.
type DatasetLabelValuesRequest struct {
	DatasetID string `json:"dataset_id"`
}

// DatasetLabelValuesResponse is the dataset_label_values.get result.
type DatasetLabelValuesResponse struct {
	Values    LabelValueSet `json:"values"`
	CacheInfo *CacheInfo    `json:"cache_info,omitempty"`
}

// --- schemas.get ---

// SchemasGetRequest fetches a dataset schema definition by URI.
type SchemasGetRequest struct {
	SchemaURI string `json:"schema_uri"`
}

// SchemasGetResponse carries a JSON Schema definition.
type SchemasGetResponse struct {
	SchemaURI   string         `json:"schema_uri"`
	Schema      map[string]any `json:"schema"`
	Version     string         `json:"version,omitempty"`
	Description string         `json:"description,omitempty"`
}
