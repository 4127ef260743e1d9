// Package adapter contains the source adapters that speak the Source MCP
// Contract against concrete backends: a Horreum MCP server over HTTP, any
// contract-compliant MCP server over stdio, and an Elasticsearch MCP server
// over stdio.
//
// Adapters encapsulate transport concerns (retries, sessions, timeouts) and
// return validated contract types, so the orchestration layer never sees
// backend details.
package adapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/perfscale/domain-mcp/pkg/contract"
)

// Source is the contract every adapter implements.
type Source interface {
	// SourceDescribe reports source identity, contract version, and limits.
	SourceDescribe(ctx context.Context, req contract.SourceDescribeRequest) (contract.SourceDescribeResponse, error)

	// TestsList lists tests with optional filtering and pagination.
	TestsList(ctx context.Context, req contract.TestsListRequest) (contract.TestsListResponse, error)

	// RunsList lists runs for a test with optional time range and pagination.
	RunsList(ctx context.Context, req contract.RunsListRequest) (contract.RunsListResponse, error)

	// DatasetsSearch searches datasets with filters and pagination.
	DatasetsSearch(ctx context.Context, req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error)

	// DatasetsGet fetches dataset content by identifier.
	DatasetsGet(ctx context.Context, req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error)

	// ArtifactsGet fetches a binary artifact linked to a run.
	ArtifactsGet(ctx context.Context, req contract.ArtifactsGetRequest) (contract.ArtifactsGetResponse, error)

	// RunLabelValues fetches label values for a specific run.
	RunLabelValues(ctx context.Context, req contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error)

	// TestLabelValues fetches aggregated label values across the runs of a
	// test, optionally time-bounded. This is the fast path for extraction.
	TestLabelValues(ctx context.Context, req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error)

	// DatasetLabelValues fetches label values for a specific dataset.
	DatasetLabelValues(ctx context.Context, req contract.DatasetLabelValuesRequest) (contract.DatasetLabelValuesResponse, error)
}

// Registry holds configured source adapters keyed by source id.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
	kinds   map[string]string
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}, kinds: map[string]string{}}
}

// Register adds a source adapter under a logical source id. kind is a short
// human-readable transport label ("HTTP", "stdio bridge") used in status
// logging.
func (r *Registry) Register(sourceID string, src Source, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[sourceID]; !exists {
		r.order = append(r.order, sourceID)
	}
	r.sources[sourceID] = src
	r.kinds[sourceID] = kind
}

// Get returns the adapter registered under sourceID.
func (r *Registry) Get(sourceID string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[sourceID]
	return src, ok
}

// SourceIDs returns registered source ids in registration order.
func (r *Registry) SourceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// LogStatus logs which sources are configured and what functionality that
// enables. Called once at startup.
func (r *Registry) LogStatus() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sources) == 0 {
		slog.Warn("No external MCP sources configured; only raw mode is available. " +
			"Set a config file with a sources block to enable source-driven mode")
		return
	}
	descriptions := make([]string, 0, len(r.order))
	for _, id := range r.order {
		descriptions = append(descriptions, id+" ("+r.kinds[id]+")")
	}
	slog.Info("External MCP sources configured; raw and source-driven modes available",
		"sources", descriptions)
}

// Reset clears the registry. Test helper.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = map[string]Source{}
	r.kinds = map[string]string{}
	r.order = nil
}
