// Package plugin defines the dataset-type plugin interface and the registry
// that tool handlers resolve plugins from.
//
// A plugin translates one family of dataset shapes (a Horreum schema, an
// Elasticsearch document layout) into canonical domain.MetricPoint
// observations. Plugins self-register into the default registry from their
// package init, so enabling a plugin is a blank import away.
package plugin

import (
	"context"
	"encoding/json"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
)

// GlossaryEntry documents one canonical metric a plugin emits.
type GlossaryEntry struct {
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

// Input carries everything a plugin may extract from.
//
// LabelValues, when present, are the preferred extraction path: they are
// pre-transformed by the source, smaller than the full dataset, and already
// server-filtered. Dataset is the raw JSON body used as the fallback path.
type Input struct {
	// Dataset is the raw dataset JSON content.
	Dataset json.RawMessage

	// Refs carries contextual references such as run_id and dataset_id.
	Refs map[string]string

	// LabelValues are pre-transformed label value bundles from the source.
	LabelValues []contract.ExportedLabelValues

	// OSFilter keeps only observations whose OS dimension matches
	// (case-insensitive). Empty means no filtering.
	OSFilter string

	// RunTypeFilter keeps only observations from runs of the given type,
	// e.g. "nightly" or "ci". Empty means no filtering.
	RunTypeFilter string
}

// Plugin extracts canonical metric points from source data.
type Plugin interface {
	// ID is the stable plugin identifier used in configuration.
	ID() string

	// Glossary describes every metric the plugin can emit.
	Glossary() map[string]GlossaryEntry

	// KPIs lists the metric ids considered key performance indicators,
	// primary KPI first.
	KPIs() []string

	// Extract produces metric points from the input. An empty result with a
	// nil error means the input did not match any shape the plugin knows.
	Extract(ctx context.Context, in Input) ([]domain.MetricPoint, error)
}
