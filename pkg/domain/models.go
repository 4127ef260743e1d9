// Package domain defines the canonical data model produced by dataset-type
// plugins and consumed by tool handlers.
//
// The model is deliberately small and stable: plugins translate whatever shape
// a source backend emits into MetricPoint observations, so everything above the
// plugin layer is source-agnostic.
package domain

import (
	"fmt"
	"math"
	"time"
)

// UndefinedDimension is the sentinel value plugins use for dimension values
// they could not resolve. Consumers can rely on the key always being present.
const UndefinedDimension = "undefined"

// ModelVersion is the semantic version of this model, stamped on Dataset
// so downstream consumers can detect compatibility drift.
const ModelVersion = "1.0.0"

// RunRef references a test run in the source system.
type RunRef struct {
	RunID     string            `json:"run_id"`
	TestID    string            `json:"test_id"`
	StartedAt time.Time         `json:"started_at"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// DatasetRef references a dataset associated with a run.
type DatasetRef struct {
	DatasetID string   `json:"dataset_id"`
	RunID     string   `json:"run_id"`
	SchemaURI string   `json:"schema_uri,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// MetricPoint is a single metric observation in canonical form.
//
// Value must be finite; use NewMetricPoint or Validate to enforce this before
// a point enters the pipeline.
type MetricPoint struct {
	MetricID   string            `json:"metric_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Source     string            `json:"source,omitempty"`
}

// NewMetricPoint constructs a validated MetricPoint.
// Returns an error if value is NaN or infinite.
func NewMetricPoint(metricID string, ts time.Time, value float64) (MetricPoint, error) {
	p := MetricPoint{MetricID: metricID, Timestamp: ts, Value: value}
	if err := p.Validate(); err != nil {
		return MetricPoint{}, err
	}
	return p, nil
}

// Validate checks the invariants a point must satisfy before it is emitted.
func (p MetricPoint) Validate() error {
	if p.MetricID == "" {
		return fmt.Errorf("metric point missing metric_id")
	}
	if !math.IsInf(p.Value, 0) && !math.IsNaN(p.Value) {
		return nil
	}
	return fmt.Errorf("metric %q has non-finite value %v", p.MetricID, p.Value)
}

// Dimension returns the value for key, or UndefinedDimension when unset.
func (p MetricPoint) Dimension(key string) string {
	if p.Dimensions == nil {
		return UndefinedDimension
	}
	if v, ok := p.Dimensions[key]; ok && v != "" {
		return v
	}
	return UndefinedDimension
}

// Dataset is a canonical dataset with its extracted metric points.
type Dataset struct {
	Ref          DatasetRef    `json:"ref"`
	Run          RunRef        `json:"run"`
	MetricPoints []MetricPoint `json:"metric_points"`
	ModelVersion string        `json:"domain_model_version"`
}

// NewDataset builds a Dataset stamped with the current model version.
func NewDataset(ref DatasetRef, run RunRef, points []MetricPoint) Dataset {
	if points == nil {
		points = []MetricPoint{}
	}
	return Dataset{Ref: ref, Run: run, MetricPoints: points, ModelVersion: ModelVersion}
}
