package orchestrator

import (
	"log/slog"
	"sort"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
)

type pointKey struct {
	metricID  string
	timestamp int64
}

// MergePoints combines the label-values and dataset extraction results per
// the merge strategy. In comprehensive mode points are de-duplicated on
// (metric_id, timestamp) with label-derived points taking precedence, since
// they are pre-aggregated by the source.
func MergePoints(labelPoints, datasetPoints []domain.MetricPoint, strategy contract.MergeStrategy) []domain.MetricPoint {
	switch strategy {
	case contract.MergeDatasetsOnly:
		return datasetPoints
	case contract.MergeLabelsOnly:
		return labelPoints
	case contract.MergeComprehensive:
		// handled below
	default: // prefer_fast
		if len(labelPoints) > 0 {
			return labelPoints
		}
		return datasetPoints
	}

	merged := make(map[pointKey]domain.MetricPoint, len(labelPoints)+len(datasetPoints))
	for _, p := range datasetPoints {
		merged[pointKey{p.MetricID, p.Timestamp.UnixNano()}] = p
	}
	for _, p := range labelPoints {
		merged[pointKey{p.MetricID, p.Timestamp.UnixNano()}] = p
	}

	result := make([]domain.MetricPoint, 0, len(merged))
	for _, p := range merged {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].MetricID < result[j].MetricID
	})

	if len(labelPoints) > 0 && len(datasetPoints) > 0 {
		slog.Info("Merged label and dataset points",
			"label_points", len(labelPoints),
			"dataset_points", len(datasetPoints),
			"merged_points", len(result),
			"duplicates_removed", len(labelPoints)+len(datasetPoints)-len(result))
	}
	return result
}
