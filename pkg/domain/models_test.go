package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricPointRejectsNonFiniteValues(t *testing.T) {
	ts := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

	p, err := NewMetricPoint("boot.time.total_ms", ts, 12500)
	require.NoError(t, err)
	assert.Equal(t, "boot.time.total_ms", p.MetricID)
	assert.Equal(t, 12500.0, p.Value)

	_, err = NewMetricPoint("boot.time.total_ms", ts, math.NaN())
	assert.ErrorContains(t, err, "non-finite")

	_, err = NewMetricPoint("boot.time.total_ms", ts, math.Inf(1))
	assert.ErrorContains(t, err, "non-finite")

	_, err = NewMetricPoint("", ts, 1)
	assert.ErrorContains(t, err, "missing metric_id")
}

func TestDimensionFallsBackToUndefined(t *testing.T) {
	p := MetricPoint{Dimensions: map[string]string{"os_id": "rhel", "mode": ""}}

	assert.Equal(t, "rhel", p.Dimension("os_id"))
	assert.Equal(t, UndefinedDimension, p.Dimension("mode"))
	assert.Equal(t, UndefinedDimension, p.Dimension("target"))
	assert.Equal(t, UndefinedDimension, MetricPoint{}.Dimension("os_id"))
}

func TestNewDatasetStampsModelVersion(t *testing.T) {
	ds := NewDataset(DatasetRef{DatasetID: "42"}, RunRef{RunID: "7"}, nil)

	assert.Equal(t, ModelVersion, ds.ModelVersion)
	assert.NotNil(t, ds.MetricPoints)
	assert.Empty(t, ds.MetricPoints)
}
