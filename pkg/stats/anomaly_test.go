package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAnomalies_IQR(t *testing.T) {
	values := []float64{10, 11, 12, 11, 10, 12, 11, 100}
	anomalies, err := DetectAnomalies(values, AnomalyIQR, 1.5)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 7, anomalies[0].Index)
	assert.Equal(t, 100.0, anomalies[0].Value)
}

func TestDetectAnomalies_ZScoreConstantSeries(t *testing.T) {
	anomalies, err := DetectAnomalies([]float64{5, 5, 5, 5}, AnomalyZScore, 3.0)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetectAnomalies_MAD(t *testing.T) {
	values := []float64{10, 10, 11, 10, 11, 10, 11, 10, 500}
	anomalies, err := DetectAnomalies(values, AnomalyMAD, 3.5)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 500.0, anomalies[0].Value)
	assert.Greater(t, anomalies[0].Score, 3.5)
}

func TestDetectAnomalies_TooFewValues(t *testing.T) {
	_, err := DetectAnomalies([]float64{1, 2}, AnomalyIQR, 1.5)
	assert.Error(t, err)
}

func TestDetectAnomalies_UnknownMethod(t *testing.T) {
	_, err := DetectAnomalies([]float64{1, 2, 3}, AnomalyMethod("dbscan"), 1)
	assert.Error(t, err)
}

func TestDetectTrend_Linear(t *testing.T) {
	up, err := DetectTrend([]float64{1, 2, 3, 4, 5}, TrendLinear)
	require.NoError(t, err)
	assert.Equal(t, TrendIncreasing, up.Direction)
	assert.InDelta(t, 1.0, up.Slope, 1e-9)

	down, err := DetectTrend([]float64{5, 4, 3, 2, 1}, TrendLinear)
	require.NoError(t, err)
	assert.Equal(t, TrendDecreasing, down.Direction)

	flat, err := DetectTrend([]float64{100, 100.001, 100, 99.999, 100}, TrendLinear)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, flat.Direction)
}

func TestDetectTrend_MannKendall(t *testing.T) {
	up, err := DetectTrend([]float64{1, 3, 2, 4, 5, 6}, TrendMannKendall)
	require.NoError(t, err)
	assert.Equal(t, TrendIncreasing, up.Direction)
	assert.Greater(t, up.Tau, 0.1)

	flat, err := DetectTrend([]float64{1, 3, 2, 3, 1, 2}, TrendMannKendall)
	require.NoError(t, err)
	// Mixed directions: tau should be small.
	assert.Equal(t, TrendStable, flat.Direction)
}

func TestDetectTrend_TooFewValues(t *testing.T) {
	_, err := DetectTrend([]float64{1, 2}, TrendLinear)
	assert.Error(t, err)
}
