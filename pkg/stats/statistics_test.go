package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Basic(t *testing.T) {
	s, err := Compute([]float64{10, 20, 30, 40, 50})
	require.NoError(t, err)

	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 30.0, s.Mean, 1e-9)
	assert.InDelta(t, 30.0, s.Median, 1e-9)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	require.NotNil(t, s.StdDev)
	assert.InDelta(t, 15.8113883, *s.StdDev, 1e-6)
	require.NotNil(t, s.CV)
	assert.InDelta(t, 15.8113883/30.0, *s.CV, 1e-6)
}

func TestCompute_EvenCountMedian(t *testing.T) {
	s, err := Compute([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Median, 1e-9)
}

func TestCompute_SingleValueOmitsSpread(t *testing.T) {
	s, err := Compute([]float64{42})
	require.NoError(t, err)
	assert.Nil(t, s.StdDev)
	assert.Nil(t, s.CV)
	assert.Equal(t, 42.0, s.Percentiles["p95"])
}

func TestCompute_ZeroMeanOmitsCV(t *testing.T) {
	s, err := Compute([]float64{-1, 0, 1})
	require.NoError(t, err)
	require.NotNil(t, s.StdDev)
	assert.Nil(t, s.CV)
}

func TestCompute_Empty(t *testing.T) {
	_, err := Compute(nil)
	assert.Error(t, err)
}

func TestCompute_CustomPercentiles(t *testing.T) {
	s, err := Compute([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.5)
	require.NoError(t, err)
	// Nearest rank: idx = int(0.5*10) = 5 → sorted[5] = 6.
	assert.Equal(t, 6.0, s.Percentiles["p50"])
}

func TestPercentile_NearestRankClamps(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	// idx = int(0.99*4) = 3
	assert.Equal(t, 4.0, Percentile(sorted, 0.99))
	// idx = int(1.0*4) = 4, clamped to 3
	assert.Equal(t, 4.0, Percentile(sorted, 1.0))
	assert.Equal(t, 1.0, Percentile(sorted, 0))
}

func TestNormalCI_SmallSampleUsesT(t *testing.T) {
	values := []float64{10, 12, 11, 13, 12, 11, 10, 12, 13, 11}
	ci, err := NormalCI(values, 0.95)
	require.NoError(t, err)
	assert.Equal(t, "normal", ci.Method)
	assert.Less(t, ci.Lower, ci.Upper)

	mean := 11.5
	sd := sampleStdDev(values, mean)
	se := sd / math.Sqrt(10)
	assert.InDelta(t, mean-2.228*se, ci.Lower, 1e-9)
	assert.InDelta(t, mean+2.228*se, ci.Upper, 1e-9)
}

func TestNormalCI_UnsupportedLevel(t *testing.T) {
	_, err := NormalCI([]float64{1, 2, 3}, 0.80)
	assert.Error(t, err)
}

func TestBootstrapCI_Reproducible(t *testing.T) {
	values := []float64{5, 7, 6, 8, 9, 5, 7, 6}
	a, err := BootstrapCI(values, 0.95, 1)
	require.NoError(t, err)
	b, err := BootstrapCI(values, 0.95, 1)
	require.NoError(t, err)

	assert.Equal(t, a.Lower, b.Lower)
	assert.Equal(t, a.Upper, b.Upper)
	assert.Equal(t, "bootstrap", a.Method)
	assert.Less(t, a.Lower, a.Upper)
	// Interval should bracket the sample mean.
	assert.LessOrEqual(t, a.Lower, 6.625)
	assert.GreaterOrEqual(t, a.Upper, 6.625)
}

func TestBootstrapCI_TooFewValues(t *testing.T) {
	_, err := BootstrapCI([]float64{1}, 0.95, 1)
	assert.Error(t, err)
}
