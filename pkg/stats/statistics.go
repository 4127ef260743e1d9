// Package stats provides the numeric utilities behind metric extraction and
// aggregation: summary statistics, confidence intervals, anomaly detection,
// trend analysis, series aggregation, unit conversion, and float/timestamp
// validation helpers.
package stats

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Summary holds descriptive statistics for a sample.
// StdDev and CV are nil when the sample is too small to compute them
// (fewer than two values, or a non-positive mean for CV).
type Summary struct {
	Count       int                `json:"count"`
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	StdDev      *float64           `json:"std_dev,omitempty"`
	CV          *float64           `json:"cv,omitempty"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// Compute calculates summary statistics for values.
//
// Percentiles use the nearest-rank definition: idx = int(p*n) clamped to the
// valid range of the sorted sample. p95 and p99 are always included; extra
// percentiles (0 < p < 1) are reported under "pN" keys (e.g. 0.5 → "p50").
func Compute(values []float64, extraPercentiles ...float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("cannot compute statistics of empty sample")
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	s := Summary{
		Count:  n,
		Mean:   mean,
		Median: median(sorted),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Percentiles: map[string]float64{
			"p95": Percentile(sorted, 0.95),
			"p99": Percentile(sorted, 0.99),
		},
	}

	if n >= 2 {
		sd := sampleStdDev(sorted, mean)
		s.StdDev = &sd
		if mean > 0 {
			cv := sd / mean
			s.CV = &cv
		}
	}

	for _, p := range extraPercentiles {
		if p <= 0 || p >= 1 {
			continue
		}
		key := fmt.Sprintf("p%d", int(math.Round(p*100)))
		s.Percentiles[key] = Percentile(sorted, p)
	}
	return s, nil
}

// Percentile returns the nearest-rank percentile of an already-sorted sample.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sampleStdDev computes the sample (n-1) standard deviation.
func sampleStdDev(values []float64, mean float64) float64 {
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// ConfidenceInterval is a two-sided interval around the sample mean.
type ConfidenceInterval struct {
	Level  float64 `json:"level"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Method string  `json:"method"`
}

// critical values for the supported confidence levels. Small samples (n < 30)
// use a t-distribution approximation at 10 degrees of freedom.
var (
	zCritical = map[float64]float64{0.90: 1.645, 0.95: 1.960, 0.99: 2.576}
	tCritical = map[float64]float64{0.90: 1.833, 0.95: 2.228, 0.99: 3.169}
)

// NormalCI computes a normal-theory confidence interval for the mean.
// Supported levels: 0.90, 0.95, 0.99.
func NormalCI(values []float64, level float64) (ConfidenceInterval, error) {
	if len(values) < 2 {
		return ConfidenceInterval{}, fmt.Errorf("confidence interval requires at least 2 values, got %d", len(values))
	}
	crit, ok := zCritical[level]
	if !ok {
		return ConfidenceInterval{}, fmt.Errorf("unsupported confidence level %v (use 0.90, 0.95, or 0.99)", level)
	}
	n := float64(len(values))
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	if len(values) < 30 {
		crit = tCritical[level]
	}
	se := sampleStdDev(values, mean) / math.Sqrt(n)
	return ConfidenceInterval{
		Level:  level,
		Lower:  mean - crit*se,
		Upper:  mean + crit*se,
		Method: "normal",
	}, nil
}

const bootstrapResamples = 1000

// BootstrapCI computes a percentile-method bootstrap confidence interval for
// the mean using 1000 resamples. seed makes the interval reproducible.
func BootstrapCI(values []float64, level float64, seed int64) (ConfidenceInterval, error) {
	if len(values) < 2 {
		return ConfidenceInterval{}, fmt.Errorf("confidence interval requires at least 2 values, got %d", len(values))
	}
	if level <= 0 || level >= 1 {
		return ConfidenceInterval{}, fmt.Errorf("confidence level must be in (0, 1), got %v", level)
	}

	rng := rand.New(rand.NewSource(seed))
	n := len(values)
	means := make([]float64, bootstrapResamples)
	for i := range means {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += values[rng.Intn(n)]
		}
		means[i] = sum / float64(n)
	}
	sort.Float64s(means)

	alpha := (1 - level) / 2
	return ConfidenceInterval{
		Level:  level,
		Lower:  Percentile(means, alpha),
		Upper:  Percentile(means, 1-alpha),
		Method: "bootstrap",
	}, nil
}
