package stats

import (
	"fmt"
	"math"
	"sort"
)

// Anomaly marks a single outlier value in a sample.
type Anomaly struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

// AnomalyMethod selects the outlier detection algorithm.
type AnomalyMethod string

const (
	AnomalyIQR    AnomalyMethod = "iqr"
	AnomalyZScore AnomalyMethod = "zscore"
	AnomalyMAD    AnomalyMethod = "mad"
)

// madScale converts a median absolute deviation into a robust standard
// deviation estimate (Phi^-1(0.75)).
const madScale = 0.6745

// DetectAnomalies finds outliers in values using the given method.
// Requires at least 3 values. threshold semantics per method:
//   - iqr: fence multiplier (typically 1.5)
//   - zscore: |z| cutoff (typically 3.0)
//   - mad: modified z-score cutoff (typically 3.5)
func DetectAnomalies(values []float64, method AnomalyMethod, threshold float64) ([]Anomaly, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("anomaly detection requires at least 3 values, got %d", len(values))
	}
	switch method {
	case AnomalyIQR:
		return detectIQR(values, threshold), nil
	case AnomalyZScore:
		return detectZScore(values, threshold), nil
	case AnomalyMAD:
		return detectMAD(values, threshold), nil
	default:
		return nil, fmt.Errorf("unknown anomaly method %q", method)
	}
}

func detectIQR(values []float64, multiplier float64) []Anomaly {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[3*n/4]
	iqr := q3 - q1
	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr

	var out []Anomaly
	for i, v := range values {
		if v < lower || v > upper {
			score := 0.0
			if iqr > 0 {
				if v < lower {
					score = (lower - v) / iqr
				} else {
					score = (v - upper) / iqr
				}
			}
			out = append(out, Anomaly{Index: i, Value: v, Score: score})
		}
	}
	return out
}

func detectZScore(values []float64, cutoff float64) []Anomaly {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sd := sampleStdDev(values, mean)
	if sd == 0 {
		return nil
	}

	var out []Anomaly
	for i, v := range values {
		z := math.Abs(v-mean) / sd
		if z > cutoff {
			out = append(out, Anomaly{Index: i, Value: v, Score: z})
		}
	}
	return out
}

func detectMAD(values []float64, cutoff float64) []Anomaly {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	med := median(sorted)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	sort.Float64s(deviations)
	mad := median(deviations)
	if mad == 0 {
		return nil
	}

	var out []Anomaly
	for i, v := range values {
		score := madScale * math.Abs(v-med) / mad
		if score > cutoff {
			out = append(out, Anomaly{Index: i, Value: v, Score: score})
		}
	}
	return out
}
