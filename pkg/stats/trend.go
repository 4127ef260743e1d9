package stats

import (
	"fmt"
	"math"
)

// TrendDirection classifies the movement of a series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendMethod selects the trend detection algorithm.
type TrendMethod string

const (
	TrendLinear      TrendMethod = "linear"
	TrendMannKendall TrendMethod = "mann-kendall"
)

// Trend is the result of trend detection over an ordered series.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope,omitempty"`
	Tau       float64        `json:"tau,omitempty"`
	Method    TrendMethod    `json:"method"`
}

// stableSlopeFraction: a linear slope smaller than this fraction of the mean
// magnitude per step is treated as noise.
const stableSlopeFraction = 0.001

// kendallTauBand: |tau| within this band is reported as stable.
const kendallTauBand = 0.1

// DetectTrend determines the direction of an ordered series.
// Requires at least 3 values.
func DetectTrend(values []float64, method TrendMethod) (Trend, error) {
	if len(values) < 3 {
		return Trend{}, fmt.Errorf("trend detection requires at least 3 values, got %d", len(values))
	}
	switch method {
	case TrendLinear:
		return linearTrend(values), nil
	case TrendMannKendall:
		return mannKendallTrend(values), nil
	default:
		return Trend{}, fmt.Errorf("unknown trend method %q", method)
	}
}

// linearTrend fits a least-squares line over index positions and classifies
// the slope against a mean-relative stability band.
func linearTrend(values []float64) Trend {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	slope := 0.0
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	mean := sumY / n

	t := Trend{Slope: slope, Method: TrendLinear}
	switch {
	case math.Abs(slope) < stableSlopeFraction*math.Abs(mean):
		t.Direction = TrendStable
	case slope > 0:
		t.Direction = TrendIncreasing
	default:
		t.Direction = TrendDecreasing
	}
	return t
}

// mannKendallTrend computes Kendall's tau over all ordered pairs.
func mannKendallTrend(values []float64) Trend {
	n := len(values)
	s := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case values[j] > values[i]:
				s++
			case values[j] < values[i]:
				s--
			}
		}
	}
	pairs := float64(n*(n-1)) / 2
	tau := float64(s) / pairs

	t := Trend{Tau: tau, Method: TrendMannKendall}
	switch {
	case math.Abs(tau) <= kendallTauBand:
		t.Direction = TrendStable
	case tau > 0:
		t.Direction = TrendIncreasing
	default:
		t.Direction = TrendDecreasing
	}
	return t
}
