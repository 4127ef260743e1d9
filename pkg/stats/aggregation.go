package stats

import (
	"fmt"
	"sort"
)

// Strategy selects how a series of values collapses into one number.
type Strategy string

const (
	StrategyMean   Strategy = "mean"
	StrategyMedian Strategy = "median"
	StrategyMin    Strategy = "min"
	StrategyMax    Strategy = "max"
	StrategyP95    Strategy = "p95"
	StrategyP99    Strategy = "p99"
	StrategyFirst  Strategy = "first"
	StrategyLast   Strategy = "last"
	StrategySum    Strategy = "sum"
)

// MissingPolicy controls how gaps (nil entries) in a series are handled
// before aggregation.
type MissingPolicy string

const (
	// MissingSkip drops gaps from the series.
	MissingSkip MissingPolicy = "skip"
	// MissingZero substitutes zero for gaps.
	MissingZero MissingPolicy = "zero"
	// MissingInterpolate fills interior gaps linearly; leading gaps take the
	// first known value, trailing gaps the last known value.
	MissingInterpolate MissingPolicy = "interpolate"
	// MissingForwardFill carries the last known value forward; leading gaps
	// are dropped.
	MissingForwardFill MissingPolicy = "forward_fill"
	// MissingRaise fails on any gap.
	MissingRaise MissingPolicy = "raise"
)

// ResolveMissing applies a missing-value policy to a series with gaps.
func ResolveMissing(series []*float64, policy MissingPolicy) ([]float64, error) {
	switch policy {
	case MissingSkip, "":
		out := make([]float64, 0, len(series))
		for _, v := range series {
			if v != nil {
				out = append(out, *v)
			}
		}
		return out, nil

	case MissingZero:
		out := make([]float64, len(series))
		for i, v := range series {
			if v != nil {
				out[i] = *v
			}
		}
		return out, nil

	case MissingRaise:
		out := make([]float64, len(series))
		for i, v := range series {
			if v == nil {
				return nil, fmt.Errorf("missing value at index %d", i)
			}
			out[i] = *v
		}
		return out, nil

	case MissingForwardFill:
		out := make([]float64, 0, len(series))
		var last *float64
		for _, v := range series {
			if v != nil {
				last = v
			}
			if last != nil {
				out = append(out, *last)
			}
		}
		return out, nil

	case MissingInterpolate:
		return interpolate(series)

	default:
		return nil, fmt.Errorf("unknown missing policy %q", policy)
	}
}

// interpolate fills gaps linearly between known neighbours and extends the
// nearest known value across the head and tail.
func interpolate(series []*float64) ([]float64, error) {
	known := make([]int, 0, len(series))
	for i, v := range series {
		if v != nil {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("cannot interpolate a series with no known values")
	}

	out := make([]float64, len(series))
	for i := range series {
		if series[i] != nil {
			out[i] = *series[i]
			continue
		}
		// Find surrounding known indices.
		prev, next := -1, -1
		for _, k := range known {
			if k < i {
				prev = k
			} else {
				next = k
				break
			}
		}
		switch {
		case prev == -1:
			out[i] = *series[next]
		case next == -1:
			out[i] = *series[prev]
		default:
			span := float64(next - prev)
			frac := float64(i-prev) / span
			out[i] = *series[prev] + frac*(*series[next]-*series[prev])
		}
	}
	return out, nil
}

// Aggregate collapses values using the given strategy.
func Aggregate(values []float64, strategy Strategy) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("cannot aggregate an empty series")
	}
	switch strategy {
	case StrategyMean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case StrategyMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return median(sorted), nil
	case StrategyMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case StrategyMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case StrategyP95, StrategyP99:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		p := 0.95
		if strategy == StrategyP99 {
			p = 0.99
		}
		return Percentile(sorted, p), nil
	case StrategyFirst:
		return values[0], nil
	case StrategyLast:
		return values[len(values)-1], nil
	case StrategySum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	default:
		return 0, fmt.Errorf("unknown aggregation strategy %q", strategy)
	}
}

// AggregateSeries resolves gaps and aggregates in one step.
func AggregateSeries(series []*float64, strategy Strategy, policy MissingPolicy) (float64, error) {
	values, err := ResolveMissing(series, policy)
	if err != nil {
		return 0, err
	}
	return Aggregate(values, strategy)
}
