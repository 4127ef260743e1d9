package stats

import (
	"fmt"
	"math"
)

// TimeUnit is a duration unit supported by conversion.
type TimeUnit string

const (
	TimeMS  TimeUnit = "ms"
	TimeS   TimeUnit = "s"
	TimeMin TimeUnit = "min"
	TimeH   TimeUnit = "h"
	TimeD   TimeUnit = "d"
)

// DataUnit is a binary data-size unit (1024-based).
type DataUnit string

const (
	DataB  DataUnit = "B"
	DataKB DataUnit = "KB"
	DataMB DataUnit = "MB"
	DataGB DataUnit = "GB"
	DataTB DataUnit = "TB"
)

// factors to the base unit (ms for time, bytes for data).
var (
	timeFactors = map[TimeUnit]float64{
		TimeMS:  1,
		TimeS:   1000,
		TimeMin: 60 * 1000,
		TimeH:   60 * 60 * 1000,
		TimeD:   24 * 60 * 60 * 1000,
	}
	dataFactors = map[DataUnit]float64{
		DataB:  1,
		DataKB: 1024,
		DataMB: 1024 * 1024,
		DataGB: 1024 * 1024 * 1024,
		DataTB: 1024 * 1024 * 1024 * 1024,
	}
	timeScaleOrder = []TimeUnit{TimeD, TimeH, TimeMin, TimeS, TimeMS}
	dataScaleOrder = []DataUnit{DataTB, DataGB, DataMB, DataKB, DataB}
)

// ConvertTime converts a non-negative duration value between time units.
func ConvertTime(value float64, from, to TimeUnit) (float64, error) {
	if value < 0 || !IsValidFloat(value) {
		return 0, fmt.Errorf("invalid time value %v", value)
	}
	ff, ok := timeFactors[from]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", from)
	}
	tf, ok := timeFactors[to]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", to)
	}
	return value * ff / tf, nil
}

// ConvertData converts a non-negative size value between binary data units.
func ConvertData(value float64, from, to DataUnit) (float64, error) {
	if value < 0 || !IsValidFloat(value) {
		return 0, fmt.Errorf("invalid data value %v", value)
	}
	ff, ok := dataFactors[from]
	if !ok {
		return 0, fmt.Errorf("unknown data unit %q", from)
	}
	tf, ok := dataFactors[to]
	if !ok {
		return 0, fmt.Errorf("unknown data unit %q", to)
	}
	return value * ff / tf, nil
}

// AutoScaleTime picks the largest unit where the converted value is >= 1
// and rounds to the requested precision.
func AutoScaleTime(valueMS float64, precision int) (float64, TimeUnit, error) {
	if valueMS < 0 || !IsValidFloat(valueMS) {
		return 0, "", fmt.Errorf("invalid time value %v", valueMS)
	}
	for _, u := range timeScaleOrder {
		scaled := valueMS / timeFactors[u]
		if scaled >= 1 || u == TimeMS {
			return roundTo(scaled, precision), u, nil
		}
	}
	return valueMS, TimeMS, nil
}

// AutoScaleData picks the largest unit where the converted value is >= 1
// and rounds to the requested precision.
func AutoScaleData(valueBytes float64, precision int) (float64, DataUnit, error) {
	if valueBytes < 0 || !IsValidFloat(valueBytes) {
		return 0, "", fmt.Errorf("invalid data value %v", valueBytes)
	}
	for _, u := range dataScaleOrder {
		scaled := valueBytes / dataFactors[u]
		if scaled >= 1 || u == DataB {
			return roundTo(scaled, precision), u, nil
		}
	}
	return valueBytes, DataB, nil
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	shift := math.Pow(10, float64(precision))
	return math.Round(v*shift) / shift
}
