package stats

import (
	"log/slog"
	"math"
)

// IsValidFloat reports whether v is finite (not NaN or ±Inf) and therefore
// JSON-serializable.
func IsValidFloat(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SanitizeFloat validates v against optional inclusive bounds.
// Returns (v, true) when valid, (def, false) otherwise. min/max may be nil
// to skip the corresponding bound.
func SanitizeFloat(v float64, min, max *float64, def float64) (float64, bool) {
	if !IsValidFloat(v) {
		return def, false
	}
	if min != nil && v < *min {
		return def, false
	}
	if max != nil && v > *max {
		return def, false
	}
	return v, true
}

// FilterValidFloats drops non-finite values from the input and returns the
// surviving values plus the count removed. Invalid values are logged at warn
// level with the caller-provided context string.
func FilterValidFloats(values []float64, logContext string) ([]float64, int) {
	valid := make([]float64, 0, len(values))
	invalid := 0
	for _, v := range values {
		if IsValidFloat(v) {
			valid = append(valid, v)
			continue
		}
		invalid++
		slog.Warn("dropped non-finite value", "context", logContext, "value", v)
	}
	return valid, invalid
}
