package stats

import (
	"encoding/json"
	"time"
)

// unixMillisThreshold separates Unix seconds from milliseconds.
// 10^10 seconds is far in the future, so any numeric timestamp at or above it
// is treated as milliseconds.
const unixMillisThreshold = 10_000_000_000

// ParseTimestamp parses a timestamp from the formats sources emit:
// RFC3339/ISO8601 strings (with or without the Z suffix) and Unix timestamps
// in seconds or milliseconds. Returns the zero time and false on failure.
func ParseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return parseISO8601(v)
	case float64:
		return parseUnix(v)
	case int64:
		return parseUnix(float64(v))
	case int:
		return parseUnix(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return parseUnix(f)
	default:
		return time.Time{}, false
	}
}

func parseISO8601(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseUnix(v float64) (time.Time, bool) {
	if !IsValidFloat(v) || v < 0 {
		return time.Time{}, false
	}
	if v >= unixMillisThreshold {
		ms := int64(v)
		return time.UnixMilli(ms).UTC(), true
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

// DeltaMS returns the difference end-start in milliseconds.
func DeltaMS(start, end time.Time) float64 {
	return float64(end.Sub(start)) / float64(time.Millisecond)
}

// ToISO8601 formats t as an RFC3339 UTC string with a Z suffix.
func ToISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ToUnix converts t to a Unix timestamp, in milliseconds when millis is true.
func ToUnix(t time.Time, millis bool) int64 {
	if millis {
		return t.UnixMilli()
	}
	return t.Unix()
}
