// Package normalize canonicalizes user/client-provided tool parameters so the
// stdio and HTTP surfaces apply identical semantics: synonym mapping, type
// coercion, relative date expansion, dataset-type aliases, and detection of
// OS / run-type identifiers that chat clients tend to misplace in test_id.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Out-of-band keys carrying detected filters to the orchestrator. They are
// not contract fields; handlers pop them before building source requests.
const (
	DetectedOSFilterKey = "_detected_os_filter"
	DetectedRunTypeKey  = "_detected_run_type"
)

// DefaultLimit is the page size applied when the client omits limit. The
// server auto-paginates, so this bounds page size, not total results.
const DefaultLimit = 100

// datasetTypeAliases maps loose dataset type spellings to registered plugin
// ids.
var datasetTypeAliases = map[string]string{
	"boot-time": "boot-time-verbose",
	"boot_time": "boot-time-verbose",
	"boot":      "boot-time-verbose",
}

// knownOSIdentifiers are OS names chat clients commonly pass as test_id
// ("boot time runs for rhel" → test_id="rhel").
var knownOSIdentifiers = map[string]bool{
	"rhel":          true,
	"rhel-9":        true,
	"rhel-8":        true,
	"rhel9":         true,
	"rhel8":         true,
	"autosd":        true,
	"autosd-9":      true,
	"fedora":        true,
	"centos":        true,
	"centos-stream": true,
	"fedora-coreos": true,
	"fcos":          true,
}

// osAliases maps OS spellings to canonical identifiers.
var osAliases = map[string]string{
	"rhel":   "rhel",
	"autosd": "autosd",
}

// knownRunTypes are run type identifiers recognized in test_id and
// schema_uri.
var knownRunTypes = []string{"nightly", "ci", "release", "manual", "ad-hoc", "adhoc"}

var (
	daysAgoPattern   = regexp.MustCompile(`(?i)^(\d+)\s+days?\s+ago$`)
	daySuffixPattern = regexp.MustCompile(`^(\d+)d$`)
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// GetKeyMetricsParams normalizes raw get_key_metrics parameters:
//
//   - unwrap common nesting ({"params": {...}}, {"args": {...}})
//   - map synonyms to canonical names (dataset_type→dataset_types, ...)
//   - coerce numeric ids to strings and limit to int
//   - expand relative dates ("now", "N days ago", "Nd")
//   - normalize dataset type aliases
//   - detect OS and run-type identifiers misplaced in test_id
//   - default limit, drop cosmetic fields some clients add
//
// The input map is not modified.
func GetKeyMetricsParams(raw map[string]any) map[string]any {
	params := raw
	if nested, ok := raw["params"].(map[string]any); ok {
		params = nested
	}
	if args, ok := params["args"].(map[string]any); ok {
		if !hasAny(params, "dataset_types", "data", "source_id") {
			params = args
		}
	}

	p := make(map[string]any, len(params)+2)
	for k, v := range params {
		p[k] = v
	}

	// Synonyms → canonical.
	if v, ok := p["dataset_type"]; ok {
		if _, exists := p["dataset_types"]; !exists {
			p["dataset_types"] = []any{v}
		}
		delete(p, "dataset_type")
	}
	renameFirst(p, "source_id", "source")
	renameFirst(p, "test_id", "testId", "test")
	renameFirst(p, "run_id", "runId", "run")
	renameFirst(p, "schema_uri", "schema")
	renameFirst(p, "from", "from_time", "from_timestamp", "fromTimestamp")
	renameFirst(p, "to", "to_time", "to_timestamp", "toTimestamp")

	// Coerce types.
	coerceIDToString(p, "test_id")
	coerceIDToString(p, "run_id")
	if v, ok := p["limit"]; ok {
		if n, ok := toInt(v); ok {
			p["limit"] = n
		}
	}

	if v, ok := p["from"].(string); ok {
		p["from"] = parseRelativeDate(v)
	}
	if v, ok := p["to"].(string); ok {
		p["to"] = parseRelativeDate(v)
	}

	// Dataset type aliases, tolerating a bare string.
	switch dtypes := p["dataset_types"].(type) {
	case []any:
		mapped := make([]any, len(dtypes))
		for i, dt := range dtypes {
			if s, ok := dt.(string); ok {
				mapped[i] = aliasDatasetType(s)
			} else {
				mapped[i] = dt
			}
		}
		p["dataset_types"] = mapped
	case string:
		p["dataset_types"] = []any{aliasDatasetType(dtypes)}
	}

	// Explicit os_id parameter.
	if osID, _ := p["os_id"].(string); osID != "" {
		canonical := strings.ToLower(osID)
		if alias, ok := osAliases[canonical]; ok {
			canonical = alias
		}
		p[DetectedOSFilterKey] = canonical
		if !hasDatasetTypes(p) {
			p["dataset_types"] = []any{"boot-time-verbose"}
		}
	}

	// test_id may actually be an OS identifier: the OS belongs in a filter,
	// and auto-discovery will find the boot-time test.
	testID, _ := p["test_id"].(string)
	testIDLower := strings.ToLower(testID)
	if knownOSIdentifiers[testIDLower] {
		if !hasDatasetTypes(p) {
			p["dataset_types"] = []any{"boot-time-verbose"}
		}
		delete(p, "test_id")
		canonical := testIDLower
		if alias, ok := osAliases[canonical]; ok {
			canonical = alias
		}
		p[DetectedOSFilterKey] = canonical
	}

	// Explicit run_type parameter takes priority over detection.
	if hasAny(p, "run_type", "runType") {
		runType, _ := p["run_type"].(string)
		if runType == "" {
			runType, _ = p["runType"].(string)
		}
		if runType != "" {
			lower := strings.ToLower(runType)
			if lower == "ad-hoc" || lower == "adhoc" {
				lower = "manual"
			}
			p[DetectedRunTypeKey] = lower
		}
		delete(p, "run_type")
		delete(p, "runType")
	}

	// test_id may be a run type identifier.
	if _, detected := p[DetectedRunTypeKey]; !detected && containsString(knownRunTypes, testIDLower) {
		p[DetectedRunTypeKey] = testIDLower
		delete(p, "test_id")
		if !hasDatasetTypes(p) {
			p["dataset_types"] = []any{"boot-time-verbose"}
		}
	}

	// Run type keywords embedded in other string parameters ("show me
	// nightly boot times").
	if _, detected := p[DetectedRunTypeKey]; !detected {
	scan:
		for _, key := range []string{"test_id", "schema_uri"} {
			val, _ := p[key].(string)
			val = strings.ToLower(val)
			for _, runType := range knownRunTypes {
				if val != "" && strings.Contains(val, runType) {
					p[DetectedRunTypeKey] = runType
					if key == "test_id" {
						delete(p, "test_id")
						if !hasDatasetTypes(p) {
							p["dataset_types"] = []any{"boot-time-verbose"}
						}
					}
					break scan
				}
			}
		}
	}

	if _, ok := p["limit"]; !ok {
		p["limit"] = DefaultLimit
	}

	// Cosmetic fields some clients add; nothing downstream reads them.
	delete(p, "output_format")
	delete(p, "table_format")

	return p
}

// parseRelativeDate expands "now", "N days ago" and "Nd" to ISO timestamps.
// Anything else passes through for the source to interpret.
func parseRelativeDate(value string) string {
	if strings.EqualFold(value, "now") {
		return formatISO(nowFunc())
	}
	if m := daysAgoPattern.FindStringSubmatch(value); m != nil {
		days, _ := strconv.Atoi(m[1])
		return formatISO(nowFunc().AddDate(0, 0, -days))
	}
	if m := daySuffixPattern.FindStringSubmatch(value); m != nil {
		days, _ := strconv.Atoi(m[1])
		return formatISO(nowFunc().AddDate(0, 0, -days))
	}
	return value
}

func formatISO(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000") + "Z"
}

func aliasDatasetType(s string) string {
	if canonical, ok := datasetTypeAliases[s]; ok {
		return canonical
	}
	return s
}

// renameFirst moves the first present synonym to the canonical key, unless
// the canonical key is already set.
func renameFirst(p map[string]any, canonical string, synonyms ...string) {
	for _, syn := range synonyms {
		v, ok := p[syn]
		if !ok {
			continue
		}
		if _, exists := p[canonical]; !exists {
			p[canonical] = v
			delete(p, syn)
			return
		}
	}
}

// coerceIDToString turns numeric ids into strings (294 → "294").
func coerceIDToString(p map[string]any, key string) {
	switch v := p[key].(type) {
	case float64:
		if v == float64(int64(v)) {
			p[key] = strconv.FormatInt(int64(v), 10)
		} else {
			p[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	case int:
		p[key] = strconv.Itoa(v)
	case int64:
		p[key] = strconv.FormatInt(v, 10)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func hasAny(p map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := p[k]; ok {
			return true
		}
	}
	return false
}

func hasDatasetTypes(p map[string]any) bool {
	switch v := p["dataset_types"].(type) {
	case []any:
		return len(v) > 0
	case string:
		return v != ""
	case nil:
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
