package boottime

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/stats"
)

// Label names with dedicated meaning in boot-time exports.
const (
	labelRunType   = "Run type"
	labelTestDesc  = "Test Description"
	labelOSID      = "RHIVOS OS ID"
	labelMode      = "RHIVOS Mode"
	labelTarget    = "RHIVOS Target"
	labelRelease   = "RHIVOS Release"
	labelImageName = "RHIVOS image name"
	labelSamples   = "Number of Samples"
	labelUser      = "User"
	labelBuild     = "RHIVOS Build"
)

// extractFromLabelValues is the preferred extraction path.
//
// Total boot time is CALCULATED by summing boot phases, never taken from a
// label directly. A missing or non-numeric phase counts as 0 toward the sum
// and is reported through the missing_phases dimension.
func (p *Plugin) extractFromLabelValues(items []contract.ExportedLabelValues, runTypeFilter, osFilter string) []domain.MetricPoint {
	log := slog.With("plugin", pluginID)
	log.Info("Extracting from label values",
		"item_count", len(items),
		"run_type_filter", runTypeFilter,
		"os_filter", osFilter)

	var (
		points            []domain.MetricPoint
		filteredByRunType int
		filteredByOS      int
		labelsFound       []string
		skippedLabels     []string
	)
	seenLabels := map[string]bool{}
	seenSkipped := map[string]bool{}

	for _, item := range items {
		if skip := filterByRunType(item.Values, runTypeFilter); skip {
			filteredByRunType++
			continue
		}
		if skip := filterByOS(item.Values, osFilter); skip {
			filteredByOS++
			continue
		}

		dims := collectItemDimensions(item.Values)

		// Timestamp: prefer stop, else start, else now.
		ts := time.Now().UTC()
		switch {
		case item.Stop != nil:
			ts = *item.Stop
		case item.Start != nil:
			ts = *item.Start
		}

		// Phase durations are grouped by statistic type (average/confidence)
		// so the total can be summed per statistic type.
		phasesByStat := map[string]map[string]float64{}
		missingByStat := map[string][]string{}
		type kpiEntry struct {
			metricID string
			value    float64
			statType string
		}
		var kpiData []kpiEntry

		for _, lv := range item.Values {
			name := lv.Name
			if name == "" {
				continue
			}
			if !seenLabels[name] {
				seenLabels[name] = true
				labelsFound = append(labelsFound, name)
			}

			metricID := matchLabelToMetric(name)
			if metricID == "" {
				log.Debug("Unrecognized label", "label_name", name)
				continue
			}
			statType := statisticType(name)

			value, numeric := coerceFloat(lv.Value)
			if !numeric && !seenSkipped[name] {
				seenSkipped[name] = true
				skippedLabels = append(skippedLabels, name)
				log.Debug("Label value is not numeric",
					"label_name", name, "metric_id", metricID)
			}

			switch {
			case strings.Contains(metricID, "phase"):
				if phasesByStat[statType] == nil {
					phasesByStat[statType] = map[string]float64{}
				}
				if numeric {
					phasesByStat[statType][metricID] = value
				} else {
					phasesByStat[statType][metricID] = 0
					missingByStat[statType] = append(missingByStat[statType], metricID)
				}
			case strings.Contains(metricID, "timestamp") && numeric:
				kpiData = append(kpiData, kpiEntry{metricID, value, statType})
			}
		}

		// Emit phase metrics and the per-statistic-type total.
		for _, statType := range sortedKeys(phasesByStat) {
			phases := phasesByStat[statType]
			pointDims := dims.metricDimensions(statType)
			if missing := missingByStat[statType]; len(missing) > 0 {
				pointDims["missing_phases"] = missingPhaseNames(missing)
			}

			total := 0.0
			for _, metricID := range sortedKeys(phases) {
				value := phases[metricID]
				total += value
				if !stats.IsValidFloat(value) {
					log.Warn("Skipping non-finite phase value",
						"metric_id", metricID, "value", value)
					continue
				}
				points = append(points, p.point(metricID, value, ts, pointDims))
			}
			if stats.IsValidFloat(total) {
				points = append(points, p.point(metricTotal, total, ts, pointDims))
			} else {
				log.Warn("Skipping non-finite total boot time", "value", total)
			}
		}

		// Emit critical timestamp KPIs.
		for _, kpi := range kpiData {
			if !stats.IsValidFloat(kpi.value) {
				log.Warn("Skipping non-finite KPI value",
					"metric_id", kpi.metricID, "value", kpi.value)
				continue
			}
			points = append(points, p.point(kpi.metricID, kpi.value, ts, dims.metricDimensions(kpi.statType)))
		}
	}

	hasPhases, hasTotal := false, false
	for _, pt := range points {
		if strings.Contains(pt.MetricID, "phase") {
			hasPhases = true
		}
		if strings.Contains(pt.MetricID, "total") {
			hasTotal = true
		}
	}

	log.Info("Label value extraction complete",
		"items_processed", len(items),
		"filtered_by_run_type", filteredByRunType,
		"filtered_by_os", filteredByOS,
		"labels_found", len(labelsFound),
		"metrics_extracted", len(points),
		"skipped_labels", len(skippedLabels))

	if hasTotal && !hasPhases && len(labelsFound) > 0 {
		log.Warn("Only total boot time extracted, no boot phases found; "+
			"the source schema may not export per-phase labels or phase values are non-numeric",
			"labels_found", labelsFound, "skipped_labels", skippedLabels)
	}

	return points
}

// filterByRunType reports whether an item should be skipped for the given run
// type. Modern exports carry a "Run type" label matched exactly; legacy data
// embeds the run type in "Test Description". Items carrying neither label are
// kept, since their run type cannot be determined.
func filterByRunType(values contract.LabelValueSet, runTypeFilter string) bool {
	if runTypeFilter == "" {
		return false
	}
	runType, hasRunType := values.Lookup(labelRunType)
	desc, _ := values.Lookup(labelTestDesc)

	if hasRunType && runType != nil {
		s, _ := runType.(string)
		return !strings.EqualFold(s, runTypeFilter)
	}
	if desc != nil && desc != "" {
		s, ok := desc.(string)
		if !ok {
			return true
		}
		return !strings.Contains(strings.ToLower(s), strings.ToLower(runTypeFilter))
	}
	return false
}

// filterByOS reports whether an item should be skipped for the given OS.
// Items without an OS ID label are kept.
func filterByOS(values contract.LabelValueSet, osFilter string) bool {
	if osFilter == "" {
		return false
	}
	osID, ok := values.Lookup(labelOSID)
	if !ok || osID == nil {
		return false
	}
	s, _ := osID.(string)
	return !strings.EqualFold(s, osFilter)
}

// itemDimensions are the per-item dimension values resolved from labels.
// os_id, mode, and target form the 3D result matrix; the rest is metadata
// kept for consistent grouping.
type itemDimensions struct {
	osID      string
	mode      string
	target    string
	release   string
	imageName string
	samples   *int
	user      string
	build     string
}

func collectItemDimensions(values contract.LabelValueSet) itemDimensions {
	var d itemDimensions
	for _, lv := range values {
		s, isString := lv.Value.(string)
		switch lv.Name {
		case labelOSID:
			if isString {
				d.osID = strings.ToLower(s)
			}
		case labelMode:
			if isString {
				d.mode = strings.ToLower(s)
			}
		case labelTarget:
			if isString {
				d.target = strings.ToLower(s)
			}
		case labelRelease:
			if isString {
				d.release = s
			}
		case labelImageName:
			if isString {
				d.imageName = s
			}
		case labelSamples:
			if n, ok := coerceInt(lv.Value); ok {
				d.samples = &n
			}
		case labelUser:
			if isString {
				d.user = s
			}
		case labelBuild:
			if isString {
				d.build = s
			}
		}
	}
	return d
}

// metricDimensions builds the dimensions map for one metric point. Every key
// is always present so consumers can group consistently; unresolved values
// are "undefined".
func (d itemDimensions) metricDimensions(statType string) map[string]string {
	dims := map[string]string{}
	if statType != statTypeUnknown {
		dims["statistic_type"] = statType
	}
	dims["os_id"] = orUndefined(d.osID)
	dims["mode"] = orUndefined(d.mode)
	dims["target"] = orUndefined(d.target)
	dims["release"] = orUndefined(d.release)
	dims["image_name"] = orUndefined(d.imageName)
	if d.samples != nil {
		dims["samples"] = strconv.Itoa(*d.samples)
	} else {
		dims["samples"] = domain.UndefinedDimension
	}
	dims["user"] = orUndefined(d.user)
	dims["build"] = orUndefined(d.build)
	return dims
}

func orUndefined(v string) string {
	if v == "" {
		return domain.UndefinedDimension
	}
	return v
}

// missingPhaseNames renders missing phase metric ids as short names, e.g.
// "boot.phase.kernel_pre_timer_ms" becomes "kernel_pre_timer".
func missingPhaseNames(missing []string) string {
	parts := make([]string, len(missing))
	for i, metricID := range missing {
		short := metricID
		if idx := strings.LastIndex(short, "."); idx >= 0 {
			short = short[idx+1:]
		}
		parts[i] = strings.TrimSuffix(short, "_ms")
	}
	return strings.Join(parts, ",")
}

const statTypeUnknown = "unknown"

// normalizeLabelName lowercases, turns hyphens into spaces, and collapses
// whitespace for flexible matching.
func normalizeLabelName(name string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(name), "-", " ")), " ")
}

// isDuration reports whether the label name indicates a duration measurement.
func isDuration(name string) bool {
	norm := normalizeLabelName(name)
	if strings.Contains(norm, "timestamp") {
		return false
	}
	for _, word := range []string{"duration", "time", "ms", "latency", "delay"} {
		if strings.Contains(norm, word) {
			return true
		}
	}
	return false
}

// isTimestamp reports whether the label name indicates a timestamp.
func isTimestamp(name string) bool {
	norm := normalizeLabelName(name)
	return strings.Contains(norm, "timestamp") || strings.Contains(norm, "ts")
}

// statisticType extracts the statistic type from a label name, e.g.
// "Average Boot Time" is an "average" measurement. Labels without a
// recognized statistic type are grouped under "unknown".
func statisticType(name string) string {
	norm := normalizeLabelName(name)
	switch {
	case strings.Contains(norm, "average"):
		return "average"
	case strings.Contains(norm, "confidence"):
		return "confidence"
	}
	return statTypeUnknown
}

// matchLabelToMetric maps a label name to a canonical metric id using
// flexible keyword patterns. Returns "" when no mapping applies.
//
// Digits are matched against the raw label name because phase labels like
// "BOOT1" carry the phase number outside of any word boundary.
func matchLabelToMetric(name string) string {
	norm := normalizeLabelName(name)

	if (strings.Contains(norm, "boot") || strings.HasPrefix(name, "BOOT")) && isDuration(name) {
		switch {
		case strings.Contains(norm, "kernel") && (strings.Contains(norm, "pre") || strings.Contains(name, "1")):
			return metricKernelPreTimer
		case strings.Contains(norm, "kernel") && (strings.Contains(norm, "post") || strings.Contains(name, "2")):
			return metricKernel
		case strings.Contains(norm, "initrd") || strings.Contains(norm, "initramfs") || strings.Contains(name, "3"):
			return metricInitrd
		case strings.Contains(norm, "switchroot") ||
			(strings.Contains(norm, "switch") && strings.Contains(norm, "root")) ||
			strings.Contains(name, "4"):
			return metricSwitchroot
		case strings.Contains(strings.ReplaceAll(norm, " ", ""), "systeminit") ||
			(strings.Contains(norm, "system") && strings.Contains(norm, "init")) ||
			strings.Contains(norm, "userspace") ||
			strings.Contains(name, "0"):
			return metricSystemInit
		case strings.Contains(norm, "total") || norm == "boot time" || norm == "boot" || norm == "boot_time":
			return metricTotal
		}
		return ""
	}

	if strings.Contains(norm, "kpi") && isTimestamp(name) {
		switch {
		case strings.Contains(norm, "early") && strings.Contains(norm, "service"):
			return metricEarlyService
		case strings.Contains(norm, "kmod") || (strings.Contains(norm, "module") && strings.Contains(norm, "load")):
			return metricStartKmodLoad
		case strings.Contains(norm, "first") && (strings.Contains(norm, "service") || strings.Contains(norm, "link")):
			return metricFirstService
		case strings.Contains(norm, "network") || (strings.Contains(norm, "link") && strings.Contains(norm, "up")):
			return metricNetworkOnline
		}
		return ""
	}

	// Exact total-boot-time names kept for backward compatibility.
	switch name {
	case metricTotal, "boot.total_ms", "boot_time_total_ms", "Boot Time", "boot_time":
		return metricTotal
	}
	return ""
}

// coerceFloat converts label values to float64, accepting numbers and
// numeric strings.
func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// coerceInt converts label values to int, truncating floats and parsing
// integer strings.
func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
