// Package boottime extracts boot-time KPIs from boot-time datasets.
//
// The plugin understands several dataset shapes:
//   - label value bundles exported by Horreum (preferred: pre-transformed,
//     server-filtered, no dataset parsing needed)
//   - multi-sample datasets carrying a numeric boot_time array, summarized
//     into statistical metrics
//   - the local collector format (boot_metrics/phases)
//   - the Horreum boot-time verbose schema, v4 (test_results) and v6
//     (boot_time/boot_logs)
//
// Extraction is conservative: metrics are only emitted when the relevant
// fields are confidently identified.
package boottime

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
	"github.com/perfscale/domain-mcp/pkg/stats"
)

const pluginID = "boot-time-verbose"

// Canonical metric ids emitted by this plugin.
const (
	metricTotal          = "boot.time.total_ms"
	metricKernelPreTimer = "boot.phase.kernel_pre_timer_ms"
	metricKernel         = "boot.phase.kernel_ms"
	metricInitrd         = "boot.phase.initrd_ms"
	metricSwitchroot     = "boot.phase.switchroot_ms"
	metricSystemInit     = "boot.phase.system_init_ms"
	metricEarlyService   = "boot.timestamp.early_service_ms"
	metricStartKmodLoad  = "boot.timestamp.start_kmod_load_ms"
	metricFirstService   = "boot.timestamp.first_service_ms"
	metricNetworkOnline  = "boot.timestamp.network_online_ms"
)

var glossary = map[string]plugin.GlossaryEntry{
	metricTotal:             {Description: "Total boot time (mean for multi-sample)", Unit: "ms"},
	metricTotal + ".mean":   {Description: "Mean boot time across samples", Unit: "ms"},
	metricTotal + ".median": {Description: "Median boot time across samples", Unit: "ms"},
	metricTotal + ".p95":    {Description: "95th percentile boot time", Unit: "ms"},
	metricTotal + ".p99":    {Description: "99th percentile boot time", Unit: "ms"},
	metricTotal + ".std_dev": {
		Description: "Standard deviation of boot time", Unit: "ms"},
	metricTotal + ".cv": {
		Description: "Coefficient of variance (normalized variability = std_dev/mean)", Unit: "ratio"},
	metricTotal + ".min":  {Description: "Minimum boot time across samples", Unit: "ms"},
	metricTotal + ".max":  {Description: "Maximum boot time across samples", Unit: "ms"},
	metricKernelPreTimer:  {Description: "Kernel initialization before timer subsystem", Unit: "ms"},
	metricKernel:          {Description: "Kernel initialization after timer subsystem", Unit: "ms"},
	metricInitrd:          {Description: "Initial RAM disk execution duration", Unit: "ms"},
	metricSwitchroot:      {Description: "Transition from initrd to actual root filesystem", Unit: "ms"},
	metricSystemInit:      {Description: "System/userspace initialization (systemd)", Unit: "ms"},
	metricEarlyService:    {Description: "First critical service becomes active", Unit: "ms"},
	metricStartKmodLoad:   {Description: "Kernel module loading begins", Unit: "ms"},
	metricFirstService:    {Description: "First systemd service activated", Unit: "ms"},
	metricNetworkOnline:   {Description: "Network connectivity established", Unit: "ms"},
}

// kpis lists the canonical KPIs, primary first.
var kpis = []string{
	metricTotal,
	metricKernelPreTimer,
	metricKernel,
	metricInitrd,
	metricSwitchroot,
	metricSystemInit,
	metricEarlyService,
	metricStartKmodLoad,
	metricFirstService,
	metricNetworkOnline,
}

// Plugin extracts boot-time KPIs. The zero value is ready to use.
type Plugin struct{}

// New returns a boot-time plugin.
func New() *Plugin { return &Plugin{} }

// ID implements plugin.Plugin.
func (p *Plugin) ID() string { return pluginID }

// Glossary implements plugin.Plugin.
func (p *Plugin) Glossary() map[string]plugin.GlossaryEntry { return glossary }

// KPIs implements plugin.Plugin.
func (p *Plugin) KPIs() []string { return append([]string(nil), kpis...) }

// Extract produces metric points, preferring label values over dataset
// parsing when both are available.
func (p *Plugin) Extract(_ context.Context, in plugin.Input) ([]domain.MetricPoint, error) {
	log := slog.With("plugin", pluginID)
	log.Info("Starting boot-time extraction",
		"has_label_values", len(in.LabelValues) > 0,
		"run_type_filter", in.RunTypeFilter,
		"os_filter", in.OSFilter)

	if len(in.LabelValues) > 0 {
		if points := p.extractFromLabelValues(in.LabelValues, in.RunTypeFilter, in.OSFilter); len(points) > 0 {
			return points, nil
		}
		log.Warn("Label values provided but no metrics extracted, falling back to dataset parsing")
	}

	body := gjson.ParseBytes(in.Dataset)
	if !body.IsObject() {
		log.Warn("Dataset is not a JSON object, nothing to extract")
		return nil, nil
	}

	if points, handled := p.extractMultiSample(body, in.OSFilter); handled {
		return points, nil
	}

	points := p.extractLocalCollector(body, in.OSFilter)
	if len(points) == 0 {
		points = p.extractHorreumVerbose(body, in.OSFilter)
	}
	if len(points) > 0 {
		log.Info("Dataset extraction complete", "metric_count", len(points))
	} else {
		log.Warn("No recognized boot-time format found in dataset")
	}
	return points, nil
}

// extractMultiSample handles datasets where boot_time is a plain numeric
// array of repeated measurements. The samples are summarized into statistical
// metrics plus the mean as the primary KPI. Returns handled=true when the
// dataset matched this shape, even if filtering produced no points.
func (p *Plugin) extractMultiSample(body gjson.Result, osFilter string) ([]domain.MetricPoint, bool) {
	bt := body.Get("boot_time")
	if !bt.IsArray() {
		return nil, false
	}
	arr := bt.Array()
	if len(arr) == 0 {
		return nil, false
	}
	samples := make([]float64, 0, len(arr))
	for _, v := range arr {
		if v.Type != gjson.Number {
			// Structured entries are handled by the verbose boot_logs path.
			return nil, false
		}
		samples = append(samples, v.Float())
	}

	slog.Info("Detected multi-sample boot-time dataset",
		"plugin", pluginID, "sample_count", len(samples))

	summary, err := stats.Compute(samples)
	if err != nil {
		return nil, true
	}

	dims := map[string]string{}
	if rh := body.Get("rhivos_config"); rh.IsObject() {
		if osID := rh.Get("os_id"); osID.Type == gjson.String {
			dims["os_id"] = osID.String()
			if osFilter != "" && !strings.EqualFold(osID.String(), osFilter) {
				return nil, true
			}
		}
		mode := rh.Get("image_target")
		if mode.Type != gjson.String {
			mode = rh.Get("mode")
		}
		if mode.Type == gjson.String {
			dims["mode"] = mode.String()
		}
	}

	ts := time.Now().UTC()
	var points []domain.MetricPoint
	for _, entry := range summaryEntries(summary) {
		if !stats.IsValidFloat(entry.value) {
			continue
		}
		points = append(points, p.point(metricTotal+"."+entry.name, entry.value, ts, dims))
	}
	// The mean doubles as the primary KPI.
	if stats.IsValidFloat(summary.Mean) {
		points = append(points, p.point(metricTotal, summary.Mean, ts, dims))
	}
	return points, true
}

type statEntry struct {
	name  string
	value float64
}

func summaryEntries(s stats.Summary) []statEntry {
	entries := []statEntry{
		{"mean", s.Mean},
		{"median", s.Median},
		{"min", s.Min},
		{"max", s.Max},
		{"p95", s.Percentiles["p95"]},
		{"p99", s.Percentiles["p99"]},
	}
	if s.StdDev != nil {
		entries = append(entries, statEntry{"std_dev", *s.StdDev})
	}
	if s.CV != nil {
		entries = append(entries, statEntry{"cv", *s.CV})
	}
	return entries
}

// point builds a metric point stamped with this plugin as the source.
func (p *Plugin) point(metricID string, value float64, ts time.Time, dims map[string]string) domain.MetricPoint {
	var d map[string]string
	if len(dims) > 0 {
		d = dims
	}
	return domain.MetricPoint{
		MetricID:   metricID,
		Timestamp:  ts,
		Value:      value,
		Unit:       "ms",
		Dimensions: d,
		Source:     pluginID,
	}
}

func init() {
	plugin.Register(New())
}
