package boottime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
)

func TestMatchLabelToMetric(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"kernel pre phase", "Boot kernel pre time", metricKernelPreTimer},
		{"kernel post phase", "Boot kernel post time", metricKernel},
		{"numbered kernel phase", "BOOT1 kernel duration", metricKernelPreTimer},
		{"initrd phase", "Boot initrd time", metricInitrd},
		{"initramfs alias", "Boot initramfs duration", metricInitrd},
		{"switchroot phase", "Boot switchroot time", metricSwitchroot},
		{"switch root words", "Boot switch root duration", metricSwitchroot},
		{"system init phase", "Boot system init time", metricSystemInit},
		{"userspace alias", "Boot userspace duration", metricSystemInit},
		{"total with keyword", "Boot total time", metricTotal},
		{"exact boot time", "Boot Time", metricTotal},
		{"exact snake case", "boot_time_total_ms", metricTotal},
		{"kpi first service", "KPI first service timestamp", metricFirstService},
		{"kpi early service", "KPI early service timestamp", metricEarlyService},
		{"kpi kmod load", "KPI kmod load timestamp", metricStartKmodLoad},
		{"kpi network online", "KPI network timestamp", metricNetworkOnline},
		{"unrelated label", "RHIVOS OS ID", ""},
		{"timestamp is not a duration", "Boot kernel timestamp", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchLabelToMetric(tt.label))
		})
	}
}

func TestStatisticType(t *testing.T) {
	assert.Equal(t, "average", statisticType("Average Boot Time"))
	assert.Equal(t, "confidence", statisticType("Boot Time Confidence"))
	assert.Equal(t, statTypeUnknown, statisticType("Boot Time"))
}

func labelItem(stop time.Time, values ...contract.LabelValue) contract.ExportedLabelValues {
	return contract.ExportedLabelValues{
		Values: contract.LabelValueSet(values),
		RunID:  "101",
		Stop:   &stop,
	}
}

func bootPhaseLabels() []contract.LabelValue {
	return []contract.LabelValue{
		{Name: "Boot kernel pre time", Value: float64(100)},
		{Name: "Boot kernel post time", Value: float64(200)},
		{Name: "Boot initrd time", Value: float64(300)},
		{Name: "Boot switchroot time", Value: float64(400)},
		{Name: "Boot system init time", Value: float64(500)},
		{Name: "KPI first service timestamp", Value: float64(1234)},
		{Name: "RHIVOS OS ID", Value: "AutoSD"},
		{Name: "RHIVOS Mode", Value: "Package"},
		{Name: "RHIVOS Target", Value: "QEMU"},
		{Name: "Run type", Value: "nightly"},
	}
}

func TestExtract_LabelValues_PhasesAndTotal(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	p := New()

	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{labelItem(stop, bootPhaseLabels()...)},
	})
	require.NoError(t, err)
	require.Len(t, points, 7)

	byID := map[string]domain.MetricPoint{}
	for _, pt := range points {
		byID[pt.MetricID] = pt
	}

	assert.Equal(t, 100.0, byID[metricKernelPreTimer].Value)
	assert.Equal(t, 200.0, byID[metricKernel].Value)
	assert.Equal(t, 300.0, byID[metricInitrd].Value)
	assert.Equal(t, 400.0, byID[metricSwitchroot].Value)
	assert.Equal(t, 500.0, byID[metricSystemInit].Value)

	// Total is the sum of all phases, not read from a label.
	total := byID[metricTotal]
	assert.Equal(t, 1500.0, total.Value)
	assert.Equal(t, stop, total.Timestamp)
	assert.Equal(t, "ms", total.Unit)
	assert.Equal(t, pluginID, total.Source)

	assert.Equal(t, 1234.0, byID[metricFirstService].Value)

	// 3D matrix dimensions are lowercased, metadata defaults to undefined.
	dims := total.Dimensions
	assert.Equal(t, "autosd", dims["os_id"])
	assert.Equal(t, "package", dims["mode"])
	assert.Equal(t, "qemu", dims["target"])
	assert.Equal(t, domain.UndefinedDimension, dims["release"])
	assert.Equal(t, domain.UndefinedDimension, dims["samples"])
	assert.NotContains(t, dims, "statistic_type")
	assert.NotContains(t, dims, "missing_phases")
}

func TestExtract_LabelValues_MissingPhaseCountsAsZero(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	labels := bootPhaseLabels()
	labels[3].Value = "Need to collect" // switchroot

	p := New()
	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{labelItem(stop, labels...)},
	})
	require.NoError(t, err)

	byID := map[string]domain.MetricPoint{}
	for _, pt := range points {
		byID[pt.MetricID] = pt
	}

	assert.Equal(t, 0.0, byID[metricSwitchroot].Value)
	assert.Equal(t, 1100.0, byID[metricTotal].Value)
	assert.Equal(t, "switchroot", byID[metricTotal].Dimensions["missing_phases"])
}

func TestExtract_LabelValues_RunTypeFilter(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	item := labelItem(stop, bootPhaseLabels()...)
	p := New()

	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues:   []contract.ExportedLabelValues{item},
		RunTypeFilter: "ci",
	})
	require.NoError(t, err)
	assert.Empty(t, points)

	points, err = p.Extract(context.Background(), plugin.Input{
		LabelValues:   []contract.ExportedLabelValues{item},
		RunTypeFilter: "NIGHTLY",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, points)
}

func TestExtract_LabelValues_LegacyRunTypeInDescription(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	labels := append(bootPhaseLabels()[:5],
		contract.LabelValue{Name: "Test Description", Value: "nightly regression build 42"})

	p := New()
	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues:   []contract.ExportedLabelValues{labelItem(stop, labels...)},
		RunTypeFilter: "nightly",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, points)

	points, err = p.Extract(context.Background(), plugin.Input{
		LabelValues:   []contract.ExportedLabelValues{labelItem(stop, labels...)},
		RunTypeFilter: "ci",
	})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestExtract_LabelValues_OSFilter(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	item := labelItem(stop, bootPhaseLabels()...)
	p := New()

	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{item},
		OSFilter:    "rhel",
	})
	require.NoError(t, err)
	assert.Empty(t, points)

	points, err = p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{item},
		OSFilter:    "AUTOSD",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, points)
}

func TestExtract_LabelValues_GroupsByStatisticType(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	item := labelItem(stop,
		contract.LabelValue{Name: "Average Boot kernel pre time", Value: float64(100)},
		contract.LabelValue{Name: "Confidence Boot kernel pre time", Value: float64(5)},
	)

	p := New()
	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{item},
	})
	require.NoError(t, err)
	// Each statistic type gets its own phase point and total.
	require.Len(t, points, 4)

	totals := map[string]float64{}
	for _, pt := range points {
		if pt.MetricID == metricTotal {
			totals[pt.Dimensions["statistic_type"]] = pt.Value
		}
	}
	assert.Equal(t, 100.0, totals["average"])
	assert.Equal(t, 5.0, totals["confidence"])
}

func TestExtract_LabelValues_MetadataDimensions(t *testing.T) {
	stop := time.Date(2025, 9, 22, 10, 30, 0, 0, time.UTC)
	labels := append(bootPhaseLabels(),
		contract.LabelValue{Name: "RHIVOS Release", Value: "9.6"},
		contract.LabelValue{Name: "RHIVOS image name", Value: "auto-osbuild-qemu"},
		contract.LabelValue{Name: "Number of Samples", Value: "10"},
		contract.LabelValue{Name: "User", Value: "jenkins"},
		contract.LabelValue{Name: "RHIVOS Build", Value: "20250922.1"},
	)

	p := New()
	points, err := p.Extract(context.Background(), plugin.Input{
		LabelValues: []contract.ExportedLabelValues{labelItem(stop, labels...)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, points)

	dims := points[0].Dimensions
	assert.Equal(t, "9.6", dims["release"])
	assert.Equal(t, "auto-osbuild-qemu", dims["image_name"])
	assert.Equal(t, "10", dims["samples"])
	assert.Equal(t, "jenkins", dims["user"])
	assert.Equal(t, "20250922.1", dims["build"])
}
