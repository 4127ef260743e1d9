package boottime

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/stats"
)

// extractLocalCollector handles the local collector format:
//
//	{
//	  "boot_metrics": {
//	    "total_boot_time_ms": 12500,
//	    "phases": {"kernel": 3000, "initrd": 1500, "userspace": 5500}
//	  },
//	  "system_info": {"os_id": "rhel-9.2", "mode": "standard"},
//	  "timestamp": "2025-09-22T10:30:00Z"
//	}
func (p *Plugin) extractLocalCollector(body gjson.Result, osFilter string) []domain.MetricPoint {
	boot := body.Get("boot_metrics")
	if !boot.IsObject() {
		return nil
	}

	ts, ok := parseResultTime(body.Get("timestamp"))
	if !ok {
		ts, ok = parseResultTime(body.Get("metadata.collection_timestamp"))
	}
	if !ok {
		ts = time.Now().UTC()
	}

	dims := map[string]string{}
	if sys := body.Get("system_info"); sys.IsObject() {
		if osID := sys.Get("os_id"); osID.Type == gjson.String {
			dims["os_id"] = osID.String()
			if osFilter != "" && !strings.EqualFold(osID.String(), osFilter) {
				return nil
			}
		}
		if mode := sys.Get("mode"); mode.Type == gjson.String {
			dims["mode"] = mode.String()
		}
		target := sys.Get("target")
		if target.Type != gjson.String || target.String() == "" {
			target = sys.Get("hardware")
		}
		if target.Type == gjson.String {
			dims["target"] = target.String()
		}
	}

	var points []domain.MetricPoint
	appendNumber := func(metricID string, r gjson.Result) {
		if r.Type == gjson.Number {
			points = append(points, p.point(metricID, r.Float(), ts, dims))
		}
	}

	appendNumber(metricTotal, boot.Get("total_boot_time_ms"))
	// Not every dataset carries all phases; extract what is available.
	if phases := boot.Get("phases"); phases.IsObject() {
		appendNumber(metricKernel, phases.Get("kernel"))
		appendNumber(metricInitrd, phases.Get("initrd"))
		appendNumber(metricSwitchroot, phases.Get("switchroot"))
		appendNumber(metricSystemInit, phases.Get("userspace"))
	}
	return points
}

// extractHorreumVerbose handles the Horreum boot-time verbose schema.
// The v4 shape carries a test_results array with satime, clktick,
// earlyservice, and dlkm sections; the v6 shape carries boot_time entries
// with boot_logs, with the total inferred from timestamps or the largest
// activation value.
func (p *Plugin) extractHorreumVerbose(body gjson.Result, osFilter string) []domain.MetricPoint {
	points, done := p.extractVerboseResults(body, osFilter)
	if done || len(points) > 0 {
		return points
	}
	return p.extractVerboseBootLogs(body, osFilter)
}

// extractVerboseResults handles the v4 test_results shape. done reports
// that no further format should be attempted (the dataset matched but was
// filtered out).
func (p *Plugin) extractVerboseResults(body gjson.Result, osFilter string) (points []domain.MetricPoint, done bool) {
	results := body.Get("test_results")
	if !results.IsArray() {
		return nil, false
	}
	arr := results.Array()
	if len(arr) == 0 || !arr[0].IsObject() {
		return nil, false
	}
	first := arr[0]

	ts, ok := parseResultTime(first.Get("end_time"))
	if !ok {
		ts, ok = parseResultTime(first.Get("start_time"))
	}
	if !ok {
		ts = time.Now().UTC()
	}

	dims := map[string]string{}
	if sys := body.Get("system_config"); sys.IsObject() {
		if osID := sys.Get("os_id"); osID.Type == gjson.String {
			dims["os_id"] = osID.String()
			if osFilter != "" && !strings.EqualFold(osID.String(), osFilter) {
				return nil, true
			}
		}
		if mode := sys.Get("mode"); mode.Type == gjson.String {
			dims["mode"] = mode.String()
		}
		// image_target may name the hardware platform or a systemd target;
		// either way it is the "target" dimension.
		if target := sys.Get("image_target"); target.Type == gjson.String {
			dims["target"] = target.String()
		}
	}

	appendNumber := func(metricID string, r gjson.Result) {
		if r.Type == gjson.Number {
			points = append(points, p.point(metricID, r.Float(), ts, dims))
		}
	}

	if satime := first.Get("satime"); satime.IsObject() {
		appendNumber(metricTotal, satime.Get("total"))
		appendNumber(metricKernel, satime.Get("kernel"))
		appendNumber(metricInitrd, satime.Get("initrd"))
		appendNumber(metricSystemInit, satime.Get("userspace"))
		appendNumber(metricSwitchroot, satime.Get("switchroot"))
	}
	appendNumber(metricKernelPreTimer, first.Get("clktick.time_init_ts"))
	appendNumber(metricEarlyService, first.Get("earlyservice.earlyservice_ts"))
	appendNumber(metricStartKmodLoad, first.Get("dlkm.start_kmod_load_ts"))

	if timing := first.Get("timing_details"); timing.IsArray() {
		var (
			firstService, networkOnline     float64
			haveFirstService, haveNetOnline bool
		)
		for _, svc := range timing.Array() {
			if !svc.IsObject() {
				continue
			}
			activated := svc.Get("activated")
			if activated.Type != gjson.Number {
				continue
			}
			v := activated.Float()
			if !haveFirstService || v < firstService {
				firstService = v
				haveFirstService = true
			}
			if strings.Contains(strings.ToLower(svc.Get("name").String()), "network") {
				if !haveNetOnline || v < networkOnline {
					networkOnline = v
					haveNetOnline = true
				}
			}
		}
		if haveFirstService {
			points = append(points, p.point(metricFirstService, firstService, ts, dims))
		}
		if haveNetOnline {
			points = append(points, p.point(metricNetworkOnline, networkOnline, ts, dims))
		}
	}

	// Older datasets only report the reboot elapsed time.
	if len(points) == 0 {
		if totalET := first.Get("reboot.total_et"); totalET.Type == gjson.Number {
			points = append(points, p.point(metricTotal, totalET.Float(), ts, dims))
		}
	}
	return points, false
}

// extractVerboseBootLogs handles the v6 boot_time/boot_logs shape. The total
// is derived from start_time/end_time when both parse, otherwise from the
// largest activation value in the boot logs (scaled down when the logs are
// in microseconds or nanoseconds).
func (p *Plugin) extractVerboseBootLogs(body gjson.Result, osFilter string) []domain.MetricPoint {
	bootTime := body.Get("boot_time")
	if !bootTime.IsArray() {
		return nil
	}
	arr := bootTime.Array()
	if len(arr) == 0 {
		return nil
	}
	var logs gjson.Result
	if arr[0].IsObject() {
		logs = arr[0].Get("boot_logs")
	}

	tsEnd, endOK := parseResultTime(body.Get("end_time"))
	tsStart, startOK := parseResultTime(body.Get("start_time"))
	ts := time.Now().UTC()
	switch {
	case endOK:
		ts = tsEnd
	case startOK:
		ts = tsStart
	}

	var totalMS float64
	haveTotal := false
	if endOK && startOK {
		if delta := stats.DeltaMS(tsStart, tsEnd); delta > 0 {
			totalMS = delta
			haveTotal = true
		}
	}
	if !haveTotal && logs.IsArray() {
		var maxValue float64
		found := false
		for _, entry := range logs.Array() {
			if !entry.IsObject() {
				continue
			}
			for _, key := range []string{"activated", "time", "duration", "elapsed"} {
				if v := entry.Get(key); v.Type == gjson.Number {
					if !found || v.Float() > maxValue {
						maxValue = v.Float()
						found = true
					}
				}
			}
		}
		if found {
			if maxValue > 1_000_000 {
				maxValue /= 1_000_000
			}
			totalMS = maxValue
			haveTotal = true
		}
	}

	dims := map[string]string{}
	if rh := body.Get("rhivos_config"); rh.IsObject() {
		if osID := rh.Get("os_id"); osID.Type == gjson.String {
			dims["os_id"] = osID.String()
			if osFilter != "" && !strings.EqualFold(osID.String(), osFilter) {
				return nil
			}
		}
		if mode := rh.Get("mode"); mode.Type == gjson.String {
			dims["mode"] = mode.String()
		}
		if target := rh.Get("image_target"); target.Type == gjson.String {
			dims["target"] = target.String()
		}
	}

	if !haveTotal {
		return nil
	}
	return []domain.MetricPoint{p.point(metricTotal, totalMS, ts, dims)}
}

// parseResultTime parses a timestamp from a JSON value that may be an
// ISO8601 string or a Unix epoch number.
func parseResultTime(r gjson.Result) (time.Time, bool) {
	if !r.Exists() {
		return time.Time{}, false
	}
	return stats.ParseTimestamp(r.Value())
}
