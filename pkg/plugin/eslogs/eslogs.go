// Package eslogs extracts metrics from log documents returned by
// Elasticsearch.
//
// Every document produces a log.count point (value 1, useful for
// aggregation); documents carrying a duration-like field additionally
// produce log.duration_ms. Level, service, and host become dimensions when
// present.
package eslogs

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
	"github.com/perfscale/domain-mcp/pkg/stats"
)

const pluginID = "elasticsearch-logs"

// durationFields are checked in order for the first numeric value.
var durationFields = []string{"duration", "duration_ms", "latency", "latency_ms", "took"}

// Plugin extracts metrics from Elasticsearch log documents. The zero value
// is ready to use.
type Plugin struct{}

// New returns an Elasticsearch logs plugin.
func New() *Plugin { return &Plugin{} }

// ID implements plugin.Plugin.
func (p *Plugin) ID() string { return pluginID }

// Glossary implements plugin.Plugin. Log metrics are generic, so the
// glossary is empty.
func (p *Plugin) Glossary() map[string]plugin.GlossaryEntry {
	return map[string]plugin.GlossaryEntry{}
}

// KPIs implements plugin.Plugin.
func (p *Plugin) KPIs() []string { return nil }

// Extract produces metric points from a single log document.
func (p *Plugin) Extract(_ context.Context, in plugin.Input) ([]domain.MetricPoint, error) {
	body := gjson.ParseBytes(in.Dataset)
	if !body.IsObject() {
		return nil, nil
	}

	// Leading backslash keeps gjson from reading "@" as a modifier.
	ts, ok := stats.ParseTimestamp(body.Get(`\@timestamp`).Value())
	if !ok {
		ts = time.Now().UTC()
	}

	dims := map[string]string{}
	if level := firstField(body, "level", `log\.level`); level.Exists() {
		dims["level"] = strings.ToUpper(level.String())
	}
	if service := firstField(body, "service", `service\.name`); service.Type == gjson.String {
		dims["service"] = service.String()
	}
	if host := firstField(body, "host", `host\.name`); host.Type == gjson.String {
		dims["host"] = host.String()
	}
	if len(dims) == 0 {
		dims = nil
	}

	points := []domain.MetricPoint{{
		MetricID:   "log.count",
		Timestamp:  ts,
		Value:      1,
		Unit:       "count",
		Dimensions: dims,
		Source:     pluginID,
	}}

	for _, field := range durationFields {
		if v := body.Get(field); v.Type == gjson.Number && stats.IsValidFloat(v.Float()) {
			points = append(points, domain.MetricPoint{
				MetricID:   "log.duration_ms",
				Timestamp:  ts,
				Value:      v.Float(),
				Unit:       "ms",
				Dimensions: dims,
				Source:     pluginID,
			})
			break
		}
	}
	return points, nil
}

// firstField returns the first existing field among the given gjson paths.
// Dotted field names are escaped by callers, since log documents use flat
// keys like "log.level" rather than nested objects.
func firstField(body gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if r := body.Get(path); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func init() {
	plugin.Register(New())
}
