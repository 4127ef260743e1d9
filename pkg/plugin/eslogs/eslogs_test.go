package eslogs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
)

func extract(t *testing.T, doc string) []domain.MetricPoint {
	t.Helper()
	points, err := New().Extract(context.Background(), plugin.Input{Dataset: []byte(doc)})
	require.NoError(t, err)
	return points
}

func TestExtract_CountAndDuration(t *testing.T) {
	points := extract(t, `{
		"@timestamp": "2023-10-15T12:00:00Z",
		"level": "error",
		"service": "api-gateway",
		"host": "node-1",
		"took": 42
	}`)
	require.Len(t, points, 2)

	count := points[0]
	assert.Equal(t, "log.count", count.MetricID)
	assert.Equal(t, 1.0, count.Value)
	assert.Equal(t, "count", count.Unit)
	assert.Equal(t, time.Date(2023, 10, 15, 12, 0, 0, 0, time.UTC), count.Timestamp)
	assert.Equal(t, "ERROR", count.Dimensions["level"])
	assert.Equal(t, "api-gateway", count.Dimensions["service"])
	assert.Equal(t, "node-1", count.Dimensions["host"])
	assert.Equal(t, "elasticsearch-logs", count.Source)

	duration := points[1]
	assert.Equal(t, "log.duration_ms", duration.MetricID)
	assert.Equal(t, 42.0, duration.Value)
	assert.Equal(t, "ms", duration.Unit)
}

func TestExtract_FlattenedFieldNames(t *testing.T) {
	points := extract(t, `{
		"log.level": "warn",
		"service.name": "ingest",
		"host.name": "node-2",
		"duration_ms": 7.5
	}`)
	require.Len(t, points, 2)
	assert.Equal(t, "WARN", points[0].Dimensions["level"])
	assert.Equal(t, "ingest", points[0].Dimensions["service"])
	assert.Equal(t, "node-2", points[0].Dimensions["host"])
	assert.Equal(t, 7.5, points[1].Value)
}

func TestExtract_DurationFieldPriority(t *testing.T) {
	points := extract(t, `{"duration": 10, "took": 99}`)
	require.Len(t, points, 2)
	assert.Equal(t, 10.0, points[1].Value)
}

func TestExtract_NoDuration(t *testing.T) {
	points := extract(t, `{"level": "info", "message": "started"}`)
	require.Len(t, points, 1)
	assert.Equal(t, "log.count", points[0].MetricID)
}

func TestExtract_MissingTimestampUsesNow(t *testing.T) {
	before := time.Now().UTC()
	points := extract(t, `{"level": "info"}`)
	require.Len(t, points, 1)
	assert.False(t, points[0].Timestamp.Before(before.Add(-time.Second)))
}

func TestExtract_NonObjectDocument(t *testing.T) {
	assert.Empty(t, extract(t, `["not", "an", "object"]`))
	assert.Empty(t, extract(t, ``))
}

func TestIdentity(t *testing.T) {
	p := New()
	assert.Equal(t, "elasticsearch-logs", p.ID())
	assert.Empty(t, p.Glossary())
	assert.Empty(t, p.KPIs())
}
