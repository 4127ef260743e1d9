package resources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ListsAllEmbeddedResources(t *testing.T) {
	r := NewRegistry()
	list := r.List()
	require.NotEmpty(t, list)

	uris := make([]string, len(list))
	for i, m := range list {
		uris[i] = m.URI
		assert.Equal(t, "application/json", m.MimeType)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.Description)
	}

	assert.Contains(t, uris, "domain://glossary/boot-time")
	assert.Contains(t, uris, "domain://glossary/os-identifiers")
	assert.Contains(t, uris, "domain://glossary/run-types")
	assert.Contains(t, uris, "domain://glossary/metrics-catalog")
	assert.Contains(t, uris, "domain://examples/boot-time-report-template")
	assert.Contains(t, uris, "domain://examples/query-patterns")
	assert.IsIncreasing(t, uris, "list is sorted by URI")
}

func TestRegistry_ReadReturnsMCPEnvelope(t *testing.T) {
	r := NewRegistry()

	result, err := r.Read("domain://glossary/boot-time")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	content := result.Contents[0]
	assert.Equal(t, "domain://glossary/boot-time", content.URI)
	assert.Equal(t, "application/json", content.MimeType)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(content.Text), &parsed))
	metrics := parsed["metrics"].(map[string]any)
	assert.Contains(t, metrics, "boot.time.total_ms")
}

func TestRegistry_ReadUnknownURI(t *testing.T) {
	r := NewRegistry()
	_, err := r.Read("domain://glossary/nope")
	require.Error(t, err)
	assert.Equal(t, "Resource not found: domain://glossary/nope", err.Error())
}

func TestRegistry_MetadataFromContent(t *testing.T) {
	r := NewRegistry()
	for _, m := range r.List() {
		if m.URI == "domain://glossary/boot-time" {
			assert.Equal(t, "Boot Time Glossary", m.Name)
			assert.Contains(t, m.Description, "boot-time")
			return
		}
	}
	t.Fatal("boot-time glossary not listed")
}

func TestRegistry_Text(t *testing.T) {
	r := NewRegistry()
	text, ok := r.Text("domain://examples/query-patterns")
	require.True(t, ok)
	assert.Contains(t, text, "get_key_metrics")

	_, ok = r.Text("domain://examples/none")
	assert.False(t, ok)
}
