package contract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelValueSet_UnmarshalListForm(t *testing.T) {
	raw := `[
		{"name": "RHIVOS OS ID", "value": "autosd"},
		{"name": "Boot Time", "value": 1500.5}
	]`
	var set LabelValueSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))
	require.Len(t, set, 2)
	assert.Equal(t, "RHIVOS OS ID", set[0].Name)
	assert.Equal(t, "autosd", set[0].Value)
	assert.Equal(t, 1500.5, set[1].Value)
}

func TestLabelValueSet_UnmarshalMapForm(t *testing.T) {
	raw := `{"RHIVOS OS ID": "autosd", "Boot Time": 1500.5}`
	var set LabelValueSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))
	require.Len(t, set, 2)
	// Map form is sorted by name.
	assert.Equal(t, "Boot Time", set[0].Name)
	assert.Equal(t, 1500.5, set[0].Value)
	assert.Equal(t, "RHIVOS OS ID", set[1].Name)
	assert.Equal(t, "autosd", set[1].Value)
}

func TestLabelValueSet_Lookup(t *testing.T) {
	set := LabelValueSet{
		{Name: "Run type", Value: "nightly"},
		{Name: "Number of Samples", Value: float64(10)},
	}

	v, ok := set.Lookup("Run type")
	require.True(t, ok)
	assert.Equal(t, "nightly", v)

	s, ok := set.String("Run type")
	require.True(t, ok)
	assert.Equal(t, "nightly", s)

	_, ok = set.String("Number of Samples")
	assert.False(t, ok)

	_, ok = set.Lookup("missing")
	assert.False(t, ok)
}

func TestExportedLabelValues_UnmarshalBothForms(t *testing.T) {
	raw := `{
		"values": {"RHIVOS OS ID": "autosd"},
		"run_id": "12345",
		"start": "2025-09-22T10:00:00Z"
	}`
	var item ExportedLabelValues
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.Equal(t, FlexID("12345"), item.RunID)
	require.Len(t, item.Values, 1)
	assert.Equal(t, "RHIVOS OS ID", item.Values[0].Name)
	require.NotNil(t, item.Start)
}
