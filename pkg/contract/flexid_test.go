package contract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexID_UnmarshalNumberAndString(t *testing.T) {
	var info TestInfo
	require.NoError(t, json.Unmarshal([]byte(`{"test_id": 262, "name": "boot-time"}`), &info))
	assert.Equal(t, FlexID("262"), info.TestID)

	require.NoError(t, json.Unmarshal([]byte(`{"test_id": "262", "name": "boot-time"}`), &info))
	assert.Equal(t, FlexID("262"), info.TestID)

	assert.Error(t, json.Unmarshal([]byte(`{"test_id": true}`), &info))
}

func TestFlexID_MarshalsAsString(t *testing.T) {
	out, err := json.Marshal(DatasetInfo{DatasetID: "42", RunID: "7", TestID: "262"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"dataset_id":"42"`)
}
