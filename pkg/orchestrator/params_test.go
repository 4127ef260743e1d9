package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/normalize"
)

func TestParseParams_Full(t *testing.T) {
	req, err := ParseParams(map[string]any{
		"source_id":     "horreum",
		"test_id":       "262",
		"run_id":        "127723",
		"schema_uri":    "urn:boot-time-verbose:4.0",
		"from":          "2025-08-01T00:00:00.000000Z",
		"to":            "2025-08-20T00:00:00.000000Z",
		"limit":         50,
		"plan_only":     true,
		"merge_strategy": "comprehensive",
		"dataset_types": []any{"boot-time-verbose"},
		"data":          []any{map[string]any{"boot_time": []any{1.0}}},
		normalize.DetectedOSFilterKey:  "autosd",
		normalize.DetectedRunTypeKey:   "nightly",
	})
	require.NoError(t, err)

	assert.Equal(t, "horreum", req.SourceID)
	assert.Equal(t, "262", req.TestID)
	assert.Equal(t, "127723", req.RunID)
	assert.Equal(t, "urn:boot-time-verbose:4.0", req.SchemaURI)
	assert.Equal(t, 50, req.Limit)
	assert.True(t, req.PlanOnly)
	assert.Equal(t, contract.MergeComprehensive, req.MergeStrategy)
	assert.Equal(t, []string{"boot-time-verbose"}, req.DatasetTypes)
	require.Len(t, req.Data, 1)
	assert.JSONEq(t, `{"boot_time":[1]}`, string(req.Data[0]))
	assert.Equal(t, "autosd", req.OSFilter)
	assert.Equal(t, "nightly", req.RunTypeFilter)
}

func TestParseParams_Defaults(t *testing.T) {
	req, err := ParseParams(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, req.SourceID)
	assert.Equal(t, contract.MergePreferFast, req.MergeStrategy, "empty strategy defaults to prefer_fast")
	assert.Zero(t, req.Limit)
	assert.False(t, req.PlanOnly)
	assert.Nil(t, req.Data)
}

func TestParseParams_BadMergeStrategy(t *testing.T) {
	_, err := ParseParams(map[string]any{"merge_strategy": "fastest"})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeInvalidRequest, oerr.Type)
	assert.Equal(t, 400, oerr.HTTPStatus)
}
