package orchestrator

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/normalize"
)

// ParseParams converts normalized get_key_metrics parameters into a typed
// Request, popping the out-of-band filter hints the normalizer injected.
// Input maps come from normalize.GetKeyMetricsParams, so ids are already
// strings and limit is an int.
func ParseParams(params map[string]any) (Request, error) {
	req := Request{
		SourceID:  stringParam(params, "source_id"),
		TestID:    stringParam(params, "test_id"),
		RunID:     stringParam(params, "run_id"),
		SchemaURI: stringParam(params, "schema_uri"),
		From:      stringParam(params, "from"),
		To:        stringParam(params, "to"),
		OSFilter:  stringParam(params, normalize.DetectedOSFilterKey),
		RunTypeFilter: stringParam(params, normalize.DetectedRunTypeKey),
	}

	if v, ok := params["plan_only"].(bool); ok {
		req.PlanOnly = v
	}
	if v, ok := params["limit"].(int); ok {
		req.Limit = v
	}

	strategy, ok := contract.ParseMergeStrategy(stringParam(params, "merge_strategy"))
	if !ok {
		return Request{}, &Error{
			Type:       ErrTypeInvalidRequest,
			Detail:     fmt.Sprintf("unknown merge_strategy %q", params["merge_strategy"]),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	req.MergeStrategy = strategy

	if dtypes, ok := params["dataset_types"].([]any); ok {
		for _, dt := range dtypes {
			if s, ok := dt.(string); ok {
				req.DatasetTypes = append(req.DatasetTypes, s)
			}
		}
	}

	if data, ok := params["data"].([]any); ok {
		for _, body := range data {
			raw, err := json.Marshal(body)
			if err != nil {
				return Request{}, &Error{
					Type:       ErrTypeInvalidRequest,
					Detail:     fmt.Sprintf("encoding raw dataset body: %v", err),
					HTTPStatus: http.StatusBadRequest,
				}
			}
			req.Data = append(req.Data, raw)
		}
	}

	return req, nil
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
