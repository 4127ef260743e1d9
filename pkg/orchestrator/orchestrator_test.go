package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfscale/domain-mcp/pkg/adapter"
	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/domain"
	"github.com/perfscale/domain-mcp/pkg/plugin"
)

// fakeSource scripts adapter responses per operation.
type fakeSource struct {
	testsList      func(contract.TestsListRequest) (contract.TestsListResponse, error)
	datasetsSearch func(contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error)
	datasetsGet    func(contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error)
	runLV          func(contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error)
	testLV         func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error)
}

func (f *fakeSource) SourceDescribe(context.Context, contract.SourceDescribeRequest) (contract.SourceDescribeResponse, error) {
	return contract.SourceDescribeResponse{}, nil
}

func (f *fakeSource) TestsList(_ context.Context, req contract.TestsListRequest) (contract.TestsListResponse, error) {
	if f.testsList == nil {
		return contract.TestsListResponse{}, errors.New("tests.list not scripted")
	}
	return f.testsList(req)
}

func (f *fakeSource) RunsList(context.Context, contract.RunsListRequest) (contract.RunsListResponse, error) {
	return contract.RunsListResponse{}, nil
}

func (f *fakeSource) DatasetsSearch(_ context.Context, req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
	if f.datasetsSearch == nil {
		return contract.DatasetsSearchResponse{}, errors.New("datasets.search not scripted")
	}
	return f.datasetsSearch(req)
}

func (f *fakeSource) DatasetsGet(_ context.Context, req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
	if f.datasetsGet == nil {
		return contract.DatasetsGetResponse{}, errors.New("datasets.get not scripted")
	}
	return f.datasetsGet(req)
}

func (f *fakeSource) ArtifactsGet(context.Context, contract.ArtifactsGetRequest) (contract.ArtifactsGetResponse, error) {
	return contract.ArtifactsGetResponse{}, nil
}

func (f *fakeSource) DatasetLabelValues(context.Context, contract.DatasetLabelValuesRequest) (contract.DatasetLabelValuesResponse, error) {
	return contract.DatasetLabelValuesResponse{}, nil
}

func (f *fakeSource) RunLabelValues(_ context.Context, req contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error) {
	if f.runLV == nil {
		return contract.RunLabelValuesResponse{}, errors.New("run_label_values not scripted")
	}
	return f.runLV(req)
}

func (f *fakeSource) TestLabelValues(_ context.Context, req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
	if f.testLV == nil {
		return contract.TestLabelValuesResponse{}, errors.New("test_label_values not scripted")
	}
	return f.testLV(req)
}

// countingPlugin emits one point per dataset body and one point per
// label-values item.
type countingPlugin struct {
	id string
}

func (p *countingPlugin) ID() string                                 { return p.id }
func (p *countingPlugin) Glossary() map[string]plugin.GlossaryEntry { return nil }
func (p *countingPlugin) KPIs() []string                             { return nil }

func (p *countingPlugin) Extract(_ context.Context, in plugin.Input) ([]domain.MetricPoint, error) {
	ts := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	var points []domain.MetricPoint
	for range in.LabelValues {
		points = append(points, domain.MetricPoint{
			MetricID: "boot.time.total_ms", Timestamp: ts, Value: 100, Source: "label_values",
		})
	}
	if len(in.Dataset) > 0 {
		points = append(points, domain.MetricPoint{
			MetricID: "boot.time.total_ms", Timestamp: ts.Add(time.Hour), Value: 200, Source: "dataset",
		})
	}
	return points, nil
}

func newTestOrchestrator(src adapter.Source) *Orchestrator {
	sources := adapter.NewRegistry()
	if src != nil {
		sources.Register("horreum", src, "HTTP")
	}
	plugins := plugin.NewRegistry()
	plugins.Register(&countingPlugin{id: "boot-time-verbose"})
	return New(sources, plugins)
}

func labelItems(n int) []contract.ExportedLabelValues {
	items := make([]contract.ExportedLabelValues, n)
	for i := range items {
		items[i] = contract.ExportedLabelValues{RunID: "1"}
	}
	return items
}

func TestGetKeyMetrics_RawMode(t *testing.T) {
	o := newTestOrchestrator(nil)
	resp, err := o.GetKeyMetrics(context.Background(), Request{
		DatasetTypes: []string{"boot-time-verbose"},
		Data:         []json.RawMessage{json.RawMessage(`{"boot_time": [1]}`)},
	})
	require.NoError(t, err)
	require.Len(t, resp.MetricPoints, 1)
	assert.Equal(t, "dataset", resp.MetricPoints[0].Source)
	assert.Equal(t, domain.ModelVersion, resp.ModelVersion)
}

func TestGetKeyMetrics_UnknownDatasetType(t *testing.T) {
	o := newTestOrchestrator(nil)
	_, err := o.GetKeyMetrics(context.Background(), Request{
		DatasetTypes: []string{"nope"},
		Data:         []json.RawMessage{json.RawMessage(`{}`)},
	})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeUnknownDatasetType, oerr.Type)
	assert.Equal(t, []string{"boot-time-verbose"}, oerr.Options)
}

func TestGetKeyMetrics_PlanOnly(t *testing.T) {
	o := newTestOrchestrator(nil)
	resp, err := o.GetKeyMetrics(context.Background(), Request{
		PlanOnly: true, TestID: "262", SchemaURI: "urn:boot:4", Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, resp.FetchPlan, 2)
	assert.Equal(t, "datasets.search", resp.FetchPlan[0].Tool)
	assert.Equal(t, "262", resp.FetchPlan[0].Args["test_id"])
	assert.Equal(t, "datasets.get", resp.FetchPlan[1].Tool)
	assert.Empty(t, resp.MetricPoints)
}

func TestGetKeyMetrics_NoSourcesConfigured(t *testing.T) {
	o := newTestOrchestrator(nil)
	_, err := o.GetKeyMetrics(context.Background(), Request{})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeMissingConfiguration, oerr.Type)
}

func TestGetKeyMetrics_UnknownSourceID(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{})
	_, err := o.GetKeyMetrics(context.Background(), Request{SourceID: "elastic"})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeUnknownSourceID, oerr.Type)
	assert.Equal(t, []string{"horreum"}, oerr.Options)
}

func TestGetKeyMetrics_FastPathUsesLabelValues(t *testing.T) {
	var lvReq contract.TestLabelValuesRequest
	src := &fakeSource{
		testLV: func(req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			lvReq = req
			return contract.TestLabelValuesResponse{Items: labelItems(3)}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{
		TestID:        "262",
		OSFilter:      "autosd",
		RunTypeFilter: "nightly",
	})
	require.NoError(t, err)

	require.Len(t, resp.MetricPoints, 3)
	assert.Equal(t, "label_values", resp.MetricPoints[0].Source)

	assert.True(t, lvReq.Metrics)
	assert.True(t, lvReq.Filtering)
	assert.True(t, lvReq.MultiFilter)
	assert.Equal(t, []string{"autosd"}, lvReq.Filter["OS ID"])
	assert.Equal(t, []string{"nightly"}, lvReq.Filter["Run type"])
}

func TestGetKeyMetrics_PreferFastFallsBackToDatasets(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{}, nil
		},
		datasetsSearch: func(req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			return contract.DatasetsSearchResponse{
				Datasets:   []contract.DatasetInfo{{DatasetID: "41"}, {DatasetID: "42"}},
				Pagination: contract.Pagination{HasMore: false},
			}, nil
		},
		datasetsGet: func(req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
			return contract.DatasetsGetResponse{
				DatasetID: contract.FlexID(req.DatasetID),
				Content:   map[string]any{"boot_metrics": map[string]any{}},
			}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{TestID: "262"})
	require.NoError(t, err)
	require.Len(t, resp.MetricPoints, 2)
	assert.Equal(t, "dataset", resp.MetricPoints[0].Source)
}

func TestGetKeyMetrics_LabelValuesErrorFallsBack(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{}, &adapter.StatusError{StatusCode: 404, Path: "/x"}
		},
		datasetsSearch: func(contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			return contract.DatasetsSearchResponse{}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{TestID: "262"})
	require.NoError(t, err, "label value failures are non-fatal")
	assert.Empty(t, resp.MetricPoints)
}

func TestGetKeyMetrics_ComprehensiveMergesBothPaths(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{Items: labelItems(1)}, nil
		},
		datasetsSearch: func(contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			return contract.DatasetsSearchResponse{
				Datasets: []contract.DatasetInfo{{DatasetID: "41"}},
			}, nil
		},
		datasetsGet: func(req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
			return contract.DatasetsGetResponse{Content: map[string]any{"x": 1}}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{
		TestID:        "262",
		MergeStrategy: contract.MergeComprehensive,
	})
	require.NoError(t, err)
	require.Len(t, resp.MetricPoints, 2, "different timestamps, both kept")
}

func TestGetKeyMetrics_LabelsOnlyFailsWhenEmpty(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{}, nil
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{
		TestID:        "262",
		MergeStrategy: contract.MergeLabelsOnly,
	})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeLabelsUnavailable, oerr.Type)
}

func TestGetKeyMetrics_AutoDiscoversTestID(t *testing.T) {
	var lvTestID string
	src := &fakeSource{
		testsList: func(req contract.TestsListRequest) (contract.TestsListResponse, error) {
			if req.Query == "boot-time-verbose" {
				return contract.TestsListResponse{Tests: []contract.TestInfo{
					{TestID: "109", Name: "rhivos-boot-time-verbose"},
				}}, nil
			}
			return contract.TestsListResponse{}, nil
		},
		testLV: func(req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			lvTestID = req.TestID
			return contract.TestLabelValuesResponse{Items: labelItems(1)}, nil
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "109", lvTestID)
}

func TestGetKeyMetrics_DiscoveryExcludesFrameworkTests(t *testing.T) {
	var lvTestID string
	src := &fakeSource{
		testsList: func(req contract.TestsListRequest) (contract.TestsListResponse, error) {
			if req.Query == "boot-time-verbose" {
				return contract.TestsListResponse{}, nil
			}
			return contract.TestsListResponse{Tests: []contract.TestInfo{
				{TestID: "7", Name: "quarkus-boot-time"},
				{TestID: "8", Name: "automotive-boot-time"},
			}}, nil
		},
		testLV: func(req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			lvTestID = req.TestID
			return contract.TestLabelValuesResponse{Items: labelItems(1)}, nil
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "8", lvTestID)
}

func TestGetKeyMetrics_DiscoveryFallsBackToKnownID(t *testing.T) {
	var lvTestID string
	src := &fakeSource{
		testsList: func(contract.TestsListRequest) (contract.TestsListResponse, error) {
			return contract.TestsListResponse{}, errors.New("listing unavailable")
		},
		testLV: func(req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			lvTestID = req.TestID
			return contract.TestLabelValuesResponse{Items: labelItems(1)}, nil
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, fallbackBootTimeTestID, lvTestID)
}

func TestGetKeyMetrics_RunIDSkipsDiscovery(t *testing.T) {
	var searchReq contract.DatasetsSearchRequest
	src := &fakeSource{
		runLV: func(req contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error) {
			return contract.RunLabelValuesResponse{}, nil
		},
		datasetsSearch: func(req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			searchReq = req
			return contract.DatasetsSearchResponse{}, nil
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{RunID: "127723"})
	require.NoError(t, err)
	assert.Equal(t, []string{"127723"}, searchReq.RunIDs, "run id filter applied to dataset search")
}

func TestGetKeyMetrics_SearchErrorMapsUpstream(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{}, nil
		},
		datasetsSearch: func(contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			return contract.DatasetsSearchResponse{}, &adapter.StatusError{StatusCode: 502, Path: "/x"}
		},
	}
	o := newTestOrchestrator(src)

	_, err := o.GetKeyMetrics(context.Background(), Request{TestID: "262"})
	oerr := AsError(err)
	assert.Equal(t, ErrTypeUpstreamHTTPError, oerr.Type)
	assert.Equal(t, 502, oerr.HTTPStatus)
}

func TestGetKeyMetrics_PaginatesDatasetSearch(t *testing.T) {
	searchCalls := 0
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{}, nil
		},
		datasetsSearch: func(req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
			searchCalls++
			if req.PageToken == "" {
				return contract.DatasetsSearchResponse{
					Datasets:   []contract.DatasetInfo{{DatasetID: "1"}},
					Pagination: contract.Pagination{HasMore: true, NextPageToken: "p2"},
				}, nil
			}
			return contract.DatasetsSearchResponse{
				Datasets: []contract.DatasetInfo{{DatasetID: "2"}},
			}, nil
		},
		datasetsGet: func(req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
			return contract.DatasetsGetResponse{Content: map[string]any{"x": 1}}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{TestID: "262"})
	require.NoError(t, err)
	assert.Equal(t, 2, searchCalls)
	assert.Len(t, resp.MetricPoints, 2)
}

func TestGetKeyMetrics_DefensivePaginationBreak(t *testing.T) {
	src := &fakeSource{
		testLV: func(contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
			return contract.TestLabelValuesResponse{
				Items: labelItems(1),
				// has_more without a token must not loop forever.
				Pagination: contract.Pagination{HasMore: true},
			}, nil
		},
	}
	o := newTestOrchestrator(src)

	resp, err := o.GetKeyMetrics(context.Background(), Request{TestID: "262"})
	require.NoError(t, err)
	assert.Len(t, resp.MetricPoints, 1)
}
