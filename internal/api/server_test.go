package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnml/internal/artifact"
	"churnml/internal/logging"
	"churnml/internal/predict"
	"churnml/pkg/data"
	"churnml/pkg/pipeline"
)

type stubModel struct{ proba float64 }

func (stubModel) Columns() []string { return pipeline.Churn.Columns() }

func (m stubModel) PredictProba(*data.Frame) ([]float64, error) { return []float64{m.proba}, nil }

type stubArtifacts struct {
	model   predict.Model
	metrics *artifact.Metrics
}

func (a stubArtifacts) LoadModel() (predict.Model, error) {
	if a.model == nil {
		return nil, &artifact.NotFoundError{Artifact: "pipeline", Path: "models/rf_pipeline.gob"}
	}
	return a.model, nil
}

func (a stubArtifacts) LoadMetrics() (*artifact.Metrics, error) {
	if a.metrics == nil {
		return nil, &artifact.NotFoundError{Artifact: "metrics", Path: "models/metrics.json"}
	}
	return a.metrics, nil
}

func newFixture(t *testing.T, a stubArtifacts) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	e := New(predict.NewService(a), a, reg, logging.Discard())
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func sampleMetrics() *artifact.Metrics {
	return &artifact.Metrics{
		Model:        artifact.ModelInfo{Name: "RandomForestChurn", Version: "2026-10-16T07:30:00Z"},
		ModelVersion: "2026-10-16T07:30:00Z",
		KPIs:         artifact.KPIs{Accuracy: 0.81, Samples: 160},
		FeatureImportance: []artifact.FeatureImportance{
			{Feature: "tenure", Importance: 0.31},
			{Feature: "paymentDelay", Importance: 0.22},
		},
	}
}

const body = `{"age":42,"tenure":24,"monthlyCharges":72.3,"contract":"One year","internetService":"Fiber optic","paymentDelay":5}`

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndMetadata(t *testing.T) {
	srv := newFixture(t, stubArtifacts{})

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	resp, err = http.Get(srv.URL + "/api/metadata")
	require.NoError(t, err)
	md := decode[Metadata](t, resp)
	assert.Equal(t, "Month-to-month", md.ContractOptions[0])
	assert.Equal(t, "DSL", md.InternetServiceOptions[0])
}

func TestPredictEndpoint(t *testing.T) {
	srv := newFixture(t, stubArtifacts{model: stubModel{proba: 0.5}, metrics: sampleMetrics()})

	resp, err := http.Post(srv.URL+"/api/predict", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[predict.Result](t, resp)
	assert.Equal(t, predict.Result{Label: "CHURN", Score: 0.5, Proba: 0.5, ModelVersion: "2026-10-16T07:30:00Z"}, res)
}

func TestPredictEndpointRejects(t *testing.T) {
	srv := newFixture(t, stubArtifacts{model: stubModel{proba: 0.1}})

	cases := map[string]struct {
		body string
		want string
	}{
		"malformed":      {`{"age":`, "invalid JSON"},
		"missing fields": {`{"age":42}`, "missing required fields: tenure"},
		"age range":      {strings.Replace(body, `"age":42`, `"age":130`, 1), "age must be <= 120"},
		"delay range":    {strings.Replace(body, `"paymentDelay":5`, `"paymentDelay":-1`, 1), "paymentDelay must be >= 0"},
		"contract":       {strings.Replace(body, `"One year"`, `"Weekly"`, 1), "contract must be one of"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/predict", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			er := decode[ErrorResponse](t, resp)
			assert.Equal(t, http.StatusBadRequest, er.Status)
			assert.Contains(t, er.Message, tc.want)
		})
	}
}

func TestPredictWithoutModel(t *testing.T) {
	srv := newFixture(t, stubArtifacts{})

	resp, err := http.Post(srv.URL+"/api/predict", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, resp).Message, "run churn-train first")
}

func TestModelEndpoints(t *testing.T) {
	srv := newFixture(t, stubArtifacts{metrics: sampleMetrics()})

	resp, err := http.Get(srv.URL + "/api/model/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	m := decode[artifact.Metrics](t, resp)
	assert.Equal(t, 160, m.KPIs.Samples)

	resp, err = http.Get(srv.URL + "/api/model/feature-importance")
	require.NoError(t, err)
	fi := decode[[]artifact.FeatureImportance](t, resp)
	require.Len(t, fi, 2)
	assert.Equal(t, "tenure", fi[0].Feature)
}

func TestModelEndpointsWithoutMetrics(t *testing.T) {
	srv := newFixture(t, stubArtifacts{})

	resp, err := http.Get(srv.URL + "/api/model/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, decode[ErrorResponse](t, resp).Status)

	resp, err = http.Get(srv.URL + "/api/model/feature-importance")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]artifact.FeatureImportance](t, resp))
}

func TestPrometheusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := stubArtifacts{model: stubModel{proba: 0.9}, metrics: sampleMetrics()}
	e := New(predict.NewService(a), a, reg, logging.Discard())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	n, err := testutil.GatherAndCount(reg, "churn_predictions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `churn_predictions_total{outcome="churn"} 3`)
}
