package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnml/pkg/data"
	"churnml/pkg/model"
	"churnml/pkg/pipeline"
)

func fittedPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	f := data.NewFrame()
	require.NoError(t, f.Add(data.NewIntSeries("age", []int{20, 30, 40, 50})))
	require.NoError(t, f.Add(data.NewIntSeries("tenure", []int{1, 2, 40, 50})))
	require.NoError(t, f.Add(data.NewFloatSeries("monthlyCharges", []float64{90, 80, 30, 20})))
	require.NoError(t, f.Add(data.NewIntSeries("paymentDelay", []int{20, 15, 0, 1})))
	require.NoError(t, f.Add(data.NewTextSeries("contract", []string{"Month-to-month", "Month-to-month", "Two year", "Two year"})))
	require.NoError(t, f.Add(data.NewTextSeries("internetService", []string{"Fiber optic", "DSL", "DSL", "None"})))

	p := pipeline.NewPipeline(pipeline.Churn, model.NewRandomForest(model.WithNEstimators(3), model.WithSeed(1)))
	require.NoError(t, p.Fit(f, []int{1, 1, 0, 0}))
	return p
}

func TestResolveDir(t *testing.T) {
	t.Setenv(DirEnv, "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "models"), ResolveDir(""))

	env := t.TempDir()
	t.Setenv(DirEnv, env)
	assert.Equal(t, env, ResolveDir(""))

	explicit := t.TempDir()
	assert.Equal(t, explicit, ResolveDir(explicit))
	assert.Equal(t, filepath.Join(explicit, PipelineFile), New(WithDir(explicit)).PipelinePath())
}

func TestLoadPipelineMissing(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(WithDir(t.TempDir()), WithRegisterer(reg))

	_, err := s.LoadPipeline()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, s.PipelinePath(), nf.Path)
	assert.Contains(t, err.Error(), "churn-train")

	_, err = s.LoadMetrics()
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.loads.WithLabelValues("pipeline", "not_found")))
}

func TestLoadFailureIsNotCached(t *testing.T) {
	s := New(WithDir(t.TempDir()))

	_, err := s.LoadPipeline()
	require.Error(t, err)

	_, err = s.SavePipeline(fittedPipeline(t))
	require.NoError(t, err)

	p, err := s.LoadPipeline()
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestLoadPipelineOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(WithDir(t.TempDir()), WithRegisterer(reg))
	_, err := s.SavePipeline(fittedPipeline(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	got := make([]*pipeline.Pipeline, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.LoadPipeline()
			assert.NoError(t, err)
			got[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range got {
		assert.Same(t, got[0], p)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(s.loads.WithLabelValues("pipeline", "loaded")))
	assert.Equal(t, 7.0, testutil.ToFloat64(s.loads.WithLabelValues("pipeline", "cached")))
}

func TestMetricsRoundTripAndReset(t *testing.T) {
	s := New(WithDir(t.TempDir()))
	in := &Metrics{
		Model:        ModelInfo{Name: "RandomForestChurn", Version: "2026-10-16T09:00:00Z"},
		ModelVersion: "2026-10-16T09:00:00Z",
		KPIs:         KPIs{Accuracy: 0.8, F1: 0.5, ROCAUC: 0.75, ChurnRate: 0.25, Samples: 20},
		ConfusionMatrix: ConfusionMatrix{
			Labels: []string{"NO_CHURN", "CHURN"},
			Matrix: [][]int{{12, 3}, {1, 4}},
		},
		ROCCurve:          []ROCPoint{{0, 0}, {0.2, 0.8}, {1, 1}},
		FeatureImportance: []FeatureImportance{{Feature: "tenure", Importance: 0.4}},
	}
	path, err := s.SaveMetrics(in)
	require.NoError(t, err)
	assert.Equal(t, s.MetricsPath(), path)

	first, err := s.LoadMetrics()
	require.NoError(t, err)
	assert.Equal(t, in, first)

	again, err := s.LoadMetrics()
	require.NoError(t, err)
	assert.Same(t, first, again)

	s.Reset()
	fresh, err := s.LoadMetrics()
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.Equal(t, first, fresh)
}

func TestCachesAreIndependent(t *testing.T) {
	s := New(WithDir(t.TempDir()))
	_, err := s.SaveMetrics(&Metrics{Model: ModelInfo{Name: "RandomForestChurn"}})
	require.NoError(t, err)

	_, err = s.LoadMetrics()
	require.NoError(t, err)
	_, err = s.LoadPipeline()
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestCorruptFilesAreNotNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetricsFile), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PipelineFile), []byte("junk"), 0o644))
	s := New(WithDir(dir))

	_, err := s.LoadMetrics()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrArtifactNotFound))

	_, err = s.LoadPipeline()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrArtifactNotFound))
}

func TestWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := New(WithDir(dir))
	_, err := s.SaveMetrics(&Metrics{})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, MetricsFile, entries[0].Name())
}

func TestPublishWritesBoth(t *testing.T) {
	dir := t.TempDir()
	s := New(WithDir(dir))
	pipePath, metPath, err := s.Publish(fittedPipeline(t), &Metrics{ModelVersion: "v1"})
	require.NoError(t, err)
	assert.Equal(t, s.PipelinePath(), pipePath)
	assert.Equal(t, s.MetricsPath(), metPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{MetricsFile, PipelineFile}, names)

	_, err = s.LoadPipeline()
	require.NoError(t, err)
	m, err := s.LoadMetrics()
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Version())
}

// metrics.json occupied by a non-empty directory makes the final rename fail.
func blockMetrics(t *testing.T, dir string) {
	t.Helper()
	blocked := filepath.Join(dir, MetricsFile)
	require.NoError(t, os.MkdirAll(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), []byte("x"), 0o644))
}

func TestPublishRestoresPipelineWhenMetricsFail(t *testing.T) {
	dir := t.TempDir()
	s := New(WithDir(dir))
	_, err := s.SavePipeline(fittedPipeline(t))
	require.NoError(t, err)
	before, err := os.ReadFile(s.PipelinePath())
	require.NoError(t, err)
	blockMetrics(t, dir)

	next := fittedPipeline(t)
	next.Forest.RandomState = 99

	_, _, err = s.Publish(next, &Metrics{ModelVersion: "v2"})
	require.Error(t, err)

	after, err := os.ReadFile(s.PipelinePath())
	require.NoError(t, err)
	assert.Equal(t, before, after, "previous pipeline is back in place")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp or backup files left")
}

func TestPublishRemovesPipelineWhenNoneExisted(t *testing.T) {
	dir := t.TempDir()
	s := New(WithDir(dir))
	blockMetrics(t, dir)

	_, _, err := s.Publish(fittedPipeline(t), &Metrics{ModelVersion: "v1"})
	require.Error(t, err)
	assert.NoFileExists(t, s.PipelinePath())
	_, err = s.LoadPipeline()
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestMetricsVersion(t *testing.T) {
	var nilMetrics *Metrics
	assert.Equal(t, "", nilMetrics.Version())
	assert.Equal(t, "a", (&Metrics{Model: ModelInfo{Version: "a"}, ModelVersion: "b"}).Version())
	assert.Equal(t, "b", (&Metrics{ModelVersion: "b"}).Version())
	assert.Equal(t, "", (&Metrics{}).Version())
}

func TestRegisterTwiceSharesCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(WithDir(t.TempDir()), WithRegisterer(reg))
	b := New(WithDir(t.TempDir()), WithRegisterer(reg))
	assert.Same(t, a.loads, b.loads)
}
