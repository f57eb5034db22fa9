package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"churnml/internal/logging"
	"churnml/pkg/pipeline"
)

const (
	PipelineFile = "rf_pipeline.gob"
	MetricsFile  = "metrics.json"
	ROCChartFile = "roc_curve.png"

	DirEnv     = "CHURN_MODELS_DIR"
	DefaultDir = "models"
)

// ErrArtifactNotFound is matched by every *NotFoundError.
var ErrArtifactNotFound = errors.New("artifact not found")

// NotFoundError reports a missing artifact file.
type NotFoundError struct {
	Artifact string
	Path     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s: run churn-train first", e.Artifact, e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrArtifactNotFound }

// Store owns the artifact directory. Each artifact is loaded at most once
// per successful load; a failed load is retried on the next call.
type Store struct {
	dir    string
	logger *slog.Logger
	loads  *prometheus.CounterVec

	pipeMu sync.Mutex
	pipe   *pipeline.Pipeline

	metMu   sync.Mutex
	metrics *Metrics
}

type Option func(*Store)

// WithDir pins the artifact directory, bypassing CHURN_MODELS_DIR.
func WithDir(dir string) Option { return func(s *Store) { s.dir = dir } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithRegisterer exposes the load counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		if reg == nil {
			return
		}
		if err := reg.Register(s.loads); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					s.loads = existing
				}
			}
		}
	}
}

// New builds a store. Without WithDir the directory is CHURN_MODELS_DIR, or
// "models" under the working directory.
func New(opts ...Option) *Store {
	s := &Store{
		logger: logging.Discard(),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "churn",
				Name:      "artifact_loads_total",
				Help:      "Artifact load attempts by artifact and result.",
			},
			[]string{"artifact", "result"},
		),
	}
	for _, o := range opts {
		o(s)
	}
	s.dir = ResolveDir(s.dir)
	return s
}

// ResolveDir applies the directory precedence: explicit, then
// CHURN_MODELS_DIR, then ./models.
func ResolveDir(explicit string) string {
	dir := explicit
	if dir == "" {
		dir = os.Getenv(DirEnv)
	}
	if dir == "" {
		dir = DefaultDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func (s *Store) Dir() string          { return s.dir }
func (s *Store) PipelinePath() string { return filepath.Join(s.dir, PipelineFile) }
func (s *Store) MetricsPath() string  { return filepath.Join(s.dir, MetricsFile) }

// LoadPipeline returns the cached pipeline, loading it on first use.
func (s *Store) LoadPipeline() (*pipeline.Pipeline, error) {
	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()

	if s.pipe != nil {
		s.loads.WithLabelValues("pipeline", "cached").Inc()
		return s.pipe, nil
	}
	path := s.PipelinePath()
	f, err := os.Open(path)
	if err != nil {
		return nil, s.loadFailed("pipeline", path, err)
	}
	defer f.Close()

	p, err := pipeline.Decode(f)
	if err != nil {
		return nil, s.loadFailed("pipeline", path, err)
	}
	s.pipe = p
	s.loads.WithLabelValues("pipeline", "loaded").Inc()
	s.logger.Info("pipeline loaded", "path", path, "trees", len(p.Forest.Trees))
	return p, nil
}

// LoadMetrics returns the cached metrics document, loading it on first use.
func (s *Store) LoadMetrics() (*Metrics, error) {
	s.metMu.Lock()
	defer s.metMu.Unlock()

	if s.metrics != nil {
		s.loads.WithLabelValues("metrics", "cached").Inc()
		return s.metrics, nil
	}
	path := s.MetricsPath()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, s.loadFailed("metrics", path, err)
	}
	var m Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, s.loadFailed("metrics", path, fmt.Errorf("decode %s: %w", path, err))
	}
	s.metrics = &m
	s.loads.WithLabelValues("metrics", "loaded").Inc()
	s.logger.Debug("metrics loaded", "path", path)
	return &m, nil
}

func (s *Store) loadFailed(artifact, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		s.loads.WithLabelValues(artifact, "not_found").Inc()
		return &NotFoundError{Artifact: artifact, Path: path}
	}
	s.loads.WithLabelValues(artifact, "error").Inc()
	return fmt.Errorf("load %s: %w", artifact, err)
}

// SavePipeline atomically replaces the pipeline file and drops the cached
// copy.
func (s *Store) SavePipeline(p *pipeline.Pipeline) (string, error) {
	path, err := s.WriteFile(PipelineFile, p.Encode)
	if err != nil {
		return "", err
	}
	s.dropPipeline()
	return path, nil
}

// SaveMetrics atomically replaces metrics.json and drops the cached copy.
func (s *Store) SaveMetrics(m *Metrics) (string, error) {
	path, err := s.WriteFile(MetricsFile, encodeMetrics(m))
	if err != nil {
		return "", err
	}
	s.dropMetrics()
	return path, nil
}

// Publish replaces the pipeline and its metrics together. Both are encoded
// before either file changes. If the metrics cannot be put in place, the
// previous pipeline is restored (or the new one removed when there was
// none), so the directory never pairs a new pipeline with stale metrics.
func (s *Store) Publish(p *pipeline.Pipeline, m *Metrics) (pipePath, metPath string, err error) {
	pipeTmp, err := s.stage(PipelineFile, p.Encode)
	if err != nil {
		return "", "", err
	}
	defer os.Remove(pipeTmp)
	metTmp, err := s.stage(MetricsFile, encodeMetrics(m))
	if err != nil {
		return "", "", err
	}
	defer os.Remove(metTmp)

	backup := ""
	if _, statErr := os.Stat(s.PipelinePath()); statErr == nil {
		b := filepath.Join(s.dir, "."+PipelineFile+".prev")
		_ = os.Remove(b)
		if os.Link(s.PipelinePath(), b) == nil {
			backup = b
			defer os.Remove(backup)
		}
	}

	defer s.dropPipeline()
	if pipePath, err = s.commit(pipeTmp, PipelineFile); err != nil {
		return "", "", err
	}
	if metPath, err = s.commit(metTmp, MetricsFile); err != nil {
		s.rollbackPipeline(backup)
		return "", "", err
	}
	s.dropMetrics()
	return pipePath, metPath, nil
}

func (s *Store) rollbackPipeline(backup string) {
	var err error
	if backup != "" {
		err = os.Rename(backup, s.PipelinePath())
	} else {
		err = os.Remove(s.PipelinePath())
	}
	if err != nil {
		s.logger.Error("pipeline rollback failed", "path", s.PipelinePath(), "error", err)
		return
	}
	s.logger.Warn("pipeline rolled back after metrics write failure", "path", s.PipelinePath())
}

func encodeMetrics(m *Metrics) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
}

// WriteFile writes name inside the artifact directory through a temp file
// and a rename, so readers see either the old or the new content.
func (s *Store) WriteFile(name string, write func(io.Writer) error) (string, error) {
	tmp, err := s.stage(name, write)
	if err != nil {
		return "", err
	}
	return s.commit(tmp, name)
}

// stage writes a synced temp file next to name and returns its path.
func (s *Store) stage(name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := write(tmp); err != nil {
		return fail(fmt.Errorf("write %s: %w", name, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", name, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return tmp.Name(), nil
}

func (s *Store) commit(tmp, name string) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	s.logger.Info("artifact saved", "path", path)
	return path, nil
}

// Reset drops both caches.
func (s *Store) Reset() {
	s.dropPipeline()
	s.dropMetrics()
}

func (s *Store) dropPipeline() {
	s.pipeMu.Lock()
	s.pipe = nil
	s.pipeMu.Unlock()
}

func (s *Store) dropMetrics() {
	s.metMu.Lock()
	s.metrics = nil
	s.metMu.Unlock()
}
