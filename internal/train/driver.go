package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"churnml/internal/artifact"
	"churnml/internal/logging"
	"churnml/pkg/data"
	"churnml/pkg/loader"
	"churnml/pkg/model"
	"churnml/pkg/pipeline"
)

const (
	CSVPathEnv     = "CHURN_CSV_PATH"
	DefaultCSVPath = "data/telecom_churn.csv"

	ModelName     = "RandomForestChurn"
	versionLayout = "2006-01-02T15:04:05Z"
	topFeatures   = 15
)

// SchemaError lists every required column the dataset lacks.
type SchemaError struct {
	Missing []string
	Target  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv missing columns: %s (required: %s and target %q)",
		strings.Join(e.Missing, ", "), strings.Join(pipeline.Churn.Columns(), ", "), e.Target)
}

// Options tune a training run. Zero values take the defaults used in
// production: target Churn, seed 42, 300 trees, 20% holdout. A nil Seed
// means 42; any other value, 0 included, is used as given.
type Options struct {
	Target   string
	Seed     *int64
	Trees    int
	TestSize float64
	NJobs    int
	Now      func() time.Time
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = pipeline.Churn.Target
	}
	if o.Seed == nil {
		seed := int64(42)
		o.Seed = &seed
	}
	if o.Trees <= 0 {
		o.Trees = 300
	}
	if o.TestSize <= 0 {
		o.TestSize = 0.2
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

// Report summarizes a finished run.
type Report struct {
	RunID        string
	CSVPath      string
	Metrics      *artifact.Metrics
	Accuracy     float64
	Precision    float64
	Recall       float64
	F1           float64
	ROCAUC       float64
	PipelinePath string
	MetricsPath  string
	ChartPath    string
}

// Driver fits the churn pipeline from a CSV and persists it with its
// metrics.
type Driver struct {
	store  *artifact.Store
	schema pipeline.Schema
	opts   Options
}

func NewDriver(store *artifact.Store, opts Options) *Driver {
	return &Driver{store: store, schema: pipeline.Churn, opts: opts.withDefaults()}
}

// ResolveCSVPath picks the dataset: explicit argument, then CHURN_CSV_PATH,
// then data/telecom_churn.csv.
func ResolveCSVPath(arg string) string {
	if arg != "" {
		return arg
	}
	if v := os.Getenv(CSVPathEnv); v != "" {
		return v
	}
	return DefaultCSVPath
}

// Run trains on csvPath. Nothing is written unless fit and evaluation
// both succeed.
func (d *Driver) Run(ctx context.Context, csvPath string) (*Report, error) {
	runID := uuid.NewString()
	log := d.opts.Logger.With("run", runID)
	started := time.Now()

	frame, err := data.LoadCSV(csvPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("csv not found: %s: place the churn CSV there or set %s / -csv: %w", csvPath, CSVPathEnv, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	log.Info("dataset loaded", "path", csvPath, "rows", frame.Len(), "columns", len(frame.Columns()))

	target := d.opts.Target
	normalizeColumns(frame, d.schema.Target)
	if missing := frame.Missing(append(d.schema.Columns(), target)); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Target: target}
	}
	targetSeries, _ := frame.Column(target)
	y, err := normalizeTarget(targetSeries)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := loader.StratifiedSplit(y, d.opts.TestSize, *d.opts.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest := model.NewRandomForest(
		model.WithNEstimators(d.opts.Trees),
		model.WithSeed(*d.opts.Seed),
		model.WithClassWeight(model.ClassWeightBalanced),
		model.WithNJobs(d.opts.NJobs),
	)
	p := pipeline.NewPipeline(d.schema, forest)
	if err := p.Fit(frame.Take(trainIdx), take(y, trainIdx)); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	log.Info("pipeline fitted", "train_rows", len(trainIdx), "trees", d.opts.Trees, "elapsed", time.Since(started))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	yTest := take(y, testIdx)
	proba, err := p.PredictProba(frame.Take(testIdx))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	report := d.evaluate(p, y, yTest, proba, csvPath)
	report.RunID = runID

	if report.PipelinePath, report.MetricsPath, err = d.store.Publish(p, report.Metrics); err != nil {
		return nil, err
	}
	// the chart is a convenience; a plotting failure does not fail the run
	if report.ChartPath, err = d.saveChart(report); err != nil {
		log.Warn("roc chart skipped", "error", err)
	}

	log.Info("training done",
		"accuracy", report.Accuracy, "f1", report.F1, "roc_auc", report.ROCAUC,
		"pipeline", report.PipelinePath, "metrics", report.MetricsPath)
	return report, nil
}

func (d *Driver) saveChart(r *Report) (string, error) {
	chart, err := rocChart(r.Metrics.ROCCurve, r.ROCAUC)
	if err != nil {
		return "", err
	}
	return d.store.WriteFile(artifact.ROCChartFile, func(w io.Writer) error {
		_, err := chart.WriteTo(w)
		return err
	})
}

func (d *Driver) evaluate(p *pipeline.Pipeline, y, yTest []int, proba []float64, csvPath string) *Report {
	pred := model.BinaryPredFromProba(proba, 0.5)
	acc := model.AccuracyInt(yTest, pred)
	prec, rec, f1 := model.PrecisionRecallF1(yTest, pred)
	auc := model.ROCAUC(yTest, proba)

	curve := model.ROCCurve(yTest, proba)
	roc := make([]artifact.ROCPoint, len(curve))
	for i, pt := range curve {
		roc[i] = artifact.ROCPoint{FPR: pt.FPR, TPR: pt.TPR}
	}

	churned := 0
	for _, v := range y {
		churned += v
	}
	version := d.opts.Now().UTC().Format(versionLayout)

	m := &artifact.Metrics{
		Model: artifact.ModelInfo{
			Name:            ModelName,
			Version:         version,
			LastTrainedAt:   version,
			LastEvaluatedAt: version,
			Dataset:         filepath.Base(csvPath),
			Notes:           "Trained with churn-train; KPIs measured on the stratified holdout set.",
		},
		ModelVersion: version,
		KPIs: artifact.KPIs{
			Accuracy:  round4(acc),
			F1:        round4(f1),
			ROCAUC:    round4(auc),
			ChurnRate: round4(float64(churned) / float64(len(y))),
			Samples:   len(yTest),
		},
		ConfusionMatrix: artifact.ConfusionMatrix{
			Labels: []string{"NO_CHURN", "CHURN"},
			Matrix: model.ConfusionMatrix(yTest, pred),
		},
		ROCCurve:          roc,
		FeatureImportance: topImportances(p.FeatureNames(), p.FeatureImportances(), topFeatures),
	}
	return &Report{
		CSVPath:   csvPath,
		Metrics:   m,
		Accuracy:  acc,
		Precision: prec,
		Recall:    rec,
		F1:        f1,
		ROCAUC:    auc,
	}
}

// topImportances ranks features by importance, descending; equal values
// keep their feature order.
func topImportances(names []string, imp []float64, k int) []artifact.FeatureImportance {
	out := make([]artifact.FeatureImportance, len(names))
	for i, n := range names {
		out[i] = artifact.FeatureImportance{Feature: n, Importance: imp[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func take(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
