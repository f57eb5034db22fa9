package predict

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"churnml/internal/artifact"
	"churnml/internal/logging"
	"churnml/pkg/data"
	"churnml/pkg/pipeline"
)

const (
	LabelChurn   = "CHURN"
	LabelNoChurn = "NO_CHURN"

	// Threshold is inclusive: p(churn) >= Threshold labels CHURN.
	Threshold = 0.5
)

// FeatureRecord is one customer as submitted for scoring. Pointer fields
// tell an absent or null value apart from a zero.
type FeatureRecord struct {
	Age             *int     `json:"age"`
	Tenure          *int     `json:"tenure"`
	MonthlyCharges  *float64 `json:"monthlyCharges"`
	Contract        *string  `json:"contract"`
	InternetService *string  `json:"internetService"`
	PaymentDelay    *int     `json:"paymentDelay"`
}

// values keys the record by canonical field name. Absent fields have no key.
func (r FeatureRecord) values() map[string]any {
	out := map[string]any{}
	if r.Age != nil {
		out["age"] = *r.Age
	}
	if r.Tenure != nil {
		out["tenure"] = *r.Tenure
	}
	if r.MonthlyCharges != nil {
		out["monthlyCharges"] = *r.MonthlyCharges
	}
	if r.Contract != nil {
		out["contract"] = *r.Contract
	}
	if r.InternetService != nil {
		out["internetService"] = *r.InternetService
	}
	if r.PaymentDelay != nil {
		out["paymentDelay"] = *r.PaymentDelay
	}
	return out
}

// Result is the scored record. Score and Proba always carry the same value.
type Result struct {
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	Proba        float64 `json:"proba"`
	ModelVersion string  `json:"model_version"`
}

// ValidationError lists every required field that was absent or null.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Model scores a frame whose columns follow Columns().
type Model interface {
	Columns() []string
	PredictProba(f *data.Frame) ([]float64, error)
}

// Artifacts supplies the fitted model and its metrics document.
type Artifacts interface {
	LoadModel() (Model, error)
	LoadMetrics() (*artifact.Metrics, error)
}

type storeArtifacts struct{ s *artifact.Store }

// FromStore adapts an artifact store to Artifacts.
func FromStore(s *artifact.Store) Artifacts { return storeArtifacts{s: s} }

func (a storeArtifacts) LoadModel() (Model, error) {
	p, err := a.s.LoadPipeline()
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a storeArtifacts) LoadMetrics() (*artifact.Metrics, error) { return a.s.LoadMetrics() }

// Service scores single records against the fitted churn model.
type Service struct {
	artifacts Artifacts
	schema    pipeline.Schema
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithSchema overrides the field registry, mainly for tests.
func WithSchema(schema pipeline.Schema) Option { return func(s *Service) { s.schema = schema } }

func NewService(a Artifacts, opts ...Option) *Service {
	s := &Service{artifacts: a, schema: pipeline.Churn, logger: logging.Discard()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate returns a *ValidationError naming every required field missing
// from rec, in registry order.
func (s *Service) Validate(rec FeatureRecord) error {
	vals := rec.values()
	var missing []string
	for _, name := range s.schema.Required() {
		if _, ok := vals[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// PredictOne validates rec, scores it and stamps the model version. A
// missing pipeline fails the call; missing metrics only blank the version.
func (s *Service) PredictOne(ctx context.Context, rec FeatureRecord) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := s.Validate(rec); err != nil {
		return Result{}, err
	}
	m, err := s.artifacts.LoadModel()
	if err != nil {
		return Result{}, err
	}
	frame, err := s.frame(rec, m.Columns())
	if err != nil {
		return Result{}, err
	}
	proba, err := m.PredictProba(frame)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if len(proba) != 1 {
		return Result{}, fmt.Errorf("predict: model returned %d scores for one row", len(proba))
	}
	p := proba[0]

	label := LabelNoChurn
	if p >= Threshold {
		label = LabelChurn
	}
	return Result{Label: label, Score: p, Proba: p, ModelVersion: s.version()}, nil
}

// frame lays rec out as a single-row frame in the model's column order.
func (s *Service) frame(rec FeatureRecord, columns []string) (*data.Frame, error) {
	vals := rec.values()
	f := data.NewFrame()
	for _, col := range columns {
		field, ok := s.schema.FieldForColumn(col)
		if !ok {
			return nil, fmt.Errorf("predict: model column %q has no schema field", col)
		}
		var series *data.Series
		switch v := vals[field.Name].(type) {
		case int:
			series = data.NewIntSeries(col, []int{v})
		case float64:
			series = data.NewFloatSeries(col, []float64{v})
		case string:
			series = data.NewLiteralSeries(col, []string{strings.TrimSpace(v)})
		default:
			return nil, fmt.Errorf("predict: field %q has unsupported type %T", field.Name, v)
		}
		if err := f.Add(series); err != nil {
			return nil, fmt.Errorf("predict: %w", err)
		}
	}
	return f, nil
}

func (s *Service) version() string {
	m, err := s.artifacts.LoadMetrics()
	if err != nil {
		s.logger.Warn("model version unavailable", "error", err)
		return ""
	}
	return m.Version()
}
