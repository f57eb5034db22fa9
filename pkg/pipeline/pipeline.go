package pipeline

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"churnml/pkg/data"
	"churnml/pkg/dataprep"
	"churnml/pkg/model"
	"churnml/pkg/stats"
)

// Transformer interface for fit/transform pattern.
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
}

// Pipeline is the fitted preprocessing and classifier bundle persisted as one
// artifact. Numeric columns go through median imputation then standard
// scaling; categorical columns through most-frequent imputation then one-hot
// encoding. The encoded blocks are concatenated numeric first and fed to the
// forest. Exported fields are the gob wire form.
type Pipeline struct {
	Numeric     []string
	Categorical []string

	NumImputer *dataprep.SimpleImputer
	Scaler     *stats.StandardScaler
	CatImputer *dataprep.CategoryImputer
	Encoder    *dataprep.OneHotEncoder
	Forest     *model.RandomForest
}

// NewPipeline builds an unfitted pipeline for the schema's feature columns.
func NewPipeline(s Schema, forest *model.RandomForest) *Pipeline {
	return &Pipeline{
		Numeric:     s.NumericColumns(),
		Categorical: s.CategoricalColumns(),
		NumImputer:  dataprep.NewMedianImputer(),
		Scaler:      stats.NewStandardScaler(),
		CatImputer:  dataprep.NewMostFrequentImputer(),
		Encoder:     dataprep.NewOneHotEncoder(),
		Forest:      forest,
	}
}

func (p *Pipeline) numericSteps() []Transformer {
	return []Transformer{p.NumImputer, p.Scaler}
}

// Fit learns every preprocessing step on f and trains the forest on the
// encoded matrix.
func (p *Pipeline) Fit(f *data.Frame, y []int) error {
	if p.Forest == nil {
		return errors.New("pipeline: no classifier")
	}
	if f.Len() != len(y) {
		return fmt.Errorf("pipeline: %d rows but %d labels", f.Len(), len(y))
	}
	num, err := f.Floats(p.Numeric)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	for _, step := range p.numericSteps() {
		if err := step.Fit(num); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if num, err = step.Transform(num); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
	}

	cat, nulls, err := p.categorical(f)
	if err != nil {
		return err
	}
	if err := p.CatImputer.Fit(cat, nulls); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if cat, err = p.CatImputer.Transform(cat, nulls); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := p.Encoder.Fit(cat); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	oh, err := p.Encoder.Transform(cat)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	return p.Forest.Fit(hstack(num, oh), y)
}

// Transform encodes f with the fitted steps.
func (p *Pipeline) Transform(f *data.Frame) ([][]float64, error) {
	num, err := f.Floats(p.Numeric)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	for _, step := range p.numericSteps() {
		if num, err = step.Transform(num); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	cat, nulls, err := p.categorical(f)
	if err != nil {
		return nil, err
	}
	if cat, err = p.CatImputer.Transform(cat, nulls); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	oh, err := p.Encoder.Transform(cat)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return hstack(num, oh), nil
}

// categorical returns the categorical block and its null mask. Only null
// cells are imputed; any other value, known or not, reaches the encoder.
func (p *Pipeline) categorical(f *data.Frame) ([][]string, [][]bool, error) {
	cat, err := f.Strings(p.Categorical)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	nulls, err := f.Nulls(p.Categorical)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	return cat, nulls, nil
}

// PredictProba returns p(churn) for every row of f.
func (p *Pipeline) PredictProba(f *data.Frame) ([]float64, error) {
	X, err := p.Transform(f)
	if err != nil {
		return nil, err
	}
	return p.Forest.PredictProba(X), nil
}

// Columns is the input column order the pipeline was built with.
func (p *Pipeline) Columns() []string {
	return append(append([]string(nil), p.Numeric...), p.Categorical...)
}

// FeatureNames names every encoded column: numeric columns as-is followed
// by "<column>_<category>" indicators.
func (p *Pipeline) FeatureNames() []string {
	return append(append([]string(nil), p.Numeric...), p.Encoder.FeatureNames(p.Categorical)...)
}

// FeatureImportances is aligned with FeatureNames.
func (p *Pipeline) FeatureImportances() []float64 {
	return p.Forest.FeatureImportances()
}

// Encode writes the fitted pipeline to w.
func (p *Pipeline) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(p)
}

// Decode reads a pipeline written by Encode.
func Decode(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("pipeline: decode: %w", err)
	}
	if p.Forest == nil || len(p.Forest.Trees) == 0 {
		return nil, errors.New("pipeline: decoded pipeline has no fitted classifier")
	}
	return &p, nil
}

func hstack(a, b [][]float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		row := make([]float64, 0, len(a[i])+len(b[i]))
		row = append(row, a[i]...)
		out[i] = append(row, b[i]...)
	}
	return out
}
