package stats

import (
	"errors"
	"math"
)

// StandardScaler standardizes columns to zero mean and unit variance.
// Fields are exported so a fitted scaler survives a gob round trip.
type StandardScaler struct {
	Mean   []float64
	Scale  []float64
	Fitted bool
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

// Fit learns per-column mean and population std. Columns with zero
// variance get a scale of 1 so Transform only centers them.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("scaler: empty X")
	}
	r, c := len(X), len(X[0])
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			if len(X[i]) != c {
				return errors.New("scaler: inconsistent number of columns")
			}
			col[i] = X[i][j]
		}
		s.Mean[j] = Mean(col)
		sd := Std(col)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		s.Scale[j] = sd
	}
	s.Fitted = true
	return nil
}

// Transform returns a standardized copy of X.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, errors.New("scaler: not fitted")
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, errors.New("scaler: column count differs from fit")
		}
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = z
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
