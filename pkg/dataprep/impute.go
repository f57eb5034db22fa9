package dataprep

import (
	"errors"
	"math"

	"churnml/pkg/data"
	"churnml/pkg/stats"
)

// ---------- Numeric imputation ----------

// SimpleImputer replaces NaN cells with the per-column median learned at fit
// time. A column with no observed values is filled with 0.
type SimpleImputer struct {
	Statistics []float64
}

func NewMedianImputer() *SimpleImputer { return &SimpleImputer{} }

func (im *SimpleImputer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("imputer: empty X")
	}
	c := len(X[0])
	im.Statistics = make([]float64, c)
	col := make([]float64, len(X))
	for j := 0; j < c; j++ {
		for i := range X {
			if len(X[i]) != c {
				return errors.New("imputer: inconsistent number of columns")
			}
			col[i] = X[i][j]
		}
		observed := stats.DropNaN(col)
		if len(observed) > 0 {
			im.Statistics[j] = stats.Median(observed)
		}
	}
	return nil
}

// Transform returns a copy of X with NaN cells filled.
func (im *SimpleImputer) Transform(X [][]float64) ([][]float64, error) {
	if im.Statistics == nil {
		return nil, errors.New("imputer: not fitted")
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(im.Statistics) {
			return nil, errors.New("imputer: column count differs from fit")
		}
		filled := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				v = im.Statistics[j]
			}
			filled[j] = v
		}
		out[i] = filled
	}
	return out, nil
}

// ---------- Categorical imputation ----------

// CategoryImputer replaces missing text cells with the most frequent value
// of their column. Ties go to the lexicographically smallest category.
//
// Fit and Transform take a null mask aligned with rows. A nil mask treats
// the CSV missing tokens (data.IsMissing) as null.
type CategoryImputer struct {
	Fill []string
}

func NewMostFrequentImputer() *CategoryImputer { return &CategoryImputer{} }

func (im *CategoryImputer) Fit(rows [][]string, nulls [][]bool) error {
	if len(rows) == 0 {
		return errors.New("imputer: empty rows")
	}
	if nulls != nil && len(nulls) != len(rows) {
		return errors.New("imputer: mask rows differ from data rows")
	}
	c := len(rows[0])
	im.Fill = make([]string, c)
	for j := 0; j < c; j++ {
		col := make([]string, 0, len(rows))
		for i := range rows {
			if len(rows[i]) != c {
				return errors.New("imputer: inconsistent number of columns")
			}
			if !isNull(rows, nulls, i, j) {
				col = append(col, rows[i][j])
			}
		}
		if mode, ok := stats.MostFrequent(col, nil); ok {
			im.Fill[j] = mode
		}
	}
	return nil
}

func (im *CategoryImputer) Transform(rows [][]string, nulls [][]bool) ([][]string, error) {
	if im.Fill == nil {
		return nil, errors.New("imputer: not fitted")
	}
	if nulls != nil && len(nulls) != len(rows) {
		return nil, errors.New("imputer: mask rows differ from data rows")
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) != len(im.Fill) {
			return nil, errors.New("imputer: column count differs from fit")
		}
		filled := make([]string, len(row))
		for j, v := range row {
			if isNull(rows, nulls, i, j) {
				v = im.Fill[j]
			}
			filled[j] = v
		}
		out[i] = filled
	}
	return out, nil
}

func isNull(rows [][]string, nulls [][]bool, i, j int) bool {
	if nulls == nil {
		return data.IsMissing(rows[i][j])
	}
	return j < len(nulls[i]) && nulls[i][j]
}
