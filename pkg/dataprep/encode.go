package dataprep

import (
	"errors"
	"sort"
)

// OneHotEncoder expands categorical columns into 0/1 indicator columns.
// Categories are learned per column and kept sorted. A category never seen
// during Fit encodes as all zeros for its column instead of failing.
type OneHotEncoder struct {
	Categories [][]string
}

func NewOneHotEncoder() *OneHotEncoder { return &OneHotEncoder{} }

func (e *OneHotEncoder) Fit(rows [][]string) error {
	if len(rows) == 0 {
		return errors.New("onehot: empty rows")
	}
	c := len(rows[0])
	e.Categories = make([][]string, c)
	for j := 0; j < c; j++ {
		seen := map[string]struct{}{}
		for i := range rows {
			if len(rows[i]) != c {
				return errors.New("onehot: inconsistent number of columns")
			}
			seen[rows[i][j]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	return nil
}

// Width is the number of indicator columns Transform produces.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	return w
}

func (e *OneHotEncoder) Transform(rows [][]string) ([][]float64, error) {
	if e.Categories == nil {
		return nil, errors.New("onehot: not fitted")
	}
	width := e.Width()
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(e.Categories) {
			return nil, errors.New("onehot: column count differs from fit")
		}
		vec := make([]float64, width)
		offset := 0
		for j, v := range row {
			cats := e.Categories[j]
			if k := sort.SearchStrings(cats, v); k < len(cats) && cats[k] == v {
				vec[offset+k] = 1
			}
			offset += len(cats)
		}
		out[i] = vec
	}
	return out, nil
}

// FeatureNames returns "<input>_<category>" for every indicator column.
func (e *OneHotEncoder) FeatureNames(inputs []string) []string {
	names := make([]string, 0, e.Width())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, inputs[j]+"_"+c)
		}
	}
	return names
}
