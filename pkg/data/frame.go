package data

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred storage type of a column.
type Kind int

const (
	Text Kind = iota
	Integer
	Float
	Bool
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "text"
	}
}

// Series is a named column. Values always hold the raw text. In a series
// read from a file the missing tokens (see IsMissing) mark null cells; a
// Literal series holds caller-supplied values and has no null cells.
type Series struct {
	Name    string
	Kind    Kind
	Values  []string
	Literal bool
}

func NewTextSeries(name string, values []string) *Series {
	return &Series{Name: name, Kind: Text, Values: values}
}

// NewLiteralSeries is a text column taken verbatim, such as a field of an
// API request. None of its cells is null.
func NewLiteralSeries(name string, values []string) *Series {
	return &Series{Name: name, Kind: Text, Values: values, Literal: true}
}

func NewFloatSeries(name string, values []float64) *Series {
	raw := make([]string, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			raw[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return &Series{Name: name, Kind: Float, Values: raw}
}

func NewIntSeries(name string, values []int) *Series {
	raw := make([]string, len(values))
	for i, v := range values {
		raw[i] = strconv.Itoa(v)
	}
	return &Series{Name: name, Kind: Integer, Values: raw}
}

func (s *Series) Len() int { return len(s.Values) }

// Null reports whether row i is a missing cell.
func (s *Series) Null(i int) bool {
	return !s.Literal && IsMissing(s.Values[i])
}

// Floats parses the column as numbers. Missing cells become NaN; any other
// unparseable cell is an error.
func (s *Series) Floats() ([]float64, error) {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		if s.Null(i) {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %q is not numeric", s.Name, i, v)
		}
		out[i] = f
	}
	return out, nil
}

// InferKind picks the narrowest kind that fits every non-missing value.
// A column with missing cells never infers as Integer, matching how a
// dataframe library widens such columns to float.
func InferKind(values []string) Kind {
	hasMissing := false
	allBool, allInt, allFloat := true, true, true
	seen := 0
	for _, v := range values {
		if IsMissing(v) {
			hasMissing = true
			continue
		}
		seen++
		switch strings.ToLower(v) {
		case "true", "false":
		default:
			allBool = false
		}
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
	}
	switch {
	case seen == 0:
		return Float
	case allBool:
		return Bool
	case allInt && !hasMissing:
		return Integer
	case allFloat:
		return Float
	default:
		return Text
	}
}

// IsMissing reports whether a raw cell is one of the null tokens a CSV
// export uses: empty, NA, NaN or nan.
func IsMissing(v string) bool {
	return v == "" || v == "NA" || v == "NaN" || v == "nan"
}

// Frame is a column-oriented table with unique column names.
type Frame struct {
	series []*Series
	index  map[string]int
	rows   int
}

func NewFrame() *Frame {
	return &Frame{index: map[string]int{}}
}

// Add appends a column. All columns must have the same length.
func (f *Frame) Add(s *Series) error {
	if _, dup := f.index[s.Name]; dup {
		return fmt.Errorf("duplicate column %q", s.Name)
	}
	if len(f.series) > 0 && s.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", s.Name, s.Len(), f.rows)
	}
	f.rows = s.Len()
	f.index[s.Name] = len(f.series)
	f.series = append(f.series, s)
	return nil
}

func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.series))
	for i, s := range f.series {
		names[i] = s.Name
	}
	return names
}

func (f *Frame) Column(name string) (*Series, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.series[i], true
}

func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Rename changes a column name in place. It is a no-op returning false when
// from is absent or to already exists.
func (f *Frame) Rename(from, to string) bool {
	i, ok := f.index[from]
	if !ok || f.Has(to) {
		return false
	}
	delete(f.index, from)
	f.series[i].Name = to
	f.index[to] = i
	return true
}

// Missing returns the names from want that the frame does not have, in
// the order given.
func (f *Frame) Missing(want []string) []string {
	var out []string
	for _, name := range want {
		if !f.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame()
	for _, s := range f.series {
		vals := make([]string, len(rows))
		for i, r := range rows {
			vals[i] = s.Values[r]
		}
		// names are unique and lengths equal, Add cannot fail here
		_ = out.Add(&Series{Name: s.Name, Kind: s.Kind, Values: vals, Literal: s.Literal})
	}
	return out
}

// Floats returns the named columns as a row-major numeric matrix.
func (f *Frame) Floats(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		s, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		v, err := s.Floats()
		if err != nil {
			return nil, err
		}
		cols[j] = v
	}
	out := make([][]float64, f.rows)
	for i := range out {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// Strings returns the named columns as a row-major text matrix.
func (f *Frame) Strings(names []string) ([][]string, error) {
	cols := make([][]string, len(names))
	for j, name := range names {
		s, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[j] = s.Values
	}
	out := make([][]string, f.rows)
	for i := range out {
		row := make([]string, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// Nulls returns the null mask of the named columns, row-major like Strings.
func (f *Frame) Nulls(names []string) ([][]bool, error) {
	cols := make([]*Series, len(names))
	for j, name := range names {
		s, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[j] = s
	}
	out := make([][]bool, f.rows)
	for i := range out {
		row := make([]bool, len(names))
		for j, s := range cols {
			row[j] = s.Null(i)
		}
		out[i] = row
	}
	return out, nil
}
