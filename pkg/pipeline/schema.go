package pipeline

import "churnml/pkg/data"

// FieldKind tells the prediction path how to materialize a canonical field.
type FieldKind int

const (
	IntegerField FieldKind = iota
	FloatField
	CategoricalField
)

// Field is one canonical input of the churn model.
type Field struct {
	Name   string    // canonical request key
	Column string    // column name the fitted pipeline expects
	Kind   FieldKind // storage kind of the column
}

// Schema describes the structure of the churn dataset: the canonical input
// fields in order, how they map onto pipeline columns, and the target column.
type Schema struct {
	Fields []Field
	Target string
}

// Churn is the schema the churn model is trained and served with.
var Churn = Schema{
	Fields: []Field{
		{Name: "age", Column: "age", Kind: IntegerField},
		{Name: "tenure", Column: "tenure", Kind: IntegerField},
		{Name: "monthlyCharges", Column: "monthlyCharges", Kind: FloatField},
		{Name: "contract", Column: "contract", Kind: CategoricalField},
		{Name: "internetService", Column: "internetService", Kind: CategoricalField},
		{Name: "paymentDelay", Column: "paymentDelay", Kind: IntegerField},
	},
	Target: "Churn",
}

// Known category options, as offered to form clients.
var (
	ContractOptions        = []string{"Month-to-month", "One year", "Two year"}
	InternetServiceOptions = []string{"DSL", "Fiber optic", "None"}
)

// Required returns the canonical field names in order.
func (s Schema) Required() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Column maps a canonical field name to its pipeline column.
func (s Schema) Column(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Column, true
		}
	}
	return "", false
}

// FieldForColumn looks up the entry whose pipeline column is col.
func (s Schema) FieldForColumn(col string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Column == col {
			return f, true
		}
	}
	return Field{}, false
}

// NumericColumns returns the pipeline columns that are scaled as numbers.
func (s Schema) NumericColumns() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Kind != CategoricalField {
			out = append(out, f.Column)
		}
	}
	return out
}

// CategoricalColumns returns the pipeline columns that are one-hot encoded.
func (s Schema) CategoricalColumns() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Kind == CategoricalField {
			out = append(out, f.Column)
		}
	}
	return out
}

// Columns returns every feature column, numeric first, then categorical.
func (s Schema) Columns() []string {
	return append(s.NumericColumns(), s.CategoricalColumns()...)
}

// DataKind is the frame kind a field is stored as.
func (k FieldKind) DataKind() data.Kind {
	switch k {
	case IntegerField:
		return data.Integer
	case FloatField:
		return data.Float
	default:
		return data.Text
	}
}
