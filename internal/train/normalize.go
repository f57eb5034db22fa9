package train

import (
	"fmt"
	"strconv"
	"strings"

	"churnml/pkg/data"
)

// headerRenames maps flattened lowercase headers to canonical column names.
var headerRenames = map[string]string{
	"monthlycharges":  "monthlyCharges",
	"paymentdelay":    "paymentDelay",
	"internetservice": "internetService",
}

// truthy are the case-insensitive target tokens that mean churn.
var truthy = map[string]bool{"yes": true, "1": true, "true": true, "churn": true}

// normalizeColumns applies the fixed renames to a frame whose headers were
// already trimmed and stripped of spaces. A lowercase churn column becomes
// the schema's canonical target, whatever target the run asks for. A rename
// never overwrites an existing canonical column.
func normalizeColumns(f *data.Frame, canonicalTarget string) {
	for from, to := range headerRenames {
		if f.Has(from) && !f.Has(to) {
			f.Rename(from, to)
		}
	}
	if !f.Has(canonicalTarget) && f.Has("churn") {
		f.Rename("churn", canonicalTarget)
	}
}

// normalizeTarget turns the target column into 0/1 labels. Bool columns map
// true to 1; integer columns map any nonzero value to 1; everything else is
// matched against the truthy tokens.
func normalizeTarget(s *data.Series) ([]int, error) {
	y := make([]int, s.Len())
	switch s.Kind {
	case data.Bool:
		for i, v := range s.Values {
			if strings.EqualFold(v, "true") {
				y[i] = 1
			}
		}
	case data.Integer:
		for i, v := range s.Values {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("target %q row %d: %w", s.Name, i, err)
			}
			if n != 0 {
				y[i] = 1
			}
		}
	default:
		for i, v := range s.Values {
			if truthy[strings.ToLower(strings.TrimSpace(v))] {
				y[i] = 1
			}
		}
	}
	return y, nil
}
