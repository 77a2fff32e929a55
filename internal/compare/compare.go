// Package compare derives the signed difference between two cost columns of
// an accessibility table: two travel modes at one metric, or two metrics at
// one mode.
package compare

import (
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/travel"
)

// DefaultColumn names the difference column when the caller gives none.
const DefaultColumn = "diff"

// Summary describes a difference column.
type Summary struct {
	FieldA   string  `json:"field_a" yaml:"field_a"`
	FieldB   string  `json:"field_b" yaml:"field_b"`
	Column   string  `json:"column" yaml:"column"`
	Compared int     `json:"compared" yaml:"compared"`
	Missing  int     `json:"missing" yaml:"missing"`
	ALower   int     `json:"a_lower" yaml:"a_lower"` // rows where A costs less than B
	BLower   int     `json:"b_lower" yaml:"b_lower"`
	Equal    int     `json:"equal" yaml:"equal"`
	Mean     float64 `json:"mean" yaml:"mean"`
}

// Difference returns a - b row-wise. A missing operand gives a missing
// result; nothing is clamped.
func Difference(a, b []matrix.Cost) []matrix.Cost {
	out := make([]matrix.Cost, len(a))
	for i := range a {
		if !a[i].Valid || !b[i].Valid {
			out[i] = matrix.Missing()
			continue
		}
		out[i] = matrix.Some(a[i].Value - b[i].Value)
	}
	return out
}

// Compare adds column name = fieldA - fieldB to t and returns the new table.
// Unknown fields are ConfigurationErrors.
func Compare(t *access.Table, fieldA, fieldB, name string) (*access.Table, Summary, error) {
	if name == "" {
		name = DefaultColumn
	}
	a, ok := t.Column(fieldA)
	if !ok {
		return nil, Summary{}, fault.Configurationf("compare: table has no column %s", fieldA)
	}
	b, ok := t.Column(fieldB)
	if !ok {
		return nil, Summary{}, fault.Configurationf("compare: table has no column %s", fieldB)
	}

	diff := Difference(a, b)
	out, err := t.WithColumn(name, diff)
	if err != nil {
		return nil, Summary{}, err
	}

	s := Summary{FieldA: fieldA, FieldB: fieldB, Column: name}
	valid := make([]float64, 0, len(diff))
	for _, d := range diff {
		switch {
		case !d.Valid:
			s.Missing++
			continue
		case d.Value < 0:
			s.ALower++
		case d.Value > 0:
			s.BLower++
		default:
			s.Equal++
		}
		valid = append(valid, d.Value)
	}
	s.Compared = len(valid)
	if len(valid) > 0 {
		s.Mean = stat.Mean(valid, nil)
	}
	return out, s, nil
}

// Selection picks the two columns to compare.
type Selection struct {
	ModeA, ModeB     travel.Mode
	MetricA, MetricB travel.Metric
}

// ParseSelection accepts either one metric and two modes, or two metrics and
// one mode. Anything else, or an unknown name, is a ConfigurationError.
func ParseSelection(metrics, modes []string) (Selection, error) {
	switch {
	case len(metrics) == 1 && len(modes) == 2:
		m, err := travel.ParseMetric(metrics[0])
		if err != nil {
			return Selection{}, err
		}
		a, err := travel.ParseMode(modes[0])
		if err != nil {
			return Selection{}, err
		}
		b, err := travel.ParseMode(modes[1])
		if err != nil {
			return Selection{}, err
		}
		return Selection{ModeA: a, ModeB: b, MetricA: m, MetricB: m}, nil

	case len(metrics) == 2 && len(modes) == 1:
		mode, err := travel.ParseMode(modes[0])
		if err != nil {
			return Selection{}, err
		}
		a, err := travel.ParseMetric(metrics[0])
		if err != nil {
			return Selection{}, err
		}
		b, err := travel.ParseMetric(metrics[1])
		if err != nil {
			return Selection{}, err
		}
		return Selection{ModeA: mode, ModeB: mode, MetricA: a, MetricB: b}, nil

	default:
		return Selection{}, fault.Configurationf(
			"compare: need one metric and two modes or two metrics and one mode, got %d metric(s) and %d mode(s)",
			len(metrics), len(modes))
	}
}

// Fields resolves the selection to matrix columns.
func (s Selection) Fields() (string, string, error) {
	a, err := travel.Field(s.ModeA, s.MetricA)
	if err != nil {
		return "", "", err
	}
	b, err := travel.Field(s.ModeB, s.MetricB)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// Name describes the comparison for output file names, e.g.
// "car_compared_to_public" or "walk_time_compared_to_distance".
func (s Selection) Name() string {
	if s.ModeA == s.ModeB {
		return string(s.ModeA) + "_" + string(s.MetricA) + "_compared_to_" + string(s.MetricB)
	}
	return string(s.ModeA) + "_compared_to_" + string(s.ModeB)
}

// Apply resolves the selection and compares on t.
func (s Selection) Apply(t *access.Table) (*access.Table, Summary, error) {
	a, b, err := s.Fields()
	if err != nil {
		return nil, Summary{}, err
	}
	return Compare(t, a, b, DefaultColumn)
}
