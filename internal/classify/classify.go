package classify

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/matrix"
)

// Result describes a fitted classification.
type Result struct {
	Scheme  string    `json:"scheme" yaml:"scheme"`
	Column  string    `json:"column" yaml:"column"`
	Label   string    `json:"label_column" yaml:"label_column"`
	Bounds  []float64 `json:"bounds" yaml:"bounds"`
	Labels  []string  `json:"labels" yaml:"labels"`
	Counts  []int     `json:"counts" yaml:"counts"`
	Missing int       `json:"missing" yaml:"missing"`
	Min     float64   `json:"min" yaml:"min"`
	Max     float64   `json:"max" yaml:"max"`
	GVF     float64   `json:"gvf" yaml:"gvf"` // goodness of variance fit, 1 is perfect
}

// Column labels one cost column. Missing costs get Missing.
func Column(costs []matrix.Cost, s Scheme) ([]int, Result, error) {
	if err := s.Validate(); err != nil {
		return nil, Result{}, err
	}

	values := make([]float64, 0, len(costs))
	for _, c := range costs {
		if c.Valid {
			values = append(values, c.Value)
		}
	}
	bounds, err := s.Fit(values)
	if err != nil {
		return nil, Result{}, err
	}

	res := Result{
		Scheme: s.Name(),
		Bounds: bounds,
		Labels: Labels(s, bounds),
		Counts: make([]int, s.Classes(bounds)),
	}
	labels := make([]int, len(costs))
	groups := make([][]float64, len(res.Counts))
	for i, c := range costs {
		if !c.Valid {
			labels[i] = Missing
			res.Missing++
			continue
		}
		l := s.Label(bounds, c.Value)
		labels[i] = l
		res.Counts[l]++
		groups[l] = append(groups[l], c.Value)
	}

	if len(values) > 0 {
		res.Min, res.Max = floats.Min(values), floats.Max(values)
		res.GVF = gvf(values, groups)
	}
	return labels, res, nil
}

// Classify adds the label column "<column>_<suffix>" to t and returns the
// new table. t is not modified.
func Classify(t *access.Table, column string, s Scheme) (*access.Table, Result, error) {
	costs, ok := t.Column(column)
	if !ok {
		return nil, Result{}, fault.Configurationf("classify: table has no column %s", column)
	}

	labels, res, err := Column(costs, s)
	if err != nil {
		return nil, Result{}, err
	}
	res.Column = column
	res.Label = column + "_" + s.Suffix()

	out, err := t.WithClasses(res.Label, labels)
	if err != nil {
		return nil, Result{}, err
	}

	zap.L().Debug("classify: labeled column",
		zap.String("component", "classify"),
		zap.String("column", column),
		zap.String("scheme", res.Scheme),
		zap.Float64s("bounds", res.Bounds),
		zap.Ints("counts", res.Counts),
		zap.Float64("gvf", res.GVF),
	)
	return out, res, nil
}

// gvf is 1 - SDCM/SDAM: the share of total squared deviation explained by
// the classes.
func gvf(values []float64, groups [][]float64) float64 {
	sdam := sumSquares(values)
	if sdam == 0 {
		return 1
	}
	var sdcm float64
	for _, g := range groups {
		sdcm += sumSquares(g)
	}
	return 1 - sdcm/sdam
}

func sumSquares(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, variance := stat.MeanVariance(x, nil)
	return variance * float64(len(x)-1)
}
