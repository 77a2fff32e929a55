// Package classify maps a continuous cost column to ordinal class labels.
//
// Two schemes are supported: natural breaks, an exact one-dimensional
// variance-minimizing partition into k classes, and user-defined breaks, a
// fixed ascending list of thresholds. Missing values never take part in
// fitting and are labeled Missing.
package classify

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/accessviz/internal/fault"
)

// Missing is the class label of rows without a value.
const Missing = -1

// DefaultClasses is the natural breaks class count used when none is given.
const DefaultClasses = 6

// Scheme is a binning policy.
type Scheme interface {
	// Name identifies the scheme in legends and logs.
	Name() string
	// Suffix is appended to the source column name to name the label column.
	Suffix() string
	// Validate rejects unusable parameters with a ConfigurationError.
	Validate() error
	// Fit returns the class upper bounds for the given non-missing values.
	Fit(values []float64) ([]float64, error)
	// Label assigns v to a class given the fitted bounds.
	Label(bounds []float64, v float64) int
	// Classes returns the number of classes the fitted bounds describe.
	Classes(bounds []float64) int
}

// NaturalBreaks partitions values into K classes minimizing the summed
// within-class squared deviation. Each bound is the largest value of its
// class, so a value equal to a bound belongs to the lower class.
type NaturalBreaks struct {
	K int
}

func (NaturalBreaks) Name() string   { return "natural_breaks" }
func (NaturalBreaks) Suffix() string { return "nb" }

func (n NaturalBreaks) Validate() error {
	if n.K < 1 {
		return fault.Configurationf("classify: natural breaks needs at least one class, got %d", n.K)
	}
	return nil
}

func (n NaturalBreaks) Fit(values []float64) ([]float64, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return naturalBreaks(values, n.K), nil
}

func (NaturalBreaks) Label(bounds []float64, v float64) int {
	if len(bounds) == 0 {
		return Missing
	}
	i := sort.SearchFloat64s(bounds, v)
	if i >= len(bounds) {
		i = len(bounds) - 1
	}
	return i
}

func (NaturalBreaks) Classes(bounds []float64) int { return len(bounds) }

// UserDefined assigns v to the smallest class i with Bins[i] > v. Values at
// or above the last bin get the final class len(Bins). A value equal to a
// bin therefore lands in the class above it.
type UserDefined struct {
	Bins []float64
}

func (UserDefined) Name() string   { return "user_defined" }
func (UserDefined) Suffix() string { return "ud" }

func (u UserDefined) Validate() error {
	if len(u.Bins) == 0 {
		return fault.Configurationf("classify: user-defined breaks need at least one bin")
	}
	for i, b := range u.Bins {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fault.Configurationf("classify: bin %d is not finite", i)
		}
		if i > 0 && b <= u.Bins[i-1] {
			return fault.Configurationf("classify: bins must be strictly ascending, %v follows %v", b, u.Bins[i-1])
		}
	}
	return nil
}

func (u UserDefined) Fit([]float64) ([]float64, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return append([]float64(nil), u.Bins...), nil
}

func (UserDefined) Label(bounds []float64, v float64) int {
	return sort.Search(len(bounds), func(i int) bool { return bounds[i] > v })
}

func (UserDefined) Classes(bounds []float64) int { return len(bounds) + 1 }

// RangeBins returns start, start+step, ... up to but excluding stop.
// RangeBins(5, 200, 5) yields the 5..195 minute thresholds.
func RangeBins(start, stop, step float64) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fault.Configurationf("classify: bin step must be positive, got %v", step)
	}
	if stop <= start {
		return nil, fault.Configurationf("classify: bin range %v..%v is empty", start, stop)
	}
	n := int(math.Ceil((stop - start) / step))
	bins := make([]float64, n)
	for i := range bins {
		bins[i] = start + float64(i)*step
	}
	return bins, nil
}

// ParseScheme resolves a scheme name. k applies to natural breaks (0 means
// DefaultClasses), bins to user-defined breaks.
func ParseScheme(name string, k int, bins []float64) (Scheme, error) {
	var s Scheme
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "natural", "natural_breaks", "nb", "":
		if k == 0 {
			k = DefaultClasses
		}
		s = NaturalBreaks{K: k}
	case "user", "user_defined", "ud":
		s = UserDefined{Bins: bins}
	default:
		return nil, fault.Configurationf("classify: unknown scheme %q (want natural or user)", name)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Labels renders human-readable class ranges for a legend.
func Labels(s Scheme, bounds []float64) []string {
	out := make([]string, s.Classes(bounds))
	switch s.(type) {
	case UserDefined, *UserDefined:
		for i := range out {
			switch {
			case i == 0:
				out[i] = "< " + num(bounds[0])
			case i == len(bounds):
				out[i] = ">= " + num(bounds[i-1])
			default:
				out[i] = fmt.Sprintf("%s - %s", num(bounds[i-1]), num(bounds[i]))
			}
		}
	default:
		for i := range out {
			if i == 0 {
				out[i] = "<= " + num(bounds[0])
				continue
			}
			out[i] = fmt.Sprintf("%s - %s", num(bounds[i-1]), num(bounds[i]))
		}
	}
	return out
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
