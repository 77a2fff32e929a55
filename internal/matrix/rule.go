package matrix

import (
	"path/filepath"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accessviz/internal/cellid"
)

// Rule recovers the cell identifier embedded in a matrix file name.
type Rule interface {
	Extract(path string) (cellid.ID, bool)
}

// OffsetRule takes Length characters of the base name starting at Offset.
// A negative Offset counts from the end of the name, so the default
// {-11, 7} reads "5989964" out of "travel_times_to_ 5989964.txt".
type OffsetRule struct {
	Offset int
	Length int
}

// Extract implements Rule.
func (r OffsetRule) Extract(path string) (cellid.ID, bool) {
	name := filepath.Base(path)
	start := r.Offset
	if start < 0 {
		start += len(name)
	}
	end := start + r.Length
	if r.Length <= 0 || start < 0 || end > len(name) {
		return "", false
	}
	id := cellid.FromString(name[start:end])
	return id, id != ""
}

// PatternRule matches the base name against a regular expression and uses
// the first capture group, or the whole match when there is no group.
type PatternRule struct {
	re *regexp.Regexp
}

// NewPatternRule compiles a PatternRule.
func NewPatternRule(pattern string) (*PatternRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "matrix: compile id pattern %q", pattern)
	}
	return &PatternRule{re: re}, nil
}

// Extract implements Rule.
func (r *PatternRule) Extract(path string) (cellid.ID, bool) {
	m := r.re.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}
	id := cellid.FromString(raw)
	return id, id != ""
}

// NewRule returns a PatternRule when pattern is set and an OffsetRule otherwise.
func NewRule(pattern string, offset, length int) (Rule, error) {
	if pattern != "" {
		return NewPatternRule(pattern)
	}
	if length <= 0 {
		return nil, eris.New("matrix: id length must be positive")
	}
	return OffsetRule{Offset: offset, Length: length}, nil
}
