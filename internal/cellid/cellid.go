// Package cellid canonicalizes grid cell identifiers (YKR_ID values).
//
// Identifiers arrive as strings from filenames and CSV fields and as numbers
// from callers and attribute tables. Both sides are reduced to one canonical
// decimal string before any comparison.
package cellid

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/accessviz/internal/fault"
)

// ID is a canonical cell identifier.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Numeric reports whether the identifier is a plain decimal integer.
func (id ID) Numeric() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Canonical converts a string or numeric identifier to its canonical form.
func Canonical(v any) (ID, error) {
	switch x := v.(type) {
	case ID:
		return FromString(string(x)), nil
	case string:
		return FromString(x), nil
	case int:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int8:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return ID(strconv.FormatInt(x, 10)), nil
	case uint:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint8:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return ID(strconv.FormatUint(x, 10)), nil
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case fmt.Stringer:
		return FromString(x.String()), nil
	default:
		return "", fault.Configurationf("cellid: unsupported identifier type %T", v)
	}
}

func fromFloat(f float64) (ID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", fault.Configurationf("cellid: %v is not an integral identifier", f)
	}
	return ID(strconv.FormatFloat(f, 'f', 0, 64)), nil
}

// FromString canonicalizes a textual identifier. Integer-like text loses
// surrounding whitespace, leading zeros and an integral ".0" suffix; any
// other text is only trimmed.
func FromString(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	digits := s
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		if strings.Trim(digits[i+1:], "0") != "" {
			return ID(s)
		}
		digits = digits[:i]
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return ID(s)
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return ID(digits)
}

// Parse canonicalizes a list of identifiers, dropping duplicates while
// preserving first-seen order.
func Parse(values []string) []ID {
	seen := make(map[ID]struct{}, len(values))
	out := make([]ID, 0, len(values))
	for _, v := range values {
		id := FromString(v)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Less orders identifiers numerically when both are numeric and
// lexicographically otherwise.
func Less(a, b ID) bool {
	an, bn := a.Numeric(), b.Numeric()
	switch {
	case an && bn:
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	case an:
		return true
	case bn:
		return false
	default:
		return a < b
	}
}

// Sort sorts identifiers in place using Less.
func Sort(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

// Set is an identifier set.
type Set map[ID]struct{}

// NewSet builds a set from identifiers.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in Less order.
func (s Set) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	Sort(out)
	return out
}
