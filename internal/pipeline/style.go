package pipeline

import (
	"strings"

	"github.com/sells-group/accessviz/internal/fault"
)

// Style selects the map renderer.
type Style string

// Map styles.
const (
	Static      Style = "static"
	Interactive Style = "interactive"
)

// ParseStyle accepts "static" (the default when empty) and "interactive".
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static", "png":
		return Static, nil
	case "interactive", "html":
		return Interactive, nil
	default:
		return "", fault.Configurationf("pipeline: unknown map style %q (want static or interactive)", s)
	}
}
