// Package travel resolves travel modes and cost metrics to matrix columns.
package travel

import (
	"strings"

	"github.com/sells-group/accessviz/internal/fault"
)

// Mode is a travel mode.
type Mode string

// Travel modes.
const (
	Car    Mode = "car"
	Public Mode = "public"
	Walk   Mode = "walk"
)

// Modes lists every mode in display order.
var Modes = []Mode{Car, Public, Walk}

// Metric is a cost metric.
type Metric string

// Cost metrics.
const (
	Time     Metric = "time"
	Distance Metric = "distance"
)

// Metrics lists every metric.
var Metrics = []Metric{Time, Distance}

var fields = map[Metric]map[Mode]string{
	Time:     {Car: "car_r_t", Public: "pt_m_t", Walk: "walk_t"},
	Distance: {Car: "car_r_d", Public: "pt_m_d", Walk: "walk_d"},
}

// mapFields are the columns shown on accessibility maps. Public transport
// maps use the total travel time including the walk to the stop.
var mapFields = map[Mode]string{Car: "car_r_t", Public: "pt_m_tt", Walk: "walk_t"}

// ParseMode resolves a mode name; "pt" and "transit" are accepted for public.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car":
		return Car, nil
	case "public", "pt", "transit":
		return Public, nil
	case "walk":
		return Walk, nil
	default:
		return "", fault.Configurationf("travel: unknown mode %q (want car, public or walk)", s)
	}
}

// ParseMetric resolves a metric name.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "t":
		return Time, nil
	case "distance", "d":
		return Distance, nil
	default:
		return "", fault.Configurationf("travel: unknown metric %q (want time or distance)", s)
	}
}

// Field returns the matrix column holding metric for mode.
func Field(mode Mode, metric Metric) (string, error) {
	byMode, ok := fields[metric]
	if !ok {
		return "", fault.Configurationf("travel: unknown metric %q", metric)
	}
	f, ok := byMode[mode]
	if !ok {
		return "", fault.Configurationf("travel: unknown mode %q", mode)
	}
	return f, nil
}

// MapField returns the column drawn on maps for mode.
func MapField(mode Mode) (string, error) {
	f, ok := mapFields[mode]
	if !ok {
		return "", fault.Configurationf("travel: unknown mode %q", mode)
	}
	return f, nil
}
