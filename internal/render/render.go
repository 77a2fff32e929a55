// Package render persists accessibility tables: shapefiles, GeoJSON, static
// PNG maps, interactive HTML maps, spreadsheets and YAML legends.
package render

import (
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/matrix"
)

// palette is a red to blue diverging ramp: class 0 (shortest travel) is red.
var palette = []string{
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee090", "#ffffbf",
	"#e0f3f8", "#abd9e9", "#74add1", "#4575b4", "#313695",
}

// missingHex colors cells without a value.
const missingHex = "#cccccc"

// Colors returns n colors sampled evenly from the palette.
func Colors(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	if n == 1 {
		out[0] = palette[0]
		return out
	}
	for i := range out {
		out[i] = palette[i*(len(palette)-1)/(n-1)]
	}
	return out
}

// parseHex converts "#rrggbb" to a color.
func parseHex(s string) color.RGBA {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{A: 255}
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "render: create %s", dir)
	}
	return nil
}

// tableValue returns column name of row i as either a cost or a class label.
type tableValue struct {
	cost    matrix.Cost
	class   int
	isClass bool
}

// columnReader resolves numeric and class columns by name.
type columnReader struct {
	t       *access.Table
	costIdx map[string]int
	classes map[string][]int
}

func newColumnReader(t *access.Table) *columnReader {
	r := &columnReader{t: t, costIdx: map[string]int{}, classes: map[string][]int{}}
	for i, c := range t.Columns() {
		r.costIdx[c] = i
	}
	for _, c := range t.ClassColumns() {
		r.classes[c], _ = t.Classes(c)
	}
	return r
}

// names returns numeric columns then class columns.
func (r *columnReader) names() []string {
	return append(r.t.Columns(), r.t.ClassColumns()...)
}

func (r *columnReader) value(name string, row int) (tableValue, bool) {
	if idx, ok := r.costIdx[name]; ok {
		return tableValue{cost: r.t.Row(row).Costs[idx]}, true
	}
	if labels, ok := r.classes[name]; ok {
		return tableValue{class: labels[row], isClass: true}, true
	}
	return tableValue{}, false
}

// scalar renders a value for property maps; missing values are nil.
func (v tableValue) scalar() any {
	if v.isClass {
		if v.class == classify.Missing {
			return nil
		}
		return v.class
	}
	if !v.cost.Valid {
		return nil
	}
	return v.cost.Value
}
