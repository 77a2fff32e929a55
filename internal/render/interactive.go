package render

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/fault"
)

// InteractiveMap writes an HTML scatter map of cell centers colored by
// classColumn, with valueColumn in the tooltip. Cells without a class are
// drawn in the no-data color.
func InteractiveMap(path string, t *access.Table, classColumn, valueColumn string, mo MapOptions) error {
	html, err := InteractiveHTML(t, classColumn, valueColumn, mo)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	zap.L().Debug("render: wrote interactive map", zap.String("component", "render"), zap.String("path", path))
	return nil
}

// InteractiveHTML renders the interactive map document.
func InteractiveHTML(t *access.Table, classColumn, valueColumn string, mo MapOptions) ([]byte, error) {
	labels, ok := t.Classes(classColumn)
	if !ok {
		return nil, fault.Configurationf("render: table has no class column %s", classColumn)
	}
	values, ok := t.Column(valueColumn)
	if !ok {
		return nil, fault.Configurationf("render: table has no column %s", valueColumn)
	}

	classes := len(mo.Labels)
	data := make([]opts.ScatterData, 0, t.Len())
	var (
		missing                int
		minX, minY, maxX, maxY float64
	)
	for i, l := range labels {
		cell := t.Row(i).Cell
		if cell == nil || len(cell.Center) < 2 {
			continue
		}
		if l == classify.Missing {
			missing++
		} else {
			classes = max(classes, l+1)
		}
		x, y := cell.Center[0], cell.Center[1]
		if len(data) == 0 {
			minX, maxX, minY, maxY = x, x, y, y
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		var v any = "NA"
		if values[i].Valid {
			v = values[i].Value
		}
		data = append(data, opts.ScatterData{
			Name:  t.Row(i).Origin.String(),
			Value: []interface{}{x, y, l, v},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  mo.Title,
			Width:      "900px",
			Height:     "900px",
			AssetsHost: mo.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    mo.Title,
			Subtitle: fmt.Sprintf("%s by %s, cells=%d no data=%d", valueColumn, classColumn, len(data), missing),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX, Max: maxX}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY, Max: maxY}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Type:      "piecewise",
			Show:      opts.Bool(true),
			Dimension: "2",
			Pieces:    classPieces(classes),
		}),
	)
	scatter.AddSeries(valueColumn, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, eris.Wrap(err, "render: interactive map")
	}
	return buf.Bytes(), nil
}

// classPieces maps each class label to its palette color and the missing
// label to missingHex. Bounds sit halfway between labels because zero
// bounds are dropped from the piece JSON.
func classPieces(classes int) []opts.Piece {
	pieces := []opts.Piece{{Lt: float32(classify.Missing) + 0.5, Color: missingHex}}
	for i, c := range Colors(max(classes, 1)) {
		pieces = append(pieces, opts.Piece{Gt: float32(i) - 0.5, Lt: float32(i) + 0.5, Color: c})
	}
	return pieces
}
