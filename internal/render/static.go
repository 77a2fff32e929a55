package render

import (
	"image/color"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/fault"
)

// MapOptions configures rendered maps.
type MapOptions struct {
	Title        string
	Labels       []string // class labels for the legend, index = class
	DPI          int      // PNG resolution, default 300
	WidthInches  float64  // default 8
	HeightInches float64  // default 8
	AssetsHost   string   // go-echarts asset host for HTML maps
}

func (o MapOptions) withDefaults() MapOptions {
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.WidthInches <= 0 {
		o.WidthInches = 8
	}
	if o.HeightInches <= 0 {
		o.HeightInches = 8
	}
	return o
}

// StaticMap draws every cell filled by its class in classColumn and saves a
// PNG. Cells with the Missing class are grey.
func StaticMap(path string, t *access.Table, classColumn string, opts MapOptions) error {
	opts = opts.withDefaults()
	labels, ok := t.Classes(classColumn)
	if !ok {
		return fault.Configurationf("render: table has no class column %s", classColumn)
	}

	classes := len(opts.Labels)
	for _, l := range labels {
		classes = max(classes, l+1)
	}
	fills := Colors(classes)

	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()

	for i, l := range labels {
		cell := t.Row(i).Cell
		if cell == nil || cell.Geometry == nil {
			continue
		}
		fill := parseHex(missingHex)
		if l != classify.Missing {
			fill = parseHex(fills[l])
		}
		mp := cell.Geometry
		for j := 0; j < mp.NumPolygons(); j++ {
			poly := mp.Polygon(j)
			rings := make([]plotter.XYer, poly.NumLinearRings())
			for r := range rings {
				flat := poly.LinearRing(r).FlatCoords()
				xys := make(plotter.XYs, len(flat)/2)
				for k := range xys {
					xys[k] = plotter.XY{X: flat[2*k], Y: flat[2*k+1]}
				}
				rings[r] = xys
			}
			pg, err := plotter.NewPolygon(rings...)
			if err != nil {
				return eris.Wrapf(err, "render: polygon for cell %s", cell.ID)
			}
			pg.Color = fill
			pg.LineStyle.Width = 0
			p.Add(pg)
		}
	}

	for c := 0; c < classes; c++ {
		name := ""
		if c < len(opts.Labels) {
			name = opts.Labels[c]
		}
		p.Legend.Add(name, legendSwatch(parseHex(fills[c])))
	}
	p.Legend.Add("no data", legendSwatch(parseHex(missingHex)))
	p.Legend.Top = true

	if err := ensureDir(path); err != nil {
		return err
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(opts.WidthInches)*vg.Inch, vg.Length(opts.HeightInches)*vg.Inch),
		vgimg.UseDPI(opts.DPI),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "render: encode %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "render: close %s", path)
	}

	zap.L().Debug("render: wrote static map",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.Int("classes", classes),
		zap.Int("dpi", opts.DPI),
	)
	return nil
}

// legendSwatch is a polygon used only for its legend thumbnail.
func legendSwatch(fill color.Color) *plotter.Polygon {
	pg, _ := plotter.NewPolygon(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
	pg.Color = fill
	return pg
}
