// Package grid holds the base spatial grid: cell identifier to polygon
// geometry and static attributes. A Registry is immutable after load and
// safe for concurrent readers.
package grid

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

// DefaultSRID is EUREF-FIN / TM35FIN, the projection of the YKR grid.
const DefaultSRID = 3067

// Cell is one grid cell.
type Cell struct {
	ID         cellid.ID
	Geometry   *geom.MultiPolygon
	Area       float64
	Center     geom.Coord // bounding box center
	Attributes map[string]string
}

// NewCell builds a cell and derives its area and center from the geometry.
func NewCell(id cellid.ID, mp *geom.MultiPolygon, attrs map[string]string) *Cell {
	c := &Cell{ID: id, Geometry: mp, Attributes: attrs}
	if mp != nil && !mp.Empty() {
		c.Area = polygonArea(mp)
		b := mp.Bounds()
		c.Center = geom.Coord{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}
	}
	return c
}

// polygonArea is the unsigned area of mp. go-geom areas are signed by ring
// winding and shapefile outer rings are clockwise, so each ring is measured
// on its own: outer rings add, holes subtract.
func polygonArea(mp *geom.MultiPolygon) float64 {
	var area float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for k := 0; k < p.NumLinearRings(); k++ {
			a := math.Abs(p.LinearRing(k).Area())
			if k == 0 {
				area += a
			} else {
				area -= a
			}
		}
	}
	return area
}

// Registry is the loaded grid.
type Registry struct {
	cells   map[cellid.ID]*Cell
	ids     []cellid.ID
	srid    int
	skipped int
}

// New builds a registry from cells. Duplicate identifiers and an empty cell
// list are DataSource errors.
func New(cells []*Cell, srid int) (*Registry, error) {
	return build(cells, srid, 0)
}

func build(cells []*Cell, srid, skipped int) (*Registry, error) {
	if len(cells) == 0 {
		return nil, fault.NewDataSource(nil, "grid: no usable cells")
	}
	if srid <= 0 {
		srid = DefaultSRID
	}

	r := &Registry{
		cells:   make(map[cellid.ID]*Cell, len(cells)),
		ids:     make([]cellid.ID, 0, len(cells)),
		srid:    srid,
		skipped: skipped,
	}
	var dups []string
	for _, c := range cells {
		if c == nil || c.ID == "" {
			return nil, fault.NewDataSource(nil, "grid: cell without identifier")
		}
		if _, ok := r.cells[c.ID]; ok {
			dups = append(dups, c.ID.String())
			continue
		}
		r.cells[c.ID] = c
		r.ids = append(r.ids, c.ID)
	}
	if len(dups) > 0 {
		e := fault.NewDataSource(nil, fmt.Sprintf("grid: %d duplicate cell identifiers", len(dups)))
		e.IDs = dups
		return nil, e
	}
	cellid.Sort(r.ids)
	return r, nil
}

// Lookup returns the cell with the given identifier.
func (r *Registry) Lookup(id cellid.ID) (*Cell, bool) {
	c, ok := r.cells[id]
	return c, ok
}

// Len returns the number of cells.
func (r *Registry) Len() int { return len(r.cells) }

// IDs returns all identifiers in cellid order. The slice is a copy.
func (r *Registry) IDs() []cellid.ID {
	return append([]cellid.ID(nil), r.ids...)
}

// Each calls fn for every cell in identifier order until fn returns false.
func (r *Registry) Each(fn func(*Cell) bool) {
	for _, id := range r.ids {
		if !fn(r.cells[id]) {
			return
		}
	}
}

// SRID returns the spatial reference of all cell geometries.
func (r *Registry) SRID() int { return r.srid }

// Skipped returns the number of source records dropped at load for lacking
// geometry.
func (r *Registry) Skipped() int { return r.skipped }

// Summary describes a loaded registry.
type Summary struct {
	Cells   int       `json:"cells" yaml:"cells"`
	Skipped int       `json:"skipped" yaml:"skipped"`
	SRID    int       `json:"srid" yaml:"srid"`
	MinX    float64   `json:"min_x" yaml:"min_x"`
	MinY    float64   `json:"min_y" yaml:"min_y"`
	MaxX    float64   `json:"max_x" yaml:"max_x"`
	MaxY    float64   `json:"max_y" yaml:"max_y"`
	First   cellid.ID `json:"first" yaml:"first"`
	Last    cellid.ID `json:"last" yaml:"last"`
}

// Summarize returns cell count, extent and identifier range.
func (r *Registry) Summarize() Summary {
	s := Summary{Cells: r.Len(), Skipped: r.skipped, SRID: r.srid}
	b := geom.NewBounds(geom.XY)
	for _, c := range r.cells {
		if c.Geometry != nil && !c.Geometry.Empty() {
			b.Extend(c.Geometry)
		}
	}
	if !b.IsEmpty() {
		s.MinX, s.MinY, s.MaxX, s.MaxY = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	}
	if len(r.ids) > 0 {
		s.First, s.Last = r.ids[0], r.ids[len(r.ids)-1]
	}
	return s
}
