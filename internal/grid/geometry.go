package grid

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// shapeToMultiPolygon converts a shapefile polygon to a go-geom multipolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the polygon before them. Returns nil for empty or non-polygon shapes.
func shapeToMultiPolygon(shape shp.Shape, srid int) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("grid: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			zap.L().Debug("grid: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) < 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("grid: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace area of a closed flat XY ring; negative when
// the ring is clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// multiPolygonToShape converts a go-shp polygon back from a multipolygon,
// writing outer rings clockwise and holes counter-clockwise.
func multiPolygonToShape(mp *geom.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			flat := poly.LinearRing(r).FlatCoords()
			clockwise := signedArea(flat) < 0
			wantClockwise := r == 0
			pts := make([]shp.Point, 0, len(flat)/2)
			for k := 0; k < len(flat); k += 2 {
				pts = append(pts, shp.Point{X: flat[k], Y: flat[k+1]})
			}
			if clockwise != wantClockwise {
				for a, b := 0, len(pts)-1; a < b; a, b = a+1, b-1 {
					pts[a], pts[b] = pts[b], pts[a]
				}
			}
			parts = append(parts, pts)
		}
	}
	polygon := shp.Polygon(*shp.NewPolyLine(parts))
	return &polygon
}

// Shape returns the cell geometry as a shapefile polygon.
func (c *Cell) Shape() *shp.Polygon {
	if c.Geometry == nil {
		return nil
	}
	return multiPolygonToShape(c.Geometry)
}

// EncodeEWKB returns the cell geometry as little-endian EWKB with its SRID.
func EncodeEWKB(mp *geom.MultiPolygon, srid int) ([]byte, error) {
	if mp == nil {
		return nil, nil
	}
	if mp.SRID() != srid {
		mp = mp.Clone().SetSRID(srid)
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "grid: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB into a multipolygon. Plain polygons are promoted.
func DecodeEWKB(data []byte) (*geom.MultiPolygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "grid: decode EWKB")
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout()).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "grid: promote polygon")
		}
		return mp, nil
	default:
		return nil, eris.Errorf("grid: unsupported geometry %T", g)
	}
}
