package render

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/accessviz/internal/access"
)

// FeatureCollection converts the table to GeoJSON features. Every numeric
// and class column becomes a property; missing values are null.
func FeatureCollection(t *access.Table) (*geojson.FeatureCollection, error) {
	cols := newColumnReader(t)
	names := cols.names()
	dest := t.Destination().String()

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, t.Len())}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		if row.Cell == nil || row.Cell.Geometry == nil {
			continue
		}
		props := make(map[string]any, len(names)+2)
		props["from_id"] = row.Origin.String()
		props["to_id"] = dest
		for _, name := range names {
			v, _ := cols.value(name, i)
			props[name] = v.scalar()
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         row.Origin.String(),
			Geometry:   row.Cell.Geometry,
			Properties: props,
		})
	}
	return fc, nil
}

// namedCRS is the "crs" member of the 2008 GeoJSON format. RFC 7946 dropped
// it and assumes WGS84; the grid stays in its projected metres, so readers
// such as GDAL and QGIS need it to place the features.
type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type crsFeatureCollection struct {
	Type     string             `json:"type"`
	CRS      *namedCRS          `json:"crs,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

// SRID returns the SRID of the first table geometry that carries one, or 0.
func SRID(t *access.Table) int {
	for i := 0; i < t.Len(); i++ {
		if c := t.Row(i).Cell; c != nil && c.Geometry != nil && c.Geometry.SRID() != 0 {
			return c.Geometry.SRID()
		}
	}
	return 0
}

// CRSName is the OGC URN of srid, e.g. urn:ogc:def:crs:EPSG::3067.
func CRSName(srid int) string {
	return "urn:ogc:def:crs:EPSG::" + strconv.Itoa(srid)
}

// WriteGeoJSON encodes the table as a GeoJSON FeatureCollection. Coordinates
// are written in the grid projection, named in a "crs" member when the
// geometries carry an SRID.
func WriteGeoJSON(w io.Writer, t *access.Table) error {
	fc, err := FeatureCollection(t)
	if err != nil {
		return err
	}
	out := crsFeatureCollection{Type: "FeatureCollection", Features: fc.Features}
	if srid := SRID(t); srid != 0 {
		out.CRS = &namedCRS{Type: "name", Properties: map[string]string{"name": CRSName(srid)}}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return eris.Wrap(err, "render: marshal geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "render: write geojson")
	}
	return nil
}
