package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/grid"
)

// prj3067 is the ESRI WKT of ETRS89 / TM35FIN written next to EPSG:3067
// shapefiles.
const prj3067 = `PROJCS["ETRS89_TM35FIN",GEOGCS["GCS_ETRS_1989",DATUM["D_ETRS_1989",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",27.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

// dbfName truncates a column name to the 10 characters a DBF field allows,
// suffixing a counter when the truncated name is already taken.
func dbfName(name string, taken map[string]bool) string {
	base := name
	if len(base) > 10 {
		base = base[:10]
	}
	out := base
	for n := 1; taken[strings.ToUpper(out)]; n++ {
		suffix := strconv.Itoa(n)
		out = base[:min(len(base), 10-len(suffix))] + suffix
	}
	taken[strings.ToUpper(out)] = true
	return out
}

// WriteShapefile writes the table as a polygon shapefile with YKR_ID,
// from_id and to_id fields followed by every numeric and class column.
// Missing values are written as empty attributes. It returns the DBF field
// name used for each column.
func WriteShapefile(path string, t *access.Table, srid int) (map[string]string, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return nil, eris.Wrapf(err, "render: create shapefile %s", path)
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	cols := newColumnReader(t)
	names := cols.names()
	taken := map[string]bool{"YKR_ID": true, "FROM_ID": true, "TO_ID": true}
	fields := []shp.Field{
		shp.NumberField("YKR_ID", 10),
		shp.NumberField("from_id", 10),
		shp.NumberField("to_id", 10),
	}
	dbf := make(map[string]string, len(names))
	for _, name := range names {
		dbf[name] = dbfName(name, taken)
		if _, isCost := cols.costIdx[name]; isCost {
			fields = append(fields, shp.FloatField(dbf[name], 16, 3))
		} else {
			fields = append(fields, shp.NumberField(dbf[name], 4))
		}
	}
	if err := w.SetFields(fields); err != nil {
		return nil, eris.Wrap(err, "render: set shapefile fields")
	}

	dest := t.Destination().String()
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		if row.Cell == nil || row.Cell.Geometry == nil {
			continue
		}
		n := int(w.Write(row.Cell.Shape()))
		attrs := []string{row.Origin.String(), row.Origin.String(), dest}
		for _, name := range names {
			v, _ := cols.value(name, i)
			switch s := v.scalar().(type) {
			case float64:
				attrs = append(attrs, strconv.FormatFloat(s, 'f', 3, 64))
			case int:
				attrs = append(attrs, strconv.Itoa(s))
			default:
				attrs = append(attrs, "")
			}
		}
		for f, a := range attrs {
			// Numbers are right aligned; a blank field is a DBF null.
			padded := fmt.Sprintf("%*s", int(fields[f].Size), a)
			if err := w.WriteAttribute(n, f, padded); err != nil {
				return nil, eris.Wrapf(err, "render: write attribute %d of %s", f, row.Origin)
			}
		}
	}
	w.Close()
	closed = true
	if err := grid.FixDBFName(path); err != nil {
		return nil, eris.Wrap(err, "render: finish shapefile")
	}

	if srid == grid.DefaultSRID {
		prj := strings.TrimSuffix(path, ".shp") + ".prj"
		if err := os.WriteFile(prj, []byte(prj3067), 0o644); err != nil {
			return nil, eris.Wrapf(err, "render: write %s", prj)
		}
	}

	zap.L().Debug("render: wrote shapefile",
		zap.String("component", "render"),
		zap.String("path", path),
		zap.Int("rows", t.Len()),
	)
	return dbf, nil
}
