package grid

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

// ShapefileOptions configures LoadShapefile.
type ShapefileOptions struct {
	IDField string // default "YKR_ID", matched case-insensitively
	SRID    int    // default DefaultSRID
}

// LoadShapefile reads the grid from a polygon shapefile. Records without
// geometry are skipped and counted. An unreadable file, a missing
// identifier field, duplicate identifiers or zero usable cells are
// DataSource errors.
func LoadShapefile(path string, opts ShapefileOptions) (*Registry, error) {
	if opts.IDField == "" {
		opts.IDField = "YKR_ID"
	}
	if opts.SRID <= 0 {
		opts.SRID = DefaultSRID
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fault.NewDataSource(err, "grid: open shapefile "+path)
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fault.NewDataSource(err, "grid: open shapefile "+path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	idIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(names[i], opts.IDField) {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fault.NewDataSource(nil, "grid: shapefile "+path+" has no "+opts.IDField+" field")
	}

	var (
		cells   []*Cell
		skipped int
	)
	for reader.Next() {
		n, shape := reader.Shape()

		raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		id := cellid.FromString(raw)
		mp := shapeToMultiPolygon(shape, opts.SRID)
		if id == "" || mp == nil {
			skipped++
			zap.L().Debug("grid: skipping record", zap.Int("record", n), zap.String("id", raw))
			continue
		}

		attrs := make(map[string]string, len(names)-1)
		for i, name := range names {
			if i == idIdx {
				continue
			}
			attrs[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		cells = append(cells, NewCell(id, mp, attrs))
	}

	reg, err := build(cells, opts.SRID, skipped)
	if err != nil {
		return nil, err
	}

	zap.L().Info("grid: loaded shapefile",
		zap.String("component", "grid"),
		zap.String("path", path),
		zap.Int("cells", reg.Len()),
		zap.Int("skipped", skipped),
	)
	return reg, nil
}

// FixDBFName moves the attribute table written by shp.Writer to its proper
// name. go-shp v0.1.1 strips ".shp" from the path and then creates
// "<base>dbf" without the dot. Call it after Writer.Close.
func FixDBFName(path string) error {
	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-4]
	}
	if _, err := os.Stat(base + "dbf"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "grid: stat %sdbf", base)
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "grid: rename %sdbf", base)
	}
	return nil
}
