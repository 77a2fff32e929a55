package grid

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/db"
	"github.com/sells-group/accessviz/internal/fault"
)

// TableOptions names the PostGIS table holding the grid.
type TableOptions struct {
	Table      string // optionally schema qualified, default "ykr_grid"
	IDColumn   string // default "id"
	GeomColumn string // default "geom"
	SRID       int    // default DefaultSRID
	BatchSize  int    // COPY batch size for Import
	Replace    bool   // truncate before Import
}

func (o TableOptions) withDefaults() TableOptions {
	if o.Table == "" {
		o.Table = "ykr_grid"
	}
	if o.IDColumn == "" {
		o.IDColumn = "id"
	}
	if o.GeomColumn == "" {
		o.GeomColumn = "geom"
	}
	if o.SRID <= 0 {
		o.SRID = DefaultSRID
	}
	return o
}

// LoadPostGIS reads the grid from a PostGIS table. Rows with null or
// non-polygonal geometry are skipped and counted.
func LoadPostGIS(ctx context.Context, pool db.Pool, opts TableOptions) (*Registry, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "grid.postgis"), zap.String("table", opts.Table))

	sql := fmt.Sprintf("SELECT %s::text, ST_AsEWKB(%s) FROM %s",
		db.Identifier(opts.IDColumn).Sanitize(),
		db.Identifier(opts.GeomColumn).Sanitize(),
		db.Identifier(opts.Table).Sanitize(),
	)
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, fault.NewDataSource(err, "grid: query "+opts.Table)
	}
	defer rows.Close()

	var (
		cells   []*Cell
		skipped int
	)
	for rows.Next() {
		var (
			raw  string
			data []byte
		)
		if err := rows.Scan(&raw, &data); err != nil {
			return nil, fault.NewDataSource(err, "grid: scan "+opts.Table)
		}
		id := cellid.FromString(raw)
		if id == "" || len(data) == 0 {
			skipped++
			continue
		}
		mp, err := DecodeEWKB(data)
		if err != nil {
			log.Debug("grid: skipping row", zap.String("id", raw), zap.Error(err))
			skipped++
			continue
		}
		cells = append(cells, NewCell(id, mp, nil))
	}
	if err := rows.Err(); err != nil {
		return nil, fault.NewDataSource(err, "grid: read "+opts.Table)
	}

	reg, err := build(cells, opts.SRID, skipped)
	if err != nil {
		return nil, err
	}
	log.Info("grid: loaded table", zap.Int("cells", reg.Len()), zap.Int("skipped", skipped))
	return reg, nil
}

// EnsureTable creates the grid table and its spatial index if missing.
func EnsureTable(ctx context.Context, pool db.Pool, opts TableOptions) error {
	opts = opts.withDefaults()
	table := db.Identifier(opts.Table).Sanitize()
	geomCol := db.Identifier(opts.GeomColumn).Sanitize()

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS postgis",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s TEXT PRIMARY KEY,
			area DOUBLE PRECISION,
			%s geometry(MultiPolygon, %d) NOT NULL
		)`, table, db.Identifier(opts.IDColumn).Sanitize(), geomCol, opts.SRID),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
			db.Identifier(indexName(opts.Table)).Sanitize(), table, geomCol),
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return eris.Wrapf(err, "grid: ensure table %s", opts.Table)
		}
	}
	return nil
}

func indexName(table string) string {
	id := db.Identifier(table)
	return id[len(id)-1] + "_geom_idx"
}

// Import writes every registry cell to the PostGIS table with COPY and
// returns the number of rows written.
func Import(ctx context.Context, pool db.Pool, reg *Registry, opts TableOptions) (int64, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "grid.import"), zap.String("table", opts.Table))

	if err := EnsureTable(ctx, pool, opts); err != nil {
		return 0, err
	}
	if opts.Replace {
		if _, err := pool.Exec(ctx, "TRUNCATE "+db.Identifier(opts.Table).Sanitize()); err != nil {
			return 0, eris.Wrapf(err, "grid: truncate %s", opts.Table)
		}
	}

	rows := make([][]any, 0, reg.Len())
	var encErr error
	reg.Each(func(c *Cell) bool {
		data, err := EncodeEWKB(c.Geometry, opts.SRID)
		if err != nil {
			encErr = eris.Wrapf(err, "grid: cell %s", c.ID)
			return false
		}
		rows = append(rows, []any{c.ID.String(), c.Area, data})
		return true
	})
	if encErr != nil {
		return 0, encErr
	}

	n, err := db.CopyBatches(ctx, pool, opts.Table, []string{opts.IDColumn, "area", opts.GeomColumn}, rows, opts.BatchSize)
	if err != nil {
		return n, eris.Wrap(err, "grid: import")
	}
	log.Info("grid: imported", zap.Int64("rows", n))
	return n, nil
}
