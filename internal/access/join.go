package access

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
)

// Stats counts what the inner join kept and dropped.
type Stats struct {
	MatrixRows     int `json:"matrix_rows" yaml:"matrix_rows"`
	GridCells      int `json:"grid_cells" yaml:"grid_cells"`
	Joined         int `json:"joined" yaml:"joined"`
	DroppedOrigins int `json:"dropped_origins" yaml:"dropped_origins"` // in the matrix, not in the grid
	UnreachedCells int `json:"unreached_cells" yaml:"unreached_cells"` // in the grid, not in the matrix
}

// Join inner-joins matrix records to grid cells on the origin identifier.
// Rows are ordered by origin identifier. Duplicate origins in the matrix
// fail with a JoinError naming them.
func Join(file *matrix.File, reg *grid.Registry) (*Table, Stats, error) {
	stats := Stats{MatrixRows: len(file.Records), GridCells: reg.Len()}

	seen := make(map[cellid.ID]int, len(file.Records))
	for _, rec := range file.Records {
		seen[rec.Origin]++
	}
	dups := cellid.NewSet()
	for id, n := range seen {
		if n > 1 {
			dups[id] = struct{}{}
		}
	}
	if len(dups) > 0 {
		ids := dups.Sorted()
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = id.String()
		}
		return nil, stats, fault.NewJoin(
			fmt.Sprintf("access: %d duplicate origin identifiers in %s", len(ids), file.Path), names)
	}

	t := &Table{
		destination: file.Destination,
		columns:     append([]string(nil), file.Fields...),
		rows:        make([]Row, 0, min(len(file.Records), reg.Len())),
	}
	for _, rec := range file.Records {
		cell, ok := reg.Lookup(rec.Origin)
		if !ok {
			stats.DroppedOrigins++
			continue
		}
		t.rows = append(t.rows, Row{
			Origin: rec.Origin,
			Cell:   cell,
			Costs:  append([]matrix.Cost(nil), rec.Costs...),
		})
	}
	sortRows(t.rows)

	stats.Joined = len(t.rows)
	stats.UnreachedCells = stats.GridCells - stats.Joined

	zap.L().Debug("access: joined",
		zap.String("component", "access"),
		zap.String("destination", file.Destination.String()),
		zap.Int("matrix_rows", stats.MatrixRows),
		zap.Int("joined", stats.Joined),
		zap.Int("dropped_origins", stats.DroppedOrigins),
	)
	return t, stats, nil
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return cellid.Less(rows[i].Origin, rows[j].Origin) })
}
