// Package access joins parsed travel time matrices to the base grid and
// carries the per-request accessibility table through classification,
// comparison and output.
package access

import (
	"slices"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
)

// Row is one joined origin cell.
type Row struct {
	Origin cellid.ID
	Cell   *grid.Cell
	Costs  []matrix.Cost // aligned with Table.Columns
}

// Table is an accessibility table for one destination. Derived columns are
// added by returning a new Table; a Table is never modified after Join.
type Table struct {
	destination cellid.ID
	columns     []string
	rows        []Row
	classes     map[string][]int
}

// NewTable builds a table from rows already ordered and aligned with
// columns. Join is the usual constructor.
func NewTable(destination cellid.ID, columns []string, rows []Row) (*Table, error) {
	for _, r := range rows {
		if len(r.Costs) != len(columns) {
			return nil, fault.Configurationf("access: row %s has %d costs for %d columns", r.Origin, len(r.Costs), len(columns))
		}
	}
	return &Table{
		destination: destination,
		columns:     slices.Clone(columns),
		rows:        slices.Clone(rows),
	}, nil
}

// Destination returns the destination cell all costs are measured to.
func (t *Table) Destination() cellid.ID { return t.destination }

// Columns returns the numeric column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the row count.
func (t *Table) Len() int { return len(t.rows) }

// Row returns row i. The Costs slice must not be modified.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Origins returns the row identifiers in table order.
func (t *Table) Origins() []cellid.ID {
	out := make([]cellid.ID, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Origin
	}
	return out
}

// HasColumn reports whether name is a numeric column.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.columns, name)
}

// Column returns a copy of a numeric column.
func (t *Table) Column(name string) ([]matrix.Cost, bool) {
	idx := slices.Index(t.columns, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]matrix.Cost, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Costs[idx]
	}
	return out, true
}

// WithColumn returns a new table with an additional numeric column. values
// must be aligned with the rows; an existing column of the same name is
// replaced.
func (t *Table) WithColumn(name string, values []matrix.Cost) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fault.Configurationf("access: column %s has %d values for %d rows", name, len(values), len(t.rows))
	}
	idx := slices.Index(t.columns, name)

	out := t.shallow()
	if idx < 0 {
		out.columns = append(slices.Clone(t.columns), name)
	}
	out.rows = make([]Row, len(t.rows))
	for i, r := range t.rows {
		costs := slices.Clone(r.Costs)
		if idx < 0 {
			costs = append(costs, values[i])
		} else {
			costs[idx] = values[i]
		}
		out.rows[i] = Row{Origin: r.Origin, Cell: r.Cell, Costs: costs}
	}
	return out, nil
}

// ClassColumns returns the names of ordinal class columns, sorted.
func (t *Table) ClassColumns() []string {
	out := make([]string, 0, len(t.classes))
	for name := range t.classes {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Classes returns a copy of an ordinal class column.
func (t *Table) Classes(name string) ([]int, bool) {
	c, ok := t.classes[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(c), true
}

// WithClasses returns a new table with an additional ordinal column.
func (t *Table) WithClasses(name string, labels []int) (*Table, error) {
	if len(labels) != len(t.rows) {
		return nil, fault.Configurationf("access: column %s has %d labels for %d rows", name, len(labels), len(t.rows))
	}
	out := t.shallow()
	out.classes = make(map[string][]int, len(t.classes)+1)
	for k, v := range t.classes {
		out.classes[k] = v
	}
	out.classes[name] = slices.Clone(labels)
	return out, nil
}

func (t *Table) shallow() *Table {
	return &Table{
		destination: t.destination,
		columns:     t.columns,
		rows:        t.rows,
		classes:     t.classes,
	}
}
