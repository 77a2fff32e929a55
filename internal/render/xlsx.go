package render

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/accessviz/internal/access"
)

// WriteXLSX writes the table without geometry to a spreadsheet. Cell area
// and center are included; missing values are empty cells.
func WriteXLSX(path string, t *access.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("accessibility")
	if err != nil {
		return eris.Wrap(err, "render: add sheet")
	}

	cols := newColumnReader(t)
	names := cols.names()

	header := sheet.AddRow()
	for _, h := range append([]string{"from_id", "to_id", "area", "x", "y"}, names...) {
		header.AddCell().SetString(h)
	}

	dest := t.Destination().String()
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		row := sheet.AddRow()
		row.AddCell().SetString(r.Origin.String())
		row.AddCell().SetString(dest)
		if r.Cell != nil && len(r.Cell.Center) == 2 {
			row.AddCell().SetFloat(r.Cell.Area)
			row.AddCell().SetFloat(r.Cell.Center[0])
			row.AddCell().SetFloat(r.Cell.Center[1])
		} else {
			row.AddCell()
			row.AddCell()
			row.AddCell()
		}
		for _, name := range names {
			v, _ := cols.value(name, i)
			cell := row.AddCell()
			switch s := v.scalar().(type) {
			case float64:
				cell.SetFloat(s)
			case int:
				cell.SetInt(s)
			}
		}
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "render: save %s", path)
	}
	return nil
}
