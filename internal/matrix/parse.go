package matrix

import (
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

// Cost is one travel cost value. Valid is false for "no route" and no-data
// cells; Value is meaningless in that case.
type Cost struct {
	Value float64
	Valid bool
}

// Some returns a present cost.
func Some(v float64) Cost { return Cost{Value: v, Valid: true} }

// Missing returns an absent cost.
func Missing() Cost { return Cost{} }

// String renders the cost, "NA" when missing.
func (c Cost) String() string {
	if !c.Valid {
		return "NA"
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// Record is one origin -> destination row of a matrix file. Costs is aligned
// with File.Fields.
type Record struct {
	Origin      cellid.ID
	Destination cellid.ID
	Costs       []Cost
}

// File is a parsed matrix file: every record shares one destination.
type File struct {
	Path        string
	Destination cellid.ID
	Fields      []string
	Records     []Record
}

// FieldIndex returns the position of a cost field in Record.Costs.
func (f *File) FieldIndex(name string) (int, bool) {
	for i, fld := range f.Fields {
		if fld == name {
			return i, true
		}
	}
	return -1, false
}

// ParseOptions configures matrix file parsing.
type ParseOptions struct {
	Separator   rune
	Sentinel    float64
	NoData      []string
	OriginField string
	DestField   string
	Timeout     time.Duration // ParseFile only; 0 = no limit
}

// DefaultParseOptions matches the Helsinki region travel time matrix layout.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		Separator:   ';',
		Sentinel:    -1,
		NoData:      []string{""},
		OriginField: "from_id",
		DestField:   "to_id",
		Timeout:     30 * time.Second,
	}
}

// ParseFile parses the matrix file at path within opts.Timeout.
func ParseFile(ctx context.Context, path string, opts ParseOptions) (*File, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fault.NewDataSource(err, "matrix: open "+path)
	}
	defer f.Close() //nolint:errcheck

	mf, err := Parse(ctx, f, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "matrix: parse %s", path)
	}
	mf.Path = path
	return mf, nil
}

// Parse reads delimited matrix records. The first row is the header; it must
// name the origin and destination fields, every other column is a cost field.
// Sentinel and no-data cells become missing costs here so that no later stage
// ever sees them as numbers.
func Parse(ctx context.Context, r io.Reader, opts ParseOptions) (*File, error) {
	if opts.Separator == 0 {
		opts.Separator = ';'
	}
	noData := make(map[string]struct{}, len(opts.NoData))
	for _, s := range opts.NoData {
		noData[strings.TrimSpace(s)] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := streamCSV(ctx, r, csvOptions{
		Delimiter:  opts.Separator,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var (
		file      = &File{}
		originIdx = -1
		destIdx   = -1
		costIdx   []int
		header    bool
		width     int
	)

	for {
		var row csvRow
		var ok bool
		select {
		case <-ctx.Done():
			return nil, fault.NewDataSource(ctx.Err(), "matrix: read timed out")
		case row, ok = <-rowCh:
		}
		if !ok {
			break
		}

		if !header {
			header = true
			width = len(row.Fields)
			for i, name := range row.Fields {
				name = strings.TrimPrefix(name, "\ufeff")
				switch name {
				case opts.OriginField:
					originIdx = i
				case opts.DestField:
					destIdx = i
				default:
					file.Fields = append(file.Fields, name)
					costIdx = append(costIdx, i)
				}
			}
			if originIdx < 0 || destIdx < 0 {
				return nil, fault.NewDataSource(nil, "matrix: header lacks "+opts.OriginField+" or "+opts.DestField)
			}
			continue
		}

		if len(row.Fields) == 1 && row.Fields[0] == "" {
			continue
		}
		if len(row.Fields) != width {
			return nil, fault.NewDataSource(
				eris.Errorf("line %d: %d fields, header has %d", row.Line, len(row.Fields), width),
				"matrix: malformed row")
		}

		rec := Record{
			Origin:      cellid.FromString(row.Fields[originIdx]),
			Destination: cellid.FromString(row.Fields[destIdx]),
			Costs:       make([]Cost, len(costIdx)),
		}
		if rec.Origin == "" || rec.Destination == "" {
			return nil, fault.NewDataSource(eris.Errorf("line %d: empty identifier", row.Line), "matrix: malformed row")
		}

		for j, idx := range costIdx {
			c, err := parseCost(row.Fields[idx], opts.Sentinel, noData)
			if err != nil {
				return nil, fault.NewDataSource(
					eris.Wrapf(err, "line %d field %s", row.Line, file.Fields[j]),
					"matrix: malformed value")
			}
			rec.Costs[j] = c
		}

		switch {
		case file.Destination == "":
			file.Destination = rec.Destination
		case file.Destination != rec.Destination:
			return nil, fault.NewDataSource(
				eris.Errorf("line %d: destination %s differs from %s", row.Line, rec.Destination, file.Destination),
				"matrix: mixed destinations")
		}

		file.Records = append(file.Records, rec)
	}

	for err := range errCh {
		if err != nil {
			return nil, fault.NewDataSource(err, "matrix: read")
		}
	}
	if !header {
		return nil, fault.NewDataSource(nil, "matrix: empty file")
	}

	return file, nil
}

func parseCost(raw string, sentinel float64, noData map[string]struct{}) (Cost, error) {
	if _, ok := noData[raw]; ok {
		return Missing(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Cost{}, eris.Wrapf(err, "parse %q", raw)
	}
	if math.IsNaN(v) || v == sentinel {
		return Missing(), nil
	}
	if v < 0 || math.IsInf(v, 0) {
		return Cost{}, eris.Errorf("invalid cost %v", v)
	}
	return Some(v), nil
}
