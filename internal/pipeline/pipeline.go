// Package pipeline runs accessibility requests end to end: find the matrix
// file for a destination cell, parse and join it onto the grid, then
// classify, compare and render.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/compare"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/render"
	"github.com/sells-group/accessviz/internal/runlog"
	"github.com/sells-group/accessviz/internal/travel"
)

// Finder locates matrix files by destination identifier. *matrix.Index
// scans on every call; CatalogFinder answers from a prebuilt catalog.
type Finder interface {
	Find(ctx context.Context, ids []cellid.ID) (*matrix.Result, error)
}

// CatalogFinder adapts a matrix.Catalog to Finder.
type CatalogFinder struct {
	Catalog *matrix.Catalog
}

// Find implements Finder.
func (c CatalogFinder) Find(ctx context.Context, ids []cellid.ID) (*matrix.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Catalog.Find(ids), nil
}

// Options holds per-service defaults.
type Options struct {
	Parse matrix.ParseOptions
	Map   render.MapOptions

	// Classes is the natural breaks class count for static maps.
	Classes int
	// Bins are the user-defined breaks for interactive maps.
	Bins []float64
}

// Service wires the grid, the matrix finder and the output options.
type Service struct {
	grid   *grid.Registry
	finder Finder
	opts   Options
	runs   *runlog.Store // nil disables run history
	now    func() time.Time
}

// New creates a Service. runs may be nil.
func New(reg *grid.Registry, finder Finder, opts Options, runs *runlog.Store) *Service {
	if opts.Classes <= 0 {
		opts.Classes = classify.DefaultClasses
	}
	if len(opts.Bins) == 0 {
		opts.Bins, _ = classify.RangeBins(5, 200, 5)
	}
	return &Service{
		grid:   reg,
		finder: finder,
		opts:   opts,
		runs:   runs,
		now:    time.Now,
	}
}

// Grid returns the loaded grid.
func (s *Service) Grid() *grid.Registry { return s.grid }

// Options returns the service defaults.
func (s *Service) Options() Options { return s.opts }

// Handoff is the joined table for one destination, ready for classification,
// comparison or output.
type Handoff struct {
	Destination cellid.ID
	Path        string
	Table       *access.Table
	Find        *matrix.Result
	Stats       access.Stats
}

// Output describes the files written by one request.
type Output struct {
	Destination cellid.ID         `json:"destination"`
	Files       []string          `json:"files"`
	Legend      string            `json:"legend"`
	Rows        int               `json:"rows"`
	Stats       access.Stats      `json:"stats"`
	Unmatched   []cellid.ID       `json:"unmatched,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Find partitions ids into identifiers with and without a matrix file.
func (s *Service) Find(ctx context.Context, ids []cellid.ID) (*matrix.Result, error) {
	var res *matrix.Result
	err := s.track(ctx, "find", "", idStrings(ids), func(out *runlog.Outcome) error {
		var err error
		res, err = s.finder.Find(ctx, ids)
		if err != nil {
			return err
		}
		out.Matched = len(res.Matched)
		out.Unmatched = idStrings(res.Unmatched)
		return nil
	})
	return res, err
}

// Accessibility finds, parses and joins the matrix file for id. A missing
// file is an IndexError: the request cannot proceed without it.
func (s *Service) Accessibility(ctx context.Context, id cellid.ID) (*Handoff, error) {
	id = cellid.FromString(string(id))
	if id == "" {
		return nil, fault.Configurationf("pipeline: empty cell identifier")
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("id", id.String()))

	res, err := s.finder.Find(ctx, []cellid.ID{id})
	if err != nil {
		return nil, err
	}
	path, ok := res.Path(id)
	if !ok {
		fe := fault.NewIndex(nil, "pipeline: no matrix file for "+id.String())
		fe.IDs = []string{id.String()}
		return nil, fe
	}
	if dups := res.Duplicates[id]; len(dups) > 0 {
		log.Warn("pipeline: duplicate matrix files", zap.String("used", path), zap.Strings("ignored", dups))
	}

	file, err := matrix.ParseFile(ctx, path, s.opts.Parse)
	if err != nil {
		return nil, err
	}
	table, stats, err := access.Join(file, s.grid)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: joined",
		zap.String("path", path),
		zap.Int("rows", stats.Joined),
		zap.Int("dropped_origins", stats.DroppedOrigins),
		zap.Int("unreached_cells", stats.UnreachedCells),
	)

	return &Handoff{
		Destination: id,
		Path:        path,
		Table:       table,
		Find:        res,
		Stats:       stats,
	}, nil
}

// Classified joins id and classifies the map column of mode with scheme.
// The returned table carries the class column named in the result.
func (s *Service) Classified(ctx context.Context, id cellid.ID, mode travel.Mode, scheme classify.Scheme) (*Handoff, classify.Result, error) {
	field, err := travel.MapField(mode)
	if err != nil {
		return nil, classify.Result{}, err
	}
	if err := scheme.Validate(); err != nil {
		return nil, classify.Result{}, err
	}
	h, err := s.Accessibility(ctx, id)
	if err != nil {
		return nil, classify.Result{}, err
	}
	if !h.Table.HasColumn(field) {
		return nil, classify.Result{}, fault.Configurationf("pipeline: matrix %s has no %s column", h.Path, field)
	}
	t, res, err := classify.Classify(h.Table, field, scheme)
	if err != nil {
		return nil, classify.Result{}, err
	}
	h.Table = t
	return h, res, nil
}

// Compared joins id and adds the comparison column for sel.
func (s *Service) Compared(ctx context.Context, id cellid.ID, sel compare.Selection) (*Handoff, compare.Summary, error) {
	if _, _, err := sel.Fields(); err != nil {
		return nil, compare.Summary{}, err
	}
	h, err := s.Accessibility(ctx, id)
	if err != nil {
		return nil, compare.Summary{}, err
	}
	t, sum, err := sel.Apply(h.Table)
	if err != nil {
		return nil, compare.Summary{}, err
	}
	h.Table = t
	return h, sum, nil
}

// Shape writes the joined table for id as accessibility_to_<id>.shp, plus an
// .xlsx copy when xlsx is set.
func (s *Service) Shape(ctx context.Context, id cellid.ID, outDir string, xlsx bool) (*Output, error) {
	var out *Output
	args := []string{"--out", outDir}
	if xlsx {
		args = append(args, "--xlsx")
	}
	err := s.track(ctx, "shape", id.String(), args, func(o *runlog.Outcome) error {
		h, err := s.Accessibility(ctx, id)
		if err != nil {
			return err
		}
		base := filepath.Join(outDir, "accessibility_to_"+h.Destination.String())
		out, err = s.writeShapefile(h, base, xlsx, &render.Legend{})
		if err != nil {
			return err
		}
		fillOutcome(o, out)
		return nil
	})
	return out, err
}

// CreateMap renders the map column of mode for id. Static maps are
// classified with natural breaks into <id>_<mode>.png; interactive maps use
// the user-defined bins and go to <id>_<mode>_interactive.html.
func (s *Service) CreateMap(ctx context.Context, id cellid.ID, mode, outDir, style string) (*Output, error) {
	m, err := travel.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	st, err := ParseStyle(style)
	if err != nil {
		return nil, err
	}

	var out *Output
	err = s.track(ctx, "create-map", id.String(), []string{string(m), "--style", string(st), "--out", outDir}, func(o *runlog.Outcome) error {
		scheme := s.schemeFor(st)
		h, res, err := s.Classified(ctx, id, m, scheme)
		if err != nil {
			return err
		}

		mo := s.opts.Map
		mo.Title = "Travel times to " + h.Destination.String() + " by " + string(m)
		mo.Labels = res.Labels

		name := h.Destination.String() + "_" + string(m)
		var path string
		switch st {
		case Interactive:
			path = filepath.Join(outDir, name+"_interactive.html")
			err = render.InteractiveMap(path, h.Table, res.Label, res.Column, mo)
		default:
			path = filepath.Join(outDir, name+".png")
			err = render.StaticMap(path, h.Table, res.Label, mo)
		}
		if err != nil {
			return err
		}

		out = s.newOutput(h, path)
		legendPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".yaml"
		if err := s.writeLegend(legendPath, h, out, &render.Legend{
			Mode:           string(m),
			Column:         res.Column,
			Classification: &res,
		}); err != nil {
			return err
		}
		fillOutcome(o, out)
		return nil
	})
	return out, err
}

// Compare writes the signed difference between two modes at one metric, or
// two metrics at one mode, as <a>_compared_to_<b>_accessibility_to_<id>.shp.
func (s *Service) Compare(ctx context.Context, id cellid.ID, metrics, modes []string, outDir string) (*Output, error) {
	sel, err := compare.ParseSelection(metrics, modes)
	if err != nil {
		return nil, err
	}

	var out *Output
	args := append(append(append([]string{}, metrics...), modes...), "--out", outDir)
	err = s.track(ctx, "compare", id.String(), args, func(o *runlog.Outcome) error {
		h, sum, err := s.Compared(ctx, id, sel)
		if err != nil {
			return err
		}
		base := filepath.Join(outDir, sel.Name()+"_accessibility_to_"+h.Destination.String())
		out, err = s.writeShapefile(h, base, false, &render.Legend{
			Mode:       sel.Name(),
			Column:     sum.Column,
			Comparison: &sum,
		})
		if err != nil {
			return err
		}
		fillOutcome(o, out)
		return nil
	})
	return out, err
}

func (s *Service) writeShapefile(h *Handoff, base string, xlsx bool, l *render.Legend) (*Output, error) {
	shpPath := base + ".shp"
	fields, err := render.WriteShapefile(shpPath, h.Table, s.grid.SRID())
	if err != nil {
		return nil, err
	}
	out := s.newOutput(h, shpPath)
	out.Fields = fields
	if xlsx {
		xlsxPath := base + ".xlsx"
		if err := render.WriteXLSX(xlsxPath, h.Table); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, xlsxPath)
	}
	l.Fields = fields
	if err := s.writeLegend(base+".yaml", h, out, l); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) newOutput(h *Handoff, path string) *Output {
	return &Output{
		Destination: h.Destination,
		Files:       []string{path},
		Rows:        h.Table.Len(),
		Stats:       h.Stats,
		Unmatched:   h.Find.Unmatched,
	}
}

func (s *Service) writeLegend(path string, h *Handoff, out *Output, l *render.Legend) error {
	l.Destination = h.Destination.String()
	l.Join = h.Stats
	l.Unmatched = idStrings(h.Find.Unmatched)
	l.Outputs = out.Files
	l.CreatedAt = s.now().UTC()
	if err := render.WriteLegend(path, l); err != nil {
		return err
	}
	out.Legend = path
	return nil
}

func (s *Service) schemeFor(st Style) classify.Scheme {
	if st == Interactive {
		return classify.UserDefined{Bins: s.opts.Bins}
	}
	return classify.NaturalBreaks{K: s.opts.Classes}
}

// track records fn in the run history when one is configured. History
// failures are logged and never fail the request.
func (s *Service) track(ctx context.Context, command, cell string, args []string, fn func(*runlog.Outcome) error) error {
	if s.runs == nil {
		return fn(&runlog.Outcome{})
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("command", command))

	run, err := s.runs.Start(ctx, command, cell, args)
	if err != nil {
		log.Warn("pipeline: failed to record run", zap.Error(err))
		return fn(&runlog.Outcome{})
	}

	var out runlog.Outcome
	fnErr := fn(&out)
	if fnErr != nil {
		out.Err = fnErr
		out.ErrorKind = fault.KindOf(fnErr).String()
	}
	// The request context may already be cancelled; the record should still land.
	if err := s.runs.Finish(context.WithoutCancel(ctx), run.ID, out); err != nil {
		log.Warn("pipeline: failed to finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
	return fnErr
}

func fillOutcome(o *runlog.Outcome, out *Output) {
	o.Matched = 1
	o.Unmatched = idStrings(out.Unmatched)
	o.Rows = out.Rows
	o.Outputs = append(append([]string{}, out.Files...), out.Legend)
}

func idStrings(ids []cellid.ID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
