package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/config"
	"github.com/sells-group/accessviz/internal/db"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/render"
	"github.com/sells-group/accessviz/internal/runlog"
)

// SetupOptions tunes Setup.
type SetupOptions struct {
	// Catalog builds an in-memory matrix catalog once instead of scanning
	// the collection on every request.
	Catalog bool
	// Progress is passed to the matrix index.
	Progress func(done, total int)
}

// Setup loads the grid, prepares the matrix index and opens the run log
// described by cfg. Callers must call the returned close func.
func Setup(ctx context.Context, cfg *config.Config, so SetupOptions) (*Service, func(), error) {
	log := zap.L().With(zap.String("component", "pipeline.setup"))

	if err := cfg.Validate(""); err != nil {
		return nil, nil, fault.NewConfiguration(err, "")
	}

	bins, err := classify.RangeBins(cfg.Classify.BreakFrom, cfg.Classify.BreakTo, cfg.Classify.BreakStep)
	if err != nil {
		return nil, nil, err
	}

	reg, err := LoadGrid(ctx, cfg.Grid)
	if err != nil {
		return nil, nil, err
	}
	sum := reg.Summarize()
	log.Info("pipeline: grid loaded",
		zap.String("source", cfg.Grid.Source),
		zap.Int("cells", sum.Cells),
		zap.Int("skipped", sum.Skipped),
	)

	ix, err := NewIndex(cfg.Matrix, so.Progress)
	if err != nil {
		return nil, nil, err
	}
	var finder Finder = ix
	if so.Catalog {
		cat, err := ix.Build(ctx)
		if err != nil {
			return nil, nil, err
		}
		finder = CatalogFinder{Catalog: cat}
	}

	runs, err := OpenRunLog(ctx, cfg.RunLog.Path)
	if err != nil {
		return nil, nil, err
	}

	svc := New(reg, finder, Options{
		Parse: ParseOptions(cfg.Matrix),
		Map: render.MapOptions{
			DPI:          cfg.Output.DPI,
			WidthInches:  cfg.Output.WidthInches,
			HeightInches: cfg.Output.HeightInches,
			AssetsHost:   cfg.Output.AssetsHost,
		},
		Classes: cfg.Classify.Classes,
		Bins:    bins,
	}, runs)

	closeFn := func() {
		if runs != nil {
			if err := runs.Close(); err != nil {
				log.Warn("pipeline: close run log", zap.Error(err))
			}
		}
	}
	return svc, closeFn, nil
}

// LoadGrid reads the base grid from the configured source. PostGIS pools are
// closed once the cells are in memory.
func LoadGrid(ctx context.Context, gc config.GridConfig) (*grid.Registry, error) {
	switch gc.Source {
	case "postgis":
		pool, err := db.Connect(ctx, gc.DatabaseURL, 2)
		if err != nil {
			return nil, fault.NewDataSource(err, "pipeline: connect grid database")
		}
		defer pool.Close()
		return grid.LoadPostGIS(ctx, pool, grid.TableOptions{Table: gc.Table, SRID: gc.SRID})
	case "shapefile", "":
		return grid.LoadShapefile(gc.Path, grid.ShapefileOptions{IDField: gc.IDField, SRID: gc.SRID})
	default:
		return nil, fault.Configurationf("pipeline: unknown grid source %q", gc.Source)
	}
}

// NewIndex builds the matrix index for mc.
func NewIndex(mc config.MatrixConfig, progress func(done, total int)) (*matrix.Index, error) {
	rule, err := matrix.NewRule(mc.IDPattern, mc.IDOffset, mc.IDLength)
	if err != nil {
		return nil, fault.NewConfiguration(err, "")
	}
	return matrix.New(matrix.Options{
		Root:        mc.Root,
		Glob:        mc.Glob,
		Rule:        rule,
		Workers:     mc.Workers,
		FileTimeout: time.Duration(mc.FileTimeoutSecs) * time.Second,
		Progress:    progress,
	})
}

// ParseOptions converts mc to matrix parse options.
func ParseOptions(mc config.MatrixConfig) matrix.ParseOptions {
	po := matrix.DefaultParseOptions()
	if mc.Separator != "" {
		po.Separator = []rune(mc.Separator)[0]
	}
	po.Sentinel = mc.Sentinel
	if mc.NoData != nil {
		po.NoData = mc.NoData
	}
	if mc.OriginField != "" {
		po.OriginField = mc.OriginField
	}
	if mc.DestField != "" {
		po.DestField = mc.DestField
	}
	if mc.FileTimeoutSecs > 0 {
		po.Timeout = time.Duration(mc.FileTimeoutSecs) * time.Second
	}
	return po
}

// OpenRunLog opens and migrates the run history at path. An empty path
// disables the history and returns nil.
func OpenRunLog(ctx context.Context, path string) (*runlog.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := runlog.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "pipeline: migrate run log")
	}
	return st, nil
}
