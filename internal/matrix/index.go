// Package matrix locates and parses travel time matrix files.
//
// The collection is a directory tree with one delimited text file per
// destination cell, e.g. 5989xxx/travel_times_to_ 5989964.txt. There is no
// index on disk; files are found by extracting the identifier embedded in
// each file name.
package matrix

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

// Options configures an Index.
type Options struct {
	Root        string // collection root directory
	Glob        string // pattern relative to Root, default "*/*"
	Rule        Rule
	Workers     int           // default runtime.NumCPU()
	FileTimeout time.Duration // per-file readability probe, default 30s

	// Progress, when set, is called after each scanned file. Calls are serialized.
	Progress func(done, total int)

	// Open opens a matched file for the readability probe. Default os.Open.
	Open func(path string) (io.ReadCloser, error)
}

// Skipped is a file left out of a scan.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result partitions the requested identifiers into matched and unmatched.
type Result struct {
	Requested  []cellid.ID            `json:"requested"`
	Matched    map[cellid.ID]string   `json:"matched"`
	Unmatched  []cellid.ID            `json:"unmatched"`
	Duplicates map[cellid.ID][]string `json:"duplicates,omitempty"`
	Skipped    []Skipped              `json:"skipped,omitempty"`
	Scanned    int                    `json:"scanned"`
}

// Path returns the file matched for id.
func (r *Result) Path(id cellid.ID) (string, bool) {
	p, ok := r.Matched[id]
	return p, ok
}

// MatchedIDs returns matched identifiers in request order.
func (r *Result) MatchedIDs() []cellid.ID {
	out := make([]cellid.ID, 0, len(r.Matched))
	for _, id := range r.Requested {
		if _, ok := r.Matched[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Index scans a matrix file collection on every call.
type Index struct {
	opts Options
}

// New creates an Index.
func New(opts Options) (*Index, error) {
	if opts.Rule == nil {
		return nil, fault.Configurationf("matrix: filename rule is required")
	}
	if opts.Glob == "" {
		opts.Glob = "*/*"
	}
	if _, err := filepath.Match(opts.Glob, ""); err != nil {
		return nil, fault.NewConfiguration(err, "matrix: invalid glob "+opts.Glob)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = 30 * time.Second
	}
	if opts.Open == nil {
		opts.Open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	return &Index{opts: opts}, nil
}

// Find scans the collection once and matches every file against ids.
// Identifiers without a readable file are listed in Result.Unmatched; that
// is a partial result, not an error. Find fails only when the collection
// itself cannot be enumerated or is empty.
func (ix *Index) Find(ctx context.Context, ids []cellid.ID) (*Result, error) {
	log := zap.L().With(zap.String("component", "matrix.index"))

	requested := dedupe(ids)
	want := cellid.NewSet(requested...)

	paths, skipped, err := ix.enumerate(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		hits = make(map[cellid.ID][]string)
		done int
	)
	every := rate.Sometimes{Interval: 2 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)

	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			id, ok := ix.opts.Rule.Extract(p)
			var probeErr error
			if ok && want.Has(id) {
				probeErr = ix.probe(gctx, p)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case !ok || !want.Has(id):
			case probeErr != nil:
				log.Warn("matrix: skipping unreadable file", zap.String("path", p), zap.Error(probeErr))
				skipped = append(skipped, Skipped{Path: p, Reason: probeErr.Error()})
			default:
				log.Debug("matrix: id found", zap.String("id", id.String()), zap.String("path", p))
				hits[id] = append(hits[id], p)
			}
			done++
			if ix.opts.Progress != nil {
				ix.opts.Progress(done, len(paths))
			}
			every.Do(func() {
				log.Info("matrix: scanning", zap.Int("done", done), zap.Int("total", len(paths)))
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "matrix: scan")
	}

	res := assemble(requested, hits, skipped, len(paths))
	if len(res.Unmatched) > 0 {
		log.Warn("matrix: identifiers not found", zap.Strings("ids", idStrings(res.Unmatched)))
	}
	return res, nil
}

// Build scans the collection once and returns an in-memory catalog. Every
// file carrying an identifier is probed the way Find probes matched files,
// so a catalog answers exactly as a scan made at build time would.
func (ix *Index) Build(ctx context.Context) (*Catalog, error) {
	log := zap.L().With(zap.String("component", "matrix.index"))

	paths, skipped, err := ix.enumerate(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		files      = make(map[cellid.ID][]string)
		unreadable = make(map[cellid.ID][]Skipped)
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, ok := ix.opts.Rule.Extract(p)
			var probeErr error
			if ok {
				probeErr = ix.probe(gctx, p)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case !ok:
			case probeErr != nil:
				log.Warn("matrix: unreadable file left out of catalog", zap.String("path", p), zap.Error(probeErr))
				unreadable[id] = append(unreadable[id], Skipped{Path: p, Reason: probeErr.Error()})
			default:
				files[id] = append(files[id], p)
			}
			done++
			if ix.opts.Progress != nil {
				ix.opts.Progress(done, len(paths))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "matrix: build catalog")
	}

	for id := range files {
		sort.Strings(files[id])
	}

	log.Info("matrix: catalog built",
		zap.Int("files", len(paths)),
		zap.Int("ids", len(files)),
		zap.Int("unreadable", len(unreadable)),
	)

	return &Catalog{files: files, unreadable: unreadable, skipped: skipped, scanned: len(paths)}, nil
}

// enumerate lists the regular files matching the glob, sorted. Symbolic
// links are followed, both for the root and for entries below it.
// Unreadable subdirectories and dangling links are skipped with a warning.
func (ix *Index) enumerate(ctx context.Context) ([]string, []Skipped, error) {
	root := ix.opts.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fault.NewIndex(err, "matrix: stat collection root")
	}
	if !info.IsDir() {
		return nil, nil, fault.NewIndex(nil, "matrix: collection root is not a directory: "+root)
	}

	glob := filepath.ToSlash(ix.opts.Glob)
	w := &walker{ctx: ctx, parts: strings.Split(glob, "/")}
	if err := w.walk(root, 1); err != nil {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(err, "matrix: enumerate")
		}
		return nil, nil, fault.NewIndex(err, "matrix: enumerate collection")
	}
	if len(w.paths) == 0 {
		return nil, nil, fault.NewIndex(nil, "matrix: no files match "+glob+" under "+root)
	}

	sort.Strings(w.paths)
	return w.paths, w.skipped, nil
}

// walker descends exactly as many directory levels as the glob has parts.
type walker struct {
	ctx     context.Context
	parts   []string
	paths   []string
	skipped []Skipped
}

// walk lists dir, level directories below the root. Entries at the last
// level are candidate files, entries above it are directories to descend into.
func (w *walker) walk(dir string, level int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	last := level == len(w.parts)

	for _, e := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if ok, _ := filepath.Match(w.parts[level-1], e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())

		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				w.skip(path, err)
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case last && mode.IsRegular():
			w.paths = append(w.paths, path)
		case !last && mode.IsDir():
			if err := w.walk(path, level+1); err != nil {
				if w.ctx.Err() != nil {
					return err
				}
				w.skip(path, err)
			}
		}
	}
	return nil
}

func (w *walker) skip(path string, err error) {
	zap.L().Warn("matrix: skipping unreadable entry",
		zap.String("component", "matrix.index"),
		zap.String("path", path),
		zap.Error(err),
	)
	w.skipped = append(w.skipped, Skipped{Path: path, Reason: err.Error()})
}

// probe checks that path can be opened and read within the file timeout.
func (ix *Index) probe(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, ix.opts.FileTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		f, err := ix.opts.Open(path)
		if err != nil {
			done <- err
			return
		}
		defer f.Close() //nolint:errcheck
		buf := make([]byte, 1)
		_, err = f.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			done <- err
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "probe timed out")
	}
}

// assemble builds a Result in request order. When several files carry the
// same identifier the lexicographically smallest path wins.
func assemble(requested []cellid.ID, hits map[cellid.ID][]string, skipped []Skipped, scanned int) *Result {
	res := &Result{
		Requested: requested,
		Matched:   make(map[cellid.ID]string, len(hits)),
		Unmatched: []cellid.ID{},
		Scanned:   scanned,
	}
	for _, id := range requested {
		paths := append([]string(nil), hits[id]...)
		if len(paths) == 0 {
			res.Unmatched = append(res.Unmatched, id)
			continue
		}
		sort.Strings(paths)
		res.Matched[id] = paths[0]
		if len(paths) > 1 {
			if res.Duplicates == nil {
				res.Duplicates = make(map[cellid.ID][]string)
			}
			res.Duplicates[id] = paths[1:]
		}
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	res.Skipped = skipped
	return res
}

func dedupe(ids []cellid.ID) []cellid.ID {
	seen := make(cellid.Set, len(ids))
	out := make([]cellid.ID, 0, len(ids))
	for _, id := range ids {
		id = cellid.FromString(string(id))
		if id == "" || seen.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func idStrings(ids []cellid.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
