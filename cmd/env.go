package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sells-group/accessviz/internal/pipeline"
)

// initService loads the grid and opens the matrix index and run log from
// cfg. Callers must call the returned close func.
func initService(ctx context.Context, catalog, progress bool) (*pipeline.Service, func(), error) {
	so := pipeline.SetupOptions{Catalog: catalog}
	if progress {
		so.Progress = func(done, total int) {
			if done == total || done%500 == 0 {
				printer.Fprintf(os.Stderr, "\rscanned %d/%d files", done, total)
			}
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	return pipeline.Setup(ctx, cfg, so)
}
