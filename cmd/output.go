package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sells-group/accessviz/internal/pipeline"
)

// formatOutput reports the files a request wrote.
func formatOutput(out io.Writer, o *pipeline.Output) {
	for _, f := range o.Files {
		_, _ = fmt.Fprintln(out, "wrote", f)
	}
	if o.Legend != "" {
		_, _ = fmt.Fprintln(out, "wrote", o.Legend)
	}
	_, _ = printer.Fprintf(out, "%d cells joined, %d matrix rows outside the grid, %d grid cells without a record\n",
		o.Rows, o.Stats.DroppedOrigins, o.Stats.UnreachedCells)
	if len(o.Unmatched) > 0 {
		ids := make([]string, len(o.Unmatched))
		for i, id := range o.Unmatched {
			ids[i] = id.String()
		}
		_, _ = fmt.Fprintln(out, "unmatched:", strings.Join(ids, ", "))
	}
}
