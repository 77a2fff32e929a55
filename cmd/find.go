package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/matrix"
)

var findCmd = &cobra.Command{
	Use:   "find <id>...",
	Short: "Locate the travel time matrix files for grid cells",
	Long:  "Scans the matrix collection once and prints the file for every requested cell. Cells without a file are listed, not treated as errors.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		progress, _ := cmd.Flags().GetBool("progress")
		asJSON, _ := cmd.Flags().GetBool("json")

		svc, closeFn, err := initService(ctx, false, progress)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := svc.Find(ctx, cellid.Parse(args))
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		formatFindResult(os.Stdout, res)
		return nil
	},
}

func init() {
	findCmd.Flags().Bool("progress", false, "report scan progress on stderr")
	findCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(findCmd)
}

// formatFindResult writes one line per requested cell, in request order.
func formatFindResult(out io.Writer, res *matrix.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE")
	_, _ = fmt.Fprintln(w, "--\t----")
	for _, id := range res.Requested {
		path, ok := res.Path(id)
		if !ok {
			path = "(not found)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, path)
		for _, dup := range res.Duplicates[id] {
			_, _ = fmt.Fprintf(w, "\t%s (duplicate, ignored)\n", dup)
		}
	}
	_ = w.Flush()

	_, _ = printer.Fprintf(out, "%d of %d cells matched, %d files scanned\n",
		len(res.Matched), len(res.Requested), res.Scanned)
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(out, "skipped %s: %s\n", s.Path, s.Reason)
	}
}
