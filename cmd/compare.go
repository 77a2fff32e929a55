package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/compare"
	"github.com/sells-group/accessviz/internal/travel"
)

var compareCmd = &cobra.Command{
	Use:   "compare <id> <metric> <mode> <mode> | compare <id> <metric> <metric> <mode>",
	Short: "Compare two travel modes, or two metrics of one mode, for a cell",
	Long: "Writes the signed difference A - B as a shapefile, e.g.\n" +
		"  accessviz compare 5989964 time car public\n" +
		"  accessviz compare 5989964 time distance walk",
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outDir, _ := cmd.Flags().GetString("out")

		metrics, modes := splitSelection(args[1:])
		if _, err := compare.ParseSelection(metrics, modes); err != nil {
			return err
		}

		svc, closeFn, err := initService(ctx, false, false)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Compare(ctx, cellid.FromString(args[0]), metrics, modes, outputDir(outDir))
		if err != nil {
			return err
		}
		formatOutput(os.Stdout, out)
		return nil
	},
}

func init() {
	compareCmd.Flags().String("out", "", "output directory (default from config)")
	rootCmd.AddCommand(compareCmd)
}

// splitSelection sorts positional words into metrics and modes, keeping
// their order. Words that are neither are treated as modes so the mode
// parser reports them.
func splitSelection(words []string) (metrics, modes []string) {
	for _, w := range words {
		if _, err := travel.ParseMetric(w); err == nil {
			metrics = append(metrics, w)
			continue
		}
		modes = append(modes, w)
	}
	return metrics, modes
}
