package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/accessviz/internal/cellid"
)

var shapeCmd = &cobra.Command{
	Use:   "shape <id>",
	Short: "Write the accessibility table for a cell as a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outDir, _ := cmd.Flags().GetString("out")
		xlsx, _ := cmd.Flags().GetBool("xlsx")

		svc, closeFn, err := initService(ctx, false, false)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Shape(ctx, cellid.FromString(args[0]), outputDir(outDir), xlsx)
		if err != nil {
			return err
		}
		formatOutput(os.Stdout, out)
		return nil
	},
}

func init() {
	shapeCmd.Flags().String("out", "", "output directory (default from config)")
	shapeCmd.Flags().Bool("xlsx", false, "also write an .xlsx table")
	rootCmd.AddCommand(shapeCmd)
}

// outputDir falls back to the configured output directory.
func outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.Output.Dir != "" {
		return cfg.Output.Dir
	}
	return "."
}
