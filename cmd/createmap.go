package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/pipeline"
	"github.com/sells-group/accessviz/internal/travel"
)

var createMapCmd = &cobra.Command{
	Use:     "create-map <id> <mode>",
	Aliases: []string{"create_map"},
	Short:   "Render a static or interactive travel time map for a cell",
	Long:    "Modes: car, public, walk. Static maps use natural breaks; interactive maps use the configured user-defined breaks.",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outDir, _ := cmd.Flags().GetString("out")
		style, _ := cmd.Flags().GetString("style")

		// Reject bad arguments before loading anything.
		if _, err := travel.ParseMode(args[1]); err != nil {
			return err
		}
		if _, err := pipeline.ParseStyle(style); err != nil {
			return err
		}

		svc, closeFn, err := initService(ctx, false, false)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.CreateMap(ctx, cellid.FromString(args[0]), args[1], outputDir(outDir), style)
		if err != nil {
			return err
		}
		formatOutput(os.Stdout, out)
		return nil
	},
}

func init() {
	createMapCmd.Flags().String("out", "", "output directory (default from config)")
	createMapCmd.Flags().String("style", "static", "map style: static or interactive")
	rootCmd.AddCommand(createMapCmd)
}
