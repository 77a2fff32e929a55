package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/accessviz/internal/config"
	"github.com/sells-group/accessviz/internal/fault"
)

var cfg *config.Config

// printer formats counts with digit grouping.
var printer = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "accessviz",
	Short: "Travel time accessibility maps for the Helsinki region grid",
	Long: "Finds travel time matrix files by destination grid cell, joins them onto the YKR grid, " +
		"and writes shapefiles, static and interactive maps, and mode comparisons.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fault.NewConfiguration(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fault.NewConfiguration(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(fault.ExitCode(err))
	}
}
