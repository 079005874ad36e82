package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/power-saver/power-saver/saver"
)

// validateCmd checks a configuration file and prints the effective policy
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the engine configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ramping step delay: %s\n", cfg.RampingStepDelay())
		for _, cl := range saver.Clusters {
			cc := cfg.Cluster(cl)
			fmt.Fprintf(out, "%-6s cpus=%v min=%d max=%d max_streaming=%d\n", cl, cc.CPUs, cc.MinFreq, cc.MaxFreq, cc.MaxFreqStreaming)
		}
		for _, cat := range saver.Categories {
			cc := cfg.Category(cat)
			fmt.Fprintf(out, "%-12s floor_normal=%d floor_streaming=%d\n", cat, cc.FloorNormal, cc.FloorStreaming)
		}
	},
}
