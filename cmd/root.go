package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/power-saver/power-saver/saver"
)

var (
	logLevel   string // Log verbosity level
	configPath string // YAML engine configuration (empty = built-in defaults)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "power-saver",
	Short: "Screen-off CPU frequency and bandwidth policy engine",
}

// setupLogging applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig reads --config, falling back to the built-in defaults.
func loadConfig() *saver.Config {
	if configPath == "" {
		cfg := saver.DefaultConfig()
		return &cfg
	}
	cfg, err := saver.LoadConfig(configPath)
	if err != nil {
		logrus.Fatalf("unable to load config: %v", err)
	}
	return cfg
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML engine configuration")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(validateCmd)
}
