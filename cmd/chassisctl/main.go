package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chassis-controller/internal/config"
)

var (
	// Shared flags
	configPath string
	logLevel   string

	// run flags
	routinePath string
	plot        bool
	plotPath    bool
	csvPath     string
	serve       bool
	plotWidth   int
)

// main registers the commands and exits with status 1 when one fails.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "chassisctl",
		Short:        "differential drive motion control on a simulated robot",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (yaml); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an autonomous routine against the simulated robot",
		RunE:  runRoutine,
	}
	runCmd.Flags().StringVar(&routinePath, "routine", "", "routine file path (yaml)")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot heading and output traces")
	runCmd.Flags().BoolVar(&plotPath, "path", false, "plot the x and y position traces")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "write the per-tick trace to this csv file")
	runCmd.Flags().BoolVar(&serve, "serve", false, "keep serving /metrics and /health until interrupted")
	runCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width in columns")
	_ = runCmd.MarkFlagRequired("routine")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check the configuration, gain stability and an optional routine",
		RunE:  validate,
	}
	validateCmd.Flags().StringVar(&routinePath, "routine", "", "routine file path (yaml)")

	rootCmd.AddCommand(runCmd, validateCmd)
	return rootCmd
}

// loadConfig reads the config file, or the defaults when none is given, and applies
// the log level override.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return cfg, nil
}
