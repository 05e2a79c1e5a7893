// Package main runs the task tracker service.
package main

import (
	"os"

	"tasktracker/pkg/config"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "tasktracker",
	Short:        "Personal task tracker service",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a yaml config file (default ./config.yaml when present)")
}

func supplyConfigPath() fx.Option {
	return fx.Supply(config.Path(configPath))
}

// fxLogger silences fx's own event log. Requesting the zap logger here makes
// fx build it first, so the zap globals are installed before any other constructor runs.
var fxLogger = fx.WithLogger(func(*zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
