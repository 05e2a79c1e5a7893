package main

import (
	"tasktracker/pkg/config"
	"tasktracker/pkg/db"
	"tasktracker/pkg/gen"
	"tasktracker/pkg/httpapi"
	"tasktracker/pkg/logger"
	"tasktracker/pkg/otelcol"
	"tasktracker/pkg/redis"
	"tasktracker/pkg/server"
	"tasktracker/services/task"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Task API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveOptions() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		otelcol.Module,
		httpapi.Module,
		task.Module,
		task.Gateway,
		server.ProvideHTTPServer,
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(supplyConfigPath(), serveOptions(), fxLogger)
	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}
