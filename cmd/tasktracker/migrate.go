package main

import (
	"tasktracker/pkg/config"
	"tasktracker/pkg/db"
	"tasktracker/pkg/logger"
	"tasktracker/services/task"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app := fx.New(
		supplyConfigPath(),
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(task.Migrate),
		fxLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}

	zap.L().Info("schema is up to date")
	return nil
}
