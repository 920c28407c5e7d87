package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartpresence/attendance-service/internal/config"
	"github.com/smartpresence/attendance-service/pkg"
)

// nolint: gochecknoglobals
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or updates the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := newLogger(cfg)

		// InitDatabase migrates on its own when DB_AUTO_MIGRATE is set
		cfg.DBAutoMigrate = false
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()

		if err := pkg.AutoMigrate(db); err != nil {
			return err
		}

		logger.Info("Database schema is up to date")
		return nil
	},
}
