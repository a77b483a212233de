package main

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/vine/config"
	"github.com/Ramsey-B/vine/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, flush, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer flush()

		db, err := connectDatabase(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		logger.Info("Migrations applied")
		return nil
	},
}

func newMigrationService(cfg *config.Config, logger ectologger.Logger) *database.MigrationService {
	return database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
}

// connectDatabase opens the configured database and brings its schema up to date.
func connectDatabase(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	raw, err := database.Connect(ctx, logger, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := newMigrationService(cfg, logger).MigratePostgres(raw, cfg.DatabaseName); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return database.NewDatabaseInstance(raw, logger), nil
}
