package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/vine/internal/repositories/catalogentity"
	"github.com/Ramsey-B/vine/pkg/catalog"
)

var importCatalogCmd = &cobra.Command{
	Use:   "import-catalog [seed file]",
	Short: "Upsert the canonical entities of a seed file into Postgres",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, flush, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer flush()
		ctx := cmd.Context()

		entities, err := catalog.FileProvider{Path: args[0]}.LoadEntities(ctx)
		if err != nil {
			return err
		}

		db, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := catalogentity.NewRepository(db, logger)
		for _, e := range entities {
			if _, err := repo.Upsert(ctx, e); err != nil {
				return err
			}
		}

		logger.WithField("entities", len(entities)).Info("Catalog imported; running matchers pick it up on their next refresh")
		return nil
	},
}
