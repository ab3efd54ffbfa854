package main

import (
	"fmt"
	"os"
	"path/filepath"

	"arena-indexer/internal/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var sqlFiles []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema, then apply optional SQL files",
		Long: `Runs the schema auto-migration for every indexed model. SQL files passed
with --sql are applied afterwards, in order, each in its own statement batch.

Examples:
  arena-indexer migrate
  arena-indexer migrate --sql migrations/010_backfill_volume.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Connect(cfg, log); err != nil {
				return err
			}
			db := database.GetDB()
			if err := database.AutoMigrate(db, log); err != nil {
				return err
			}

			for _, path := range sqlFiles {
				sqlBytes, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read migration file: %w", err)
				}
				log.WithField("file", filepath.Base(path)).Info("Applying migration")
				if err := db.Exec(string(sqlBytes)).Error; err != nil {
					return fmt.Errorf("failed to apply %s: %w", path, err)
				}
			}

			log.Info("Migrations applied successfully")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sqlFiles, "sql", nil, "SQL migration files to apply after auto-migration")
	return cmd
}
