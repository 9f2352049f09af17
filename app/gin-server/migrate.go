package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yoockh/voiceinterview/config"
	"github.com/yoockh/voiceinterview/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema and Mongo indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)

			if cfg.PostgresURI == "" {
				return fmt.Errorf("POSTGRES_URI is required for migrate")
			}
			if err := config.InitPostgres(cfg.PostgresURI); err != nil {
				return fmt.Errorf("postgres init: %w", err)
			}
			if err := config.Migrate(config.PostgresDB); err != nil {
				return fmt.Errorf("postgres migrate: %w", err)
			}
			log.Info("postgres schema up to date")

			if cfg.MongoURI != "" {
				if err := config.InitMongo(cfg); err != nil {
					return fmt.Errorf("mongo init: %w", err)
				}
				if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
					return fmt.Errorf("mongo indexes: %w", err)
				}
				log.Info("mongo indexes ensured")
			}
			return nil
		},
	}
}
