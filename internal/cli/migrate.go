package cli

import (
	"context"
	"errors"
	"log/slog"

	"quiz-eval-service/internal/config"
	pgstore "quiz-eval-service/internal/infra/postgres"
	pgmigrations "quiz-eval-service/internal/infra/postgres/migrations"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			if rollback {
				return rollbackMigrations(cmd.Context(), cfg, log)
			}
			return runMigrationsWithConfig(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	return cmd
}

func newMigrator(cfg config.Config) (*migrate.Migrator, func() error, error) {
	if cfg.Postgres.URL == "" {
		return nil, nil, errors.New("postgres url not configured")
	}
	db := pgstore.OpenDB(cfg.Postgres.URL)
	return migrate.NewMigrator(db, pgmigrations.Migrations), db.Close, nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	migrator, closeDB, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("database schema up to date")
		return nil
	}
	log.Info("migrations applied", "group", group.String())
	return nil
}

func rollbackMigrations(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	migrator, closeDB, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return err
	}
	log.Info("migrations rolled back", "group", group.String())
	return nil
}
