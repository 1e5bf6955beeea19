package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"classroom-activity-service/internal/config"
	pgmigrations "classroom-activity-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations. `migrate status` reports
// applied and pending migrations without touching the schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return withMigrator(cmd.Context(), cfg, applyMigrations)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return withMigrator(cmd.Context(), cfg, reportStatus)
		},
	})
	return cmd
}

func withMigrator(ctx context.Context, cfg config.Config, run func(context.Context, *migrate.Migrator) error) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	return run(ctx, migrator)
}

func applyMigrations(ctx context.Context, migrator *migrate.Migrator) error {
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("database is up to date")
		return nil
	}
	log.Printf("applied migration group %s", group)
	return nil
}

func reportStatus(ctx context.Context, migrator *migrate.Migrator) error {
	status, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}
	log.Printf("applied: %s", status.Applied())
	log.Printf("pending: %s", status.Unapplied())
	return nil
}
