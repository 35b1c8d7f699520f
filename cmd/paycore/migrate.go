package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/railzwaylabs/paycore/internal/app"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrateTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				return migration.Apply(ctx, conn, cfg.Database.Driver, log.Named("migration"))
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd.Context(), func(ctx context.Context, db *sql.DB, log *zap.Logger) error {
				return migration.Down(ctx, db, steps, log.Named("migration"))
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the applied and embedded schema versions (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd.Context(), func(ctx context.Context, db *sql.DB, _ *zap.Logger) error {
				st, err := migration.Inspect(ctx, db)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

type dbFunc func(ctx context.Context, conn *gorm.DB, cfg config.Config, log *zap.Logger) error

// withDatabase builds only the base graph, so migrations never start the
// gateways or the scheduler.
func withDatabase(parent context.Context, fn dbFunc) error {
	var (
		conn *gorm.DB
		cfg  config.Config
		log  *zap.Logger
	)
	fxApp := fx.New(app.Base, fx.Populate(&conn, &cfg, &log))
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, migrateTimeout)
	defer cancel()
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = fxApp.Stop(context.Background()) }()
	return fn(ctx, conn, cfg, log)
}

func withPostgres(parent context.Context, fn func(ctx context.Context, db *sql.DB, log *zap.Logger) error) error {
	return withDatabase(parent, func(ctx context.Context, conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrate: %s databases are auto-migrated, versioning needs postgres", cfg.Database.Driver)
		}
		db, err := conn.DB()
		if err != nil {
			return err
		}
		return fn(ctx, db, log)
	})
}
