package migration

import (
	"context"

	"github.com/railzwaylabs/paycore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the schema on start. The serve command leaves it out and
// expects `paycore migrate up` to have run.
var Module = fx.Module("migration",
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, log *zap.Logger) {
		log = log.Named("migration")
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Apply(ctx, conn, cfg.Database.Driver, log)
			},
		})
	}),
)

// Apply runs the SQL migrations on postgres and AutoMigrate elsewhere.
func Apply(ctx context.Context, conn *gorm.DB, driver string, log *zap.Logger) error {
	if driver != "postgres" {
		log.Info("using model auto-migration", zap.String("driver", driver))
		return AutoMigrate(ctx, conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return Up(ctx, sqlDB, log)
}
