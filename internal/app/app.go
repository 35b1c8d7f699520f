// Package app composes the fx modules shared by the paycore binaries.
package app

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/billingidentity"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/fee"
	"github.com/railzwaylabs/paycore/internal/fundingsource"
	"github.com/railzwaylabs/paycore/internal/installment"
	"github.com/railzwaylabs/paycore/internal/ledger"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/internal/observability"
	"github.com/railzwaylabs/paycore/internal/plan"
	"github.com/railzwaylabs/paycore/internal/providers"
	"github.com/railzwaylabs/paycore/internal/redis"
	"github.com/railzwaylabs/paycore/internal/security/vault"
	"github.com/railzwaylabs/paycore/internal/subscription"
	"github.com/railzwaylabs/paycore/internal/webhook"
	"github.com/railzwaylabs/paycore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Base is configuration, logging and the database.
var Base = fx.Options(
	config.Module,
	observability.Module,
	db.Module,
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	}),
)

// Core adds every domain service and its infrastructure.
var Core = fx.Options(
	Base,
	fx.Provide(NewSnowflake),
	clock.Module,
	redis.Module,
	locker.Module,
	vault.Module,
	providers.Module,

	billingidentity.Module,
	fundingsource.Module,
	ledger.Module,
	fee.Module,
	plan.Module,
	installment.Module,
	subscription.Module,
	webhook.Module,
)

func NewSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
