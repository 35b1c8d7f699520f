package providers

import (
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/dwolla"
	"github.com/railzwaylabs/paycore/internal/gateway/helcim"
	"github.com/railzwaylabs/paycore/internal/gateway/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the processor variants. Variants are built once at start from
// the payment configuration.
var Module = fx.Module("providers",
	fx.Provide(NewRegistry),
	fx.Provide(NewGatewaySet),
	fx.Provide(NewEventParsers),
)

func NewRegistry() *gateway.Registry {
	return gateway.NewRegistry(
		dwolla.NewFactory(),
		stripe.NewFactory(),
		helcim.NewFactory(),
	)
}

func NewGatewaySet(cfg config.Config, registry *gateway.Registry, log *zap.Logger) (*gateway.Set, error) {
	set, err := gateway.NewSet(cfg.Payment, registry, func(g gateway.Gateway) gateway.Gateway {
		return gateway.Instrument(g, cfg.Payment)
	})
	if err != nil {
		return nil, err
	}
	log.Named("providers").Info("payment gateways ready",
		zap.String("default", set.Default.Provider()),
		zap.String("subscription", set.Subscription.Provider()),
		zap.String("single_payment", set.SinglePayment.Provider()),
	)
	return set, nil
}

func NewEventParsers(cfg config.Config) gateway.EventParsers {
	return gateway.NewEventParsers(
		dwolla.NewEventParser(),
		stripe.NewEventParser(cfg.Payment.Stripe.WebhookSecret),
	)
}
