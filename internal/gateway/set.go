package gateway

import (
	"fmt"

	"github.com/railzwaylabs/paycore/internal/config"
)

// Set holds the processor variants resolved once at start.
type Set struct {
	// Default serves identities, funding sources and transfers.
	Default Gateway
	// Subscription serves recurring billing.
	Subscription Gateway
	// SinglePayment serves one-off payments.
	SinglePayment Gateway

	byName map[string]Gateway
}

// NewSet builds every configured provider exactly once. wrap decorates each
// built variant, typically with Instrument.
func NewSet(cfg config.PaymentConfig, registry *Registry, wrap func(Gateway) Gateway) (*Set, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("%w: payment provider is required", ErrInvalidConfig)
	}
	byName := map[string]Gateway{}
	for _, name := range cfg.Providers() {
		gw, err := registry.Build(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s gateway: %w", name, err)
		}
		if wrap != nil {
			gw = wrap(gw)
		}
		byName[name] = gw
	}
	return NewStaticSet(byName, cfg.Provider, cfg.SubscriptionProvider, cfg.SinglePaymentProvider)
}

// NewStaticSet assembles a Set from already built gateways.
func NewStaticSet(byName map[string]Gateway, def, subscription, single string) (*Set, error) {
	s := &Set{byName: byName}
	var err error
	if s.Default, err = s.For(def); err != nil {
		return nil, err
	}
	if subscription == "" {
		subscription = def
	}
	if s.Subscription, err = s.For(subscription); err != nil {
		return nil, err
	}
	if single == "" {
		single = def
	}
	if s.SinglePayment, err = s.For(single); err != nil {
		return nil, err
	}
	return s, nil
}

// For returns the gateway built for provider. Records persisted under a
// provider that is no longer configured cannot be served.
func (s *Set) For(provider string) (Gateway, error) {
	gw, ok := s.byName[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrUnknownProvider, provider)
	}
	return gw, nil
}

func (s *Set) All() []Gateway {
	out := make([]Gateway, 0, len(s.byName))
	for _, gw := range s.byName {
		out = append(out, gw)
	}
	return out
}
