package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/gateway"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/security/vault"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	"github.com/railzwaylabs/paycore/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultEventLimit = 100
	secretBytes       = 32
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Gateways      *gateway.Set
	Parsers       gateway.EventParsers
	Vault         vault.Provider
	Ledger        ledgerdomain.Service
	Subscriptions subscriptiondomain.Service
	Clock         clock.Clock
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          domain.Repository
	genID         *snowflake.Node
	gateways      *gateway.Set
	parsers       gateway.EventParsers
	vault         vault.Provider
	ledger        ledgerdomain.Service
	subscriptions subscriptiondomain.Service
	clock         clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		repo:          p.Repo,
		genID:         p.GenID,
		gateways:      p.Gateways,
		parsers:       p.Parsers,
		vault:         p.Vault,
		ledger:        p.Ledger,
		subscriptions: p.Subscriptions,
		clock:         p.Clock,
	}
}

func (s *Service) CreateSubscription(ctx context.Context, req domain.CreateRequest) (*domain.Subscription, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Secret = strings.TrimSpace(req.Secret)
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	gw, err := s.gateway(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Secret == "" {
		if req.Secret, err = newSecret(); err != nil {
			return nil, err
		}
	}
	sealed, err := vault.SealString(s.vault, req.Secret)
	if err != nil {
		return nil, err
	}

	hook, err := gw.CreateWebhook(ctx, gateway.WebhookInput{URL: req.URL, Secret: req.Secret, Events: req.Events})
	if err != nil {
		return nil, err
	}
	// Stripe generates its own signing secret.
	if hook.Secret != "" && hook.Secret != req.Secret {
		if sealed, err = vault.SealString(s.vault, hook.Secret); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now(ctx)
	item := &domain.Subscription{
		ID:                s.genID.Generate(),
		Provider:          gw.Provider(),
		ExternalWebhookID: hook.ID,
		URL:               req.URL,
		SealedSecret:      sealed,
		Paused:            hook.Paused,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateSubscription(ctx, s.db, item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("webhook_subscription", "webhook "+hook.ID+" is already registered")
		}
		s.log.Error("processor webhook has no local record",
			zap.String("provider", item.Provider),
			zap.String("external_webhook_id", hook.ID),
			zap.Error(err),
		)
		return nil, err
	}
	return item, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, provider string) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptions(ctx, s.db, strings.ToLower(strings.TrimSpace(provider)))
}

func (s *Service) SetPaused(ctx context.Context, id string, paused bool) (*domain.Subscription, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Paused == paused {
		return item, nil
	}
	gw, err := s.gateways.For(item.Provider)
	if err != nil {
		return nil, err
	}
	if _, err := gw.UpdateWebhook(ctx, item.ExternalWebhookID, gateway.WebhookUpdateInput{Paused: paused}); err != nil {
		return nil, err
	}
	item.Paused = paused
	item.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateSubscriptionPaused(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteSubscription removes the processor endpoint first. An endpoint the
// processor no longer knows is removed locally all the same.
func (s *Service) DeleteSubscription(ctx context.Context, id string) error {
	item, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	gw, err := s.gateways.For(item.Provider)
	if err != nil {
		return err
	}
	if err := gw.DeleteWebhook(ctx, item.ExternalWebhookID); err != nil && !apperr.IsProviderNotFound(err) {
		return err
	}
	return s.repo.DeleteSubscription(ctx, s.db, item.ID)
}

func (s *Service) ListEvents(ctx context.Context, provider string, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > defaultEventLimit {
		limit = defaultEventLimit
	}
	return s.repo.ListEvents(ctx, s.db, strings.ToLower(strings.TrimSpace(provider)), limit)
}

func (s *Service) EventPayload(ctx context.Context, id string) ([]byte, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindEventByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("webhook_event", id)
	}
	return snappy.Decode(nil, item.Payload)
}

func (s *Service) gateway(provider string) (gateway.Gateway, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return s.gateways.Default, nil
	}
	gw, err := s.gateways.For(provider)
	if err != nil {
		return nil, apperr.Invalid("provider", err.Error())
	}
	return gw, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Subscription, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindSubscriptionByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("webhook_subscription", id)
	}
	return item, nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func parseID(field, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.Invalid(field, "malformed")
	}
	return id, nil
}

func headerMap(headers http.Header) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k := range headers {
		out[k] = headers.Get(k)
	}
	return out
}
