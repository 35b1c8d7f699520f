package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/locker"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Identities     identitydomain.Service
	FundingSources fundingdomain.Service
	Gateways       *gateway.Set
	Locker         locker.Locker
	Clock          clock.Clock
	Config         config.Config
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	repo           domain.Repository
	genID          *snowflake.Node
	identities     identitydomain.Service
	fundingSources fundingdomain.Service
	gateways       *gateway.Set
	locker         locker.Locker
	clock          clock.Clock
	cfg            config.LedgerConfig
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("ledger.service"),
		repo:           p.Repo,
		genID:          p.GenID,
		identities:     p.Identities,
		fundingSources: p.FundingSources,
		gateways:       p.Gateways,
		locker:         p.Locker,
		clock:          p.Clock,
		cfg:            p.Config.Ledger,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindTransactionByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("transaction", id)
	}
	return item, nil
}

func (s *Service) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Transaction, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, apperr.Invalid("correlation_id", "required")
	}
	item, err := s.repo.FindByCorrelationID(ctx, s.db, correlationID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("transaction", correlationID)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	for field, value := range map[string]string{
		"source_identity_id":      filter.SourceIdentityID,
		"destination_identity_id": filter.DestinationIdentityID,
		"subscription_id":         filter.SubscriptionID,
		"installment_id":          filter.InstallmentID,
	} {
		if value == "" {
			continue
		}
		if _, err := parseID(field, value); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListTransactions(ctx, s.db, filter)
}

// HasPreviousTransaction reports a transaction of the type for the pair that
// has not failed or been cancelled.
func (s *Service) HasPreviousTransaction(ctx context.Context, subscriptionID, sourceFundingID, paymentType string) (bool, error) {
	var sub snowflake.ID
	if strings.TrimSpace(subscriptionID) != "" {
		parsed, err := parseID("subscription_id", subscriptionID)
		if err != nil {
			return false, err
		}
		sub = parsed
	}
	source, err := parseID("source_funding_id", sourceFundingID)
	if err != nil {
		return false, err
	}
	count, err := s.repo.CountActive(ctx, s.db, sub, source, paymentType)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCustomerTransfers reads the identity's transfers straight from the
// processor.
func (s *Service) ListCustomerTransfers(ctx context.Context, identityID string) ([]gateway.Transfer, error) {
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(identity.Provider)
	if err != nil {
		return nil, err
	}
	return gw.ListCustomerTransfers(ctx, identity.Owner())
}

func (s *Service) gateway(provider string) (gateway.Gateway, error) {
	gw, err := s.gateways.For(provider)
	if err != nil {
		return nil, apperr.Invalid("provider", err.Error())
	}
	return gw, nil
}

func parseID(field, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.Invalid(field, "malformed")
	}
	return id, nil
}
