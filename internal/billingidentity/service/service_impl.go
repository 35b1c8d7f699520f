package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Gateways *gateway.Set
	Config   config.Config
	Clock    clock.Clock
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	repo            domain.Repository
	genID           *snowflake.Node
	gateways        *gateway.Set
	clock           clock.Clock
	defaultProvider string
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("billingidentity.service"),
		repo:            p.Repo,
		genID:           p.GenID,
		gateways:        p.Gateways,
		clock:           p.Clock,
		defaultProvider: p.Config.Payment.Provider,
	}
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.BillingIdentity, error) {
	req.PartyID = strings.TrimSpace(req.PartyID)
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	provider := s.provider(req.Provider)

	existing, err := s.repo.FindLive(ctx, s.db, req.PartyID, provider, req.Role)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if !req.Create {
		return nil, apperr.NotFound("billing_identity", req.PartyID)
	}

	gw, err := s.gateways.For(provider)
	if err != nil {
		return nil, apperr.Invalid("provider", err.Error())
	}

	partyType := req.PartyType
	if partyType == "" {
		partyType = domain.PartyCustomer
		if req.Role == domain.RoleMerchant {
			partyType = domain.PartyBusiness
		}
	}

	now := s.clock.Now(ctx)
	identity := &domain.BillingIdentity{
		ID:           s.genID.Generate(),
		PartyID:      req.PartyID,
		PartyType:    partyType,
		Provider:     provider,
		Role:         req.Role,
		Email:        strings.TrimSpace(req.Profile.Email),
		FirstName:    strings.TrimSpace(req.Profile.FirstName),
		LastName:     strings.TrimSpace(req.Profile.LastName),
		BusinessName: strings.TrimSpace(req.Profile.BusinessName),
		Phone:        strings.TrimSpace(req.Profile.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(req.Profile.Metadata) > 0 {
		identity.Metadata = toJSONMap(req.Profile.Metadata)
	}

	metadata := map[string]string{"billing_identity_id": identity.ID.String(), "party_id": req.PartyID}
	switch req.Role {
	case domain.RoleMerchant:
		merchant, err := gw.CreateMerchant(ctx, merchantInput(req.Profile, metadata))
		if err != nil {
			return nil, err
		}
		identity.ExternalAccountID = merchant.ID
	default:
		customer, err := gw.CreateCustomer(ctx, customerInput(req.Profile, metadata))
		if err != nil {
			return nil, err
		}
		identity.ExternalCustomerID = customer.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.CountLive(ctx, tx, identity.PartyID, provider)
		if err != nil {
			return err
		}
		identity.IsDefault = count == 0
		return s.repo.Create(ctx, tx, identity)
	})
	if err != nil {
		return nil, s.compensate(ctx, gw, identity, fmt.Errorf("persist billing identity: %w", err))
	}
	return identity, nil
}

// compensate removes the processor party created for a record that could not
// be stored.
func (s *Service) compensate(ctx context.Context, gw gateway.Gateway, identity *domain.BillingIdentity, cause error) error {
	var err error
	if identity.Role == domain.RoleMerchant {
		err = gw.DeleteMerchant(ctx, identity.ExternalAccountID)
	} else {
		err = gw.DeleteCustomer(ctx, identity.ExternalCustomerID)
	}
	if err != nil {
		s.log.Error("failed to remove processor party after local write failure",
			zap.String("provider", identity.Provider),
			zap.String("external_id", identity.Owner().ID()),
			zap.Error(err),
		)
		return errors.Join(cause, fmt.Errorf("compensate: %w", err))
	}
	return cause
}

func (s *Service) DefaultBilling(ctx context.Context, partyID string) (*domain.BillingIdentity, error) {
	partyID = strings.TrimSpace(partyID)
	if partyID == "" {
		return nil, apperr.Invalid("party_id", "required")
	}
	item, err := s.repo.FindDefault(ctx, s.db, partyID, s.defaultProvider)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("billing_identity", partyID)
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.BillingIdentity, error) {
	return s.load(ctx, s.db, id)
}

// GetByExternalCustomerID maps a processor customer id back to its identity.
func (s *Service) GetByExternalCustomerID(ctx context.Context, provider, externalID string) (*domain.BillingIdentity, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperr.Invalid("external_customer_id", "required")
	}
	item, err := s.repo.FindByExternalCustomerID(ctx, s.db, s.provider(provider), externalID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("billing_identity", externalID)
	}
	return item, nil
}

func (s *Service) ListByParty(ctx context.Context, partyID string) ([]domain.BillingIdentity, error) {
	partyID = strings.TrimSpace(partyID)
	if partyID == "" {
		return nil, apperr.Invalid("party_id", "required")
	}
	return s.repo.ListByParty(ctx, s.db, partyID)
}

func (s *Service) SetDefault(ctx context.Context, id string) (*domain.BillingIdentity, error) {
	var out *domain.BillingIdentity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.Deleted() {
			return apperr.Conflict("billing_identity", "offboarded")
		}
		if err := s.repo.ClearDefault(ctx, tx, item.PartyID, item.Provider); err != nil {
			return err
		}
		item.IsDefault = true
		item.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile pushes the profile to the processor before mirroring it.
func (s *Service) UpdateProfile(ctx context.Context, id string, profile domain.Profile) (*domain.BillingIdentity, error) {
	if err := apperr.Validate(profile); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item.Deleted() {
		return nil, apperr.Conflict("billing_identity", "offboarded")
	}

	merged := mergeProfile(item, profile)
	gw, err := s.gateways.For(item.Provider)
	if err != nil {
		return nil, apperr.Invalid("provider", err.Error())
	}
	if item.Role == domain.RoleMerchant {
		if _, err := gw.UpdateMerchant(ctx, item.ExternalAccountID, merchantInput(merged, merged.Metadata)); err != nil {
			return nil, err
		}
	} else {
		if _, err := gw.UpdateCustomer(ctx, item.ExternalCustomerID, customerInput(merged, merged.Metadata)); err != nil {
			return nil, err
		}
	}

	item.Email = merged.Email
	item.FirstName = merged.FirstName
	item.LastName = merged.LastName
	item.BusinessName = merged.BusinessName
	item.Phone = merged.Phone
	if len(profile.Metadata) > 0 {
		item.Metadata = toJSONMap(merged.Metadata)
	}
	item.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Offboard deactivates the party at the processor and soft-deletes the
// identity. Processors that cannot delete parties do not block offboarding.
func (s *Service) Offboard(ctx context.Context, id string) (*domain.OffboardResult, error) {
	item, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item.Deleted() {
		return &domain.OffboardResult{Identity: item, Note: "already offboarded"}, nil
	}

	gw, err := s.gateways.For(item.Provider)
	if err != nil {
		return nil, apperr.Invalid("provider", err.Error())
	}
	if item.Role == domain.RoleMerchant {
		err = gw.DeleteMerchant(ctx, item.ExternalAccountID)
	} else {
		err = gw.DeleteCustomer(ctx, item.ExternalCustomerID)
	}

	result := &domain.OffboardResult{ProcessorRemoved: err == nil}
	switch {
	case err == nil:
	case apperr.IsUnsupported(err):
		result.Note = err.Error()
	default:
		return nil, err
	}

	now := s.clock.Now(ctx)
	item.DeletedAt = &now
	item.IsDefault = false
	item.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	result.Identity = item
	return result, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id string) (*domain.BillingIdentity, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, apperr.Invalid("id", "malformed")
	}
	item, err := s.repo.FindByID(ctx, db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("billing_identity", id)
	}
	return item, nil
}

func (s *Service) provider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return s.defaultProvider
	}
	return name
}

func mergeProfile(item *domain.BillingIdentity, p domain.Profile) domain.Profile {
	out := p
	if strings.TrimSpace(out.Email) == "" {
		out.Email = item.Email
	}
	if strings.TrimSpace(out.FirstName) == "" {
		out.FirstName = item.FirstName
	}
	if strings.TrimSpace(out.LastName) == "" {
		out.LastName = item.LastName
	}
	if strings.TrimSpace(out.BusinessName) == "" {
		out.BusinessName = item.BusinessName
	}
	if strings.TrimSpace(out.Phone) == "" {
		out.Phone = item.Phone
	}
	if out.Metadata == nil && item.Metadata != nil {
		out.Metadata = map[string]string{}
		for k, v := range item.Metadata {
			out.Metadata[k] = fmt.Sprint(v)
		}
	}
	return out
}

func customerInput(p domain.Profile, metadata map[string]string) gateway.CustomerInput {
	return gateway.CustomerInput{
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		Phone:        p.Phone,
		BusinessName: p.BusinessName,
		Address:      gateway.Address{Country: p.Country},
		IPAddress:    p.IPAddress,
		Metadata:     metadata,
	}
}

func merchantInput(p domain.Profile, metadata map[string]string) gateway.MerchantInput {
	name := p.BusinessName
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return gateway.MerchantInput{
		Email:        p.Email,
		BusinessName: name,
		BusinessType: p.BusinessType,
		Country:      p.Country,
		Phone:        p.Phone,
		Metadata:     metadata,
	}
}

func toJSONMap(in map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
