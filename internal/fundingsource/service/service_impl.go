package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Identities identitydomain.Service
	Gateways   *gateway.Set
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	identities identitydomain.Service
	gateways   *gateway.Set
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fundingsource.service"),
		repo:       p.Repo,
		genID:      p.GenID,
		identities: p.Identities,
		gateways:   p.Gateways,
		clock:      p.Clock,
	}
}

// Create attaches the instrument at the processor and stores it unverified
// unless the processor already verified it.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.FundingSource, error) {
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	identity, gw, err := s.owner(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}

	var inst *gateway.FundingInstrument
	if token := strings.TrimSpace(req.Token); token != "" {
		inst, err = gw.CreateFundingSource(ctx, gateway.FundingSourceLinkInput{
			Owner: identity.Owner(),
			Name:  req.Name,
			Token: token,
		})
	} else {
		m := req.Manual
		inst, err = gw.CreateFundingSourceManually(ctx, gateway.FundingSourceManualInput{
			Owner:             identity.Owner(),
			Name:              req.Name,
			RoutingNumber:     m.RoutingNumber,
			AccountNumber:     m.AccountNumber,
			AccountType:       m.AccountType,
			AccountHolderName: m.AccountHolderName,
			AccountHolderType: m.AccountHolderType,
			Country:           m.Country,
			Currency:          m.Currency,
		})
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByExternalID(ctx, s.db, identity.Provider, inst.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IdentityID != identity.ID {
			return nil, apperr.Conflict("funding_source", "instrument belongs to another identity")
		}
		return existing, nil
	}

	source := s.fromInstrument(ctx, identity, inst)
	if source.Name == "" {
		source.Name = strings.TrimSpace(req.Name)
	}
	if err := s.repo.Create(ctx, s.db, source); err != nil {
		cause := fmt.Errorf("persist funding source: %w", err)
		if _, rmErr := gw.UpdateFundingSource(ctx, gateway.FundingSourceUpdateInput{
			Owner:     identity.Owner(),
			FundingID: inst.ID,
			Removed:   true,
		}); rmErr != nil {
			s.log.Error("failed to remove processor funding source after local write failure",
				zap.String("provider", identity.Provider),
				zap.String("external_funding_id", inst.ID),
				zap.Error(rmErr),
			)
			return nil, errors.Join(cause, fmt.Errorf("compensate: %w", rmErr))
		}
		return nil, cause
	}
	return source, nil
}

func (s *Service) VerifyMicrodeposit(ctx context.Context, id string, req domain.MicrodepositRequest) (*domain.FundingSource, error) {
	if (req.Amount1 == nil) != (req.Amount2 == nil) {
		return nil, apperr.Invalid("amounts", "both amounts are required")
	}
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Deleted {
		return nil, apperr.Invalid("funding_source", "deleted")
	}
	if !source.PendingMicrodeposit {
		return source, nil
	}

	identity, gw, err := s.owner(ctx, source.IdentityID.String())
	if err != nil {
		return nil, err
	}
	in := gateway.MicrodepositInput{
		Owner:     identity.Owner(),
		FundingID: source.ExternalFundingID,
		Amount1:   req.Amount1,
		Amount2:   req.Amount2,
		Currency:  req.Currency,
	}
	if err := gw.VerifyMicrodeposit(ctx, in); err != nil {
		return nil, err
	}
	if in.Initiate() {
		return source, nil
	}

	source.PendingMicrodeposit = false
	source.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, s.db, source); err != nil {
		return nil, err
	}
	return source, nil
}

// Update pushes the change to the processor before storing it. Removal is
// terminal.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.FundingSource, error) {
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Deleted {
		return nil, apperr.Conflict("funding_source", "deleted")
	}
	name := source.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == source.Name && !req.Removed {
		return source, nil
	}

	identity, gw, err := s.owner(ctx, source.IdentityID.String())
	if err != nil {
		return nil, err
	}
	if _, err := gw.UpdateFundingSource(ctx, gateway.FundingSourceUpdateInput{
		Owner:     identity.Owner(),
		FundingID: source.ExternalFundingID,
		Name:      name,
		Removed:   req.Removed,
	}); err != nil {
		return nil, err
	}

	source.Name = name
	source.Deleted = req.Removed
	source.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, s.db, source); err != nil {
		return nil, err
	}
	return source, nil
}

// List merges the processor's view into local rows when the processor can
// enumerate instruments. Local rows are never deleted and deleted rows never
// come back.
func (s *Service) List(ctx context.Context, identityID string) ([]domain.FundingSource, error) {
	identity, gw, err := s.owner(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if gw.SupportsListing() {
		instruments, err := gw.ListFundingSources(ctx, identity.Owner())
		if err != nil {
			return nil, err
		}
		for i := range instruments {
			if err := s.merge(ctx, identity, &instruments[i]); err != nil {
				return nil, err
			}
		}
	}
	return s.repo.ListByIdentity(ctx, s.db, identity.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.FundingSource, error) {
	return s.load(ctx, id)
}

func (s *Service) Balance(ctx context.Context, id string) (*domain.BalanceResponse, error) {
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	identity, gw, err := s.owner(ctx, source.IdentityID.String())
	if err != nil {
		return nil, err
	}
	bal, err := gw.GetFundingSourceBalance(ctx, identity.Owner(), source.ExternalFundingID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceResponse{
		FundingSourceID: source.ID.String(),
		Value:           bal.Value,
		Currency:        bal.Currency,
	}, nil
}

// Refresh re-reads one instrument from the processor.
func (s *Service) Refresh(ctx context.Context, id string) (*domain.FundingSource, error) {
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Deleted {
		return source, nil
	}
	identity, gw, err := s.owner(ctx, source.IdentityID.String())
	if err != nil {
		return nil, err
	}
	inst, err := gw.RetrieveFundingSource(ctx, identity.Owner(), source.ExternalFundingID)
	if err != nil {
		return nil, err
	}
	if applyInstrument(source, inst) {
		source.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.Update(ctx, s.db, source); err != nil {
			return nil, err
		}
	}
	return source, nil
}

func (s *Service) merge(ctx context.Context, identity *identitydomain.BillingIdentity, inst *gateway.FundingInstrument) error {
	local, err := s.repo.FindByExternalID(ctx, s.db, identity.Provider, inst.ID)
	if err != nil {
		return err
	}
	if local == nil {
		source := s.fromInstrument(ctx, identity, inst)
		if err := s.repo.Create(ctx, s.db, source); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return nil
	}
	if local.Deleted || local.IdentityID != identity.ID {
		return nil
	}
	if !applyInstrument(local, inst) {
		return nil
	}
	local.UpdatedAt = s.clock.Now(ctx)
	return s.repo.Update(ctx, s.db, local)
}

// applyInstrument copies processor state onto a live row and reports
// whether anything changed.
func applyInstrument(local *domain.FundingSource, inst *gateway.FundingInstrument) bool {
	changed := false
	if pending := !inst.Verified; pending != local.PendingMicrodeposit {
		local.PendingMicrodeposit = pending
		changed = true
	}
	if inst.Removed && !local.Deleted {
		local.Deleted = true
		changed = true
	}
	if inst.Name != "" && inst.Name != local.Name {
		local.Name = inst.Name
		changed = true
	}
	if inst.BankName != "" && inst.BankName != local.BankName {
		local.BankName = inst.BankName
		changed = true
	}
	return changed
}

func (s *Service) fromInstrument(ctx context.Context, identity *identitydomain.BillingIdentity, inst *gateway.FundingInstrument) *domain.FundingSource {
	now := s.clock.Now(ctx)
	fundingType := inst.Type
	if fundingType == "" {
		fundingType = gateway.FundingTypeBank
	}
	return &domain.FundingSource{
		ID:                  s.genID.Generate(),
		IdentityID:          identity.ID,
		Provider:            identity.Provider,
		ExternalFundingID:   inst.ID,
		Type:                fundingType,
		BankName:            inst.BankName,
		Name:                inst.Name,
		Last4:               inst.Last4,
		PendingMicrodeposit: !inst.Verified,
		Deleted:             inst.Removed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) owner(ctx context.Context, identityID string) (*identitydomain.BillingIdentity, gateway.Gateway, error) {
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, nil, err
	}
	if identity.Deleted() {
		return nil, nil, apperr.Conflict("billing_identity", "offboarded")
	}
	gw, err := s.gateways.For(identity.Provider)
	if err != nil {
		return nil, nil, apperr.Invalid("provider", err.Error())
	}
	return identity, gw, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.FundingSource, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, apperr.Invalid("id", "malformed")
	}
	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("funding_source", id)
	}
	return item, nil
}
