package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/fee/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
)

func (s *Service) CreateProfile(ctx context.Context, req domain.ProfileRequest) (*domain.FeeProfile, error) {
	req.Service = strings.ToLower(strings.TrimSpace(req.Service))
	req.FeeType = strings.ToLower(strings.TrimSpace(req.FeeType))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, apperr.Invalid("amount", "must not be negative")
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	now := s.clock.Now(ctx)
	item := &domain.FeeProfile{
		ID:          s.genID.Generate(),
		Service:     req.Service,
		FeeType:     req.FeeType,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: strings.TrimSpace(req.Description),
		Enabled:     req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateProfile(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) SetProfileEnabled(ctx context.Context, id string, enabled bool) (*domain.FeeProfile, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindProfileByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("fee_profile", id)
	}
	if item.Enabled == enabled {
		return item, nil
	}
	item.Enabled = enabled
	item.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateProfileEnabled(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListProfiles(ctx context.Context) ([]domain.FeeProfile, error) {
	return s.repo.ListProfiles(ctx, s.db)
}

// FeesFor returns one profile per requested type, in request order.
func (s *Service) FeesFor(ctx context.Context, service string, types []string) ([]domain.FeeProfile, error) {
	service = strings.ToLower(strings.TrimSpace(service))
	out := make([]domain.FeeProfile, 0, len(types))
	for _, feeType := range types {
		feeType = strings.ToLower(strings.TrimSpace(feeType))
		if feeType == "" {
			continue
		}
		item, err := s.repo.FindLatestEnabled(ctx, s.db, service, feeType)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperr.Invalid("fee_type", "no enabled fee profile for "+feeType)
		}
		out = append(out, *item)
	}
	return out, nil
}

// Charges drops zero amount profiles; processors reject empty fee lines.
func (s *Service) Charges(ctx context.Context, chargeTo gateway.Owner, types []string) ([]gateway.FeeCharge, error) {
	if len(types) == 0 {
		return nil, nil
	}
	profiles, err := s.FeesFor(ctx, "", types)
	if err != nil {
		return nil, err
	}
	var out []gateway.FeeCharge
	for _, p := range profiles {
		if !p.Amount.IsPositive() {
			continue
		}
		out = append(out, gateway.FeeCharge{ChargeTo: chargeTo, Amount: p.Amount, Currency: p.Currency})
	}
	return out, nil
}
