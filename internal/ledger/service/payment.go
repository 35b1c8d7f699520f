package service

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/paycore/internal/apperr"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"gorm.io/gorm"
)

// InitiatePayment charges a one-off payment through the single payment
// processor.
func (s *Service) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be positive")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := s.repo.FindPaymentByIdempotencyKey(ctx, s.db, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	gw := s.gateways.SinglePayment
	payer, err := s.identities.Get(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	if payer.Provider != gw.Provider() {
		return nil, apperr.Invalid("identity_id", "identity is not registered with "+gw.Provider())
	}

	paymentType := strings.ToLower(strings.TrimSpace(req.Type))
	if paymentType == "" {
		paymentType = domain.TypePayment
	}
	payment := &domain.Payment{
		ID:          s.genID.Generate(),
		Provider:    gw.Provider(),
		IdentityID:  payer.ID,
		Type:        paymentType,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: strings.TrimSpace(req.Description),
	}
	if key == "" {
		key = payment.ID.String()
	}
	payment.IdempotencyKey = key

	in := gateway.PaymentInput{
		Customer:       payer.Owner(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    payment.Description,
		IdempotencyKey: key,
		Metadata:       req.Metadata,
	}
	if req.FundingSourceID != "" {
		source, err := s.fundingSources.Get(ctx, req.FundingSourceID)
		if err != nil {
			return nil, err
		}
		if source.IdentityID != payer.ID {
			return nil, apperr.Invalid("funding_source_id", "funding source belongs to another identity")
		}
		if !fundingdomain.IsValid(source) {
			return nil, apperr.Invalid("funding_source_id", "funding source is unverified, deleted or a balance")
		}
		payment.FundingSourceID = source.ID
		in.FundingID = source.ExternalFundingID
	}
	if req.DestinationIdentityID != "" {
		payee, err := s.identities.Get(ctx, req.DestinationIdentityID)
		if err != nil {
			return nil, err
		}
		in.Destination = payee.Owner().ID()
	}
	descriptor, err := s.DescriptorFor(ctx, paymentType)
	if err != nil {
		return nil, err
	}
	if descriptor != domain.DefaultDescriptor {
		in.Descriptor = descriptor
	}

	result, err := gw.InitiatePayment(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	payment.ExternalPaymentID = result.ID
	payment.Status = result.Status
	if !result.Amount.IsZero() {
		payment.Amount = result.Amount
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if err := s.repo.CreatePayment(ctx, s.db, payment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.repo.FindPaymentByIdempotencyKey(ctx, s.db, key); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	payment.ClientSecret = result.ClientSecret
	return payment, nil
}

func (s *Service) RetrievePayment(ctx context.Context, id string) (*domain.Payment, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(payment.Provider)
	if err != nil {
		return nil, err
	}
	result, err := gw.RetrievePayment(ctx, payment.ExternalPaymentID)
	if err != nil {
		return nil, err
	}
	if result.Status != "" && result.Status != payment.Status {
		payment.Status = result.Status
		payment.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.UpdatePayment(ctx, s.db, payment); err != nil {
			return nil, err
		}
	}
	payment.ClientSecret = result.ClientSecret
	return payment, nil
}

func (s *Service) UpdatePayment(ctx context.Context, id string, req domain.PaymentUpdateRequest) (*domain.Payment, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be positive")
	}
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(payment.Provider)
	if err != nil {
		return nil, err
	}
	result, err := gw.UpdatePayment(ctx, payment.ExternalPaymentID, gateway.PaymentUpdateInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if req.Amount != nil {
		payment.Amount = *req.Amount
	}
	if req.Currency != "" {
		payment.Currency = req.Currency
	}
	if req.Description != nil {
		payment.Description = strings.TrimSpace(*req.Description)
	}
	if result.Status != "" {
		payment.Status = result.Status
	}
	payment.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdatePayment(ctx, s.db, payment); err != nil {
		return nil, err
	}
	payment.ClientSecret = result.ClientSecret
	return payment, nil
}

func (s *Service) loadPayment(ctx context.Context, id string) (*domain.Payment, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindPaymentByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("payment", id)
	}
	return item, nil
}
