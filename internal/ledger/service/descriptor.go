package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
)

func (s *Service) UpsertDescriptor(ctx context.Context, req domain.DescriptorRequest) (*domain.PaymentDescriptor, error) {
	req.PaymentType = strings.ToLower(strings.TrimSpace(req.PaymentType))
	req.Descriptor = strings.TrimSpace(req.Descriptor)
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	if err := s.repo.UpsertDescriptor(ctx, s.db, &domain.PaymentDescriptor{
		ID:          s.genID.Generate(),
		PaymentType: req.PaymentType,
		Descriptor:  req.Descriptor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, err
	}
	item, err := s.repo.FindDescriptor(ctx, s.db, req.PaymentType)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("payment_descriptor", req.PaymentType)
	}
	return item, nil
}

// DescriptorFor returns the statement descriptor for a payment type, or
// DefaultDescriptor when none is configured.
func (s *Service) DescriptorFor(ctx context.Context, paymentType string) (string, error) {
	item, err := s.repo.FindDescriptor(ctx, s.db, strings.ToLower(strings.TrimSpace(paymentType)))
	if err != nil {
		return "", err
	}
	if item == nil {
		return domain.DefaultDescriptor, nil
	}
	return item.Descriptor, nil
}

func (s *Service) ListDescriptors(ctx context.Context) ([]domain.PaymentDescriptor, error) {
	return s.repo.ListDescriptors(ctx, s.db)
}
