package service

import (
	"context"
	"errors"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ChargeInstallment moves the plan cost from the payer's source to the
// receiver's source. A rejected charge counts as a failed attempt; an
// ambiguous one is left to the reconciliation sweep. A subscription whose
// sources no longer qualify is deactivated instead of charged.
func (s *Service) ChargeInstallment(ctx context.Context, installmentID string) (*ledgerdomain.Transaction, error) {
	inst, err := s.installments.Get(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if !inst.Payable() {
		return nil, apperr.Conflict("installment", "installment is not payable")
	}
	sub, err := s.load(ctx, inst.SubscriptionID.String())
	if err != nil {
		return nil, err
	}
	if sub.Cancelled || !sub.Active {
		return nil, apperr.Conflict("subscription", "subscription is "+sub.Status())
	}
	if err := s.checkFunding(ctx, sub); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			if derr := s.deactivate(ctx, sub, err); derr != nil {
				return nil, errors.Join(err, derr)
			}
		}
		return nil, err
	}

	cost, err := s.plans.Get(ctx, sub.PlanCostID.String())
	if err != nil {
		return nil, err
	}
	receiver, err := s.identities.Get(ctx, sub.ReceiverIdentityID.String())
	if err != nil {
		return nil, err
	}
	fees, err := s.fees.Charges(ctx, receiver.Owner(), s.feeTypes)
	if err != nil {
		return nil, err
	}

	description := sub.Description
	if description == "" && cost.Plan != nil {
		description = cost.Plan.Name
	}
	txn, err := s.ledger.InitiateTransfer(ctx, ledgerdomain.TransferRequest{
		SourceFundingID:      sub.SenderFundingID.String(),
		DestinationFundingID: sub.ReceiverFundingID.String(),
		Amount:               cost.Cost,
		Currency:             cost.Currency,
		Type:                 ledgerdomain.TypeInstallment,
		CorrelationID:        inst.CorrelationID(),
		SubscriptionID:       sub.ID.String(),
		InstallmentID:        inst.ID.String(),
		Description:          description,
		Fees:                 fees,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrProviderCall) && !apperr.IsAmbiguous(err) {
			if _, aerr := s.installments.Advance(ctx, inst.ID.String(), installmentdomain.Outcome{At: s.clock.Now(ctx)}); aerr != nil {
				return nil, errors.Join(err, aerr)
			}
		}
		return nil, err
	}

	if _, err := s.installments.MarkPending(ctx, inst.ID.String(), txn.ID); err != nil {
		return nil, err
	}
	if txn.Settled() {
		if _, err := s.SettleInstallment(ctx, inst.ID.String()); err != nil {
			return nil, err
		}
	}
	if err := s.advanceBilling(ctx, sub, inst); err != nil {
		s.log.Warn("failed to update billing dates",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err),
		)
	}
	return txn, nil
}

// SettleInstallment applies the status of the linked transaction. Anything
// but a pending installment with a settled transaction is left as is.
func (s *Service) SettleInstallment(ctx context.Context, installmentID string) (*installmentdomain.Installment, error) {
	inst, err := s.installments.Get(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status != installmentdomain.StatusPending || inst.LastTransactionID == 0 {
		return inst, nil
	}
	txn, err := s.ledger.Get(ctx, inst.LastTransactionID.String())
	if err != nil {
		return nil, err
	}

	outcome := installmentdomain.Outcome{TransactionID: txn.ID, At: txn.UpdatedAt}
	switch txn.Status {
	case gateway.StatusProcessed:
		outcome.Success = true
	case gateway.StatusFailed, gateway.StatusCancelled:
	default:
		return inst, nil
	}
	return s.installments.Advance(ctx, inst.ID.String(), outcome)
}

// advanceBilling records the charge time and moves the next billing date to
// the earliest installment still to be charged.
func (s *Service) advanceBilling(ctx context.Context, sub *domain.Subscription, charged *installmentdomain.Installment) error {
	items, err := s.installments.ListBySubscription(ctx, sub.ID.String())
	if err != nil {
		return err
	}
	now := s.clock.Now(ctx)
	sub.BillingLastAt = &now
	sub.BillingNextAt = nil
	for i := range items {
		item := items[i]
		if item.ID == charged.ID || !item.Payable() {
			continue
		}
		if sub.BillingNextAt == nil || item.DueAt.Before(*sub.BillingNextAt) {
			due := item.DueAt
			sub.BillingNextAt = &due
		}
	}
	sub.UpdatedAt = now
	return s.repo.UpdateBilling(ctx, s.db, sub)
}
