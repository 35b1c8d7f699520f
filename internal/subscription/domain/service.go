package domain

import (
	"context"
	"time"

	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	plandomain "github.com/railzwaylabs/paycore/internal/plan/domain"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*Subscription, error)
	Activate(ctx context.Context, id string) (*Subscription, error)
	Cancel(ctx context.Context, id string) (*Subscription, error)
	CancelScheduled(ctx context.Context, id string) (*Subscription, error)
	UpdatePlan(ctx context.Context, planCostID string, req plandomain.UpdateRequest) (*plandomain.PlanCost, error)
	SetFundingSources(ctx context.Context, id string, req FundingRequest) (*Subscription, error)

	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filter ListFilter) ([]Subscription, error)
	PayableBalance(ctx context.Context, id string) (*Balance, error)
	ListInstallments(ctx context.Context, id string) ([]installmentdomain.Installment, error)
	ListTransactions(ctx context.Context, id string) ([]ledgerdomain.Transaction, error)

	// ChargeInstallment charges one payable installment through the ledger.
	ChargeInstallment(ctx context.Context, installmentID string) (*ledgerdomain.Transaction, error)
	// SettleInstallment advances a pending installment from the status of
	// its linked transaction.
	SettleInstallment(ctx context.Context, installmentID string) (*installmentdomain.Installment, error)
}

type CreateRequest struct {
	// PayerPartyID is resolved to its customer identity and ReceiverPartyID
	// to its merchant identity at the subscription processor.
	PayerPartyID          string           `json:"payer_party_id" validate:"required"`
	ReceiverPartyID       string           `json:"receiver_party_id" validate:"required"`
	PlanCostID            string           `json:"plan_cost_id" validate:"required"`
	SenderFundingID       string           `json:"sender_funding_id"`
	ReceiverFundingID     string           `json:"receiver_funding_id"`
	EndAt                 *time.Time       `json:"end_at"`
	ApplicationFeePercent *decimal.Decimal `json:"application_fee_percent"`
	Description           string           `json:"description" validate:"max=500"`
	// Activate activates the subscription right away when both funding
	// sources are usable.
	Activate       bool   `json:"activate"`
	IdempotencyKey string `json:"-"`
}

type CreateScheduleRequest struct {
	CreateRequest
	// StartAt zero or in the past starts the subscription immediately.
	StartAt time.Time `json:"start_at"`
}

type FundingRequest struct {
	SenderFundingID   string `json:"sender_funding_id"`
	ReceiverFundingID string `json:"receiver_funding_id"`
}

type ListFilter struct {
	PayerIdentityID    string `form:"payer_identity_id"`
	ReceiverIdentityID string `form:"receiver_identity_id"`
	Status             string `form:"status" validate:"omitempty,oneof=created active cancelled"`
	Limit              int    `form:"limit"`
}

type Balance struct {
	SubscriptionID string          `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}
