package domain

import (
	"context"
	"time"

	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/shopspring/decimal"
)

type Service interface {
	InitiateTransfer(ctx context.Context, req TransferRequest) (*Transaction, error)
	RetrieveTransfer(ctx context.Context, id string) (*Transaction, error)
	CancelTransfer(ctx context.Context, id string) (*Transaction, error)
	ListCustomerTransfers(ctx context.Context, identityID string) ([]gateway.Transfer, error)
	ApplyStatus(ctx context.Context, provider, externalID, status, reason string) (*Transaction, error)
	Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileResult, error)

	Get(ctx context.Context, id string) (*Transaction, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	HasPreviousTransaction(ctx context.Context, subscriptionID, sourceFundingID, paymentType string) (bool, error)

	UpsertDescriptor(ctx context.Context, req DescriptorRequest) (*PaymentDescriptor, error)
	DescriptorFor(ctx context.Context, paymentType string) (string, error)
	ListDescriptors(ctx context.Context) ([]PaymentDescriptor, error)

	InitiatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	RetrievePayment(ctx context.Context, id string) (*Payment, error)
	UpdatePayment(ctx context.Context, id string, req PaymentUpdateRequest) (*Payment, error)
}

type TransferRequest struct {
	SourceFundingID      string          `json:"source_funding_id" validate:"required"`
	DestinationFundingID string          `json:"destination_funding_id" validate:"required"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency" validate:"omitempty,len=3"`
	Type                 string          `json:"type" validate:"required"`
	// CorrelationID makes the request idempotent. Replays return the
	// recorded transaction without calling the processor.
	CorrelationID  string            `json:"correlation_id" validate:"required,max=128"`
	SubscriptionID string            `json:"subscription_id"`
	InstallmentID  string            `json:"installment_id"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata"`
	// Fees are resolved by the caller from fee profiles.
	Fees []gateway.FeeCharge `json:"-"`
}

type ListFilter struct {
	Provider              string `form:"provider"`
	SourceIdentityID      string `form:"source_identity_id"`
	DestinationIdentityID string `form:"destination_identity_id"`
	Status                string `form:"status"`
	SubscriptionID        string `form:"subscription_id"`
	InstallmentID         string `form:"installment_id"`
	Type                  string `form:"type"`
	Limit                 int    `form:"limit"`
}

type ReconcileResult struct {
	Checked   int `json:"checked"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
	// Unresolved attempts stay ambiguous, typically because the processor
	// cannot list transfers.
	Unresolved int `json:"unresolved"`
}

type DescriptorRequest struct {
	PaymentType string `json:"payment_type" validate:"required,max=32"`
	Descriptor  string `json:"descriptor" validate:"required,max=64"`
}

type PaymentRequest struct {
	IdentityID            string            `json:"identity_id" validate:"required"`
	FundingSourceID       string            `json:"funding_source_id"`
	DestinationIdentityID string            `json:"destination_identity_id"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency" validate:"required,len=3"`
	Type                  string            `json:"type"`
	Description           string            `json:"description"`
	Metadata              map[string]string `json:"metadata"`
	IdempotencyKey        string            `json:"-"`
}

type PaymentUpdateRequest struct {
	Amount      *decimal.Decimal  `json:"amount"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Description *string           `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}
