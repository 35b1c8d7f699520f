package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*FundingSource, error)
	VerifyMicrodeposit(ctx context.Context, id string, req MicrodepositRequest) (*FundingSource, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*FundingSource, error)
	List(ctx context.Context, identityID string) ([]FundingSource, error)
	Get(ctx context.Context, id string) (*FundingSource, error)
	Balance(ctx context.Context, id string) (*BalanceResponse, error)
	Refresh(ctx context.Context, id string) (*FundingSource, error)
}

// CreateRequest links a source either from a processor token or from raw
// bank details.
type CreateRequest struct {
	IdentityID string         `json:"identity_id" validate:"required"`
	Name       string         `json:"name"`
	Token      string         `json:"token" validate:"required_without=Manual"`
	Manual     *ManualDetails `json:"manual,omitempty" validate:"omitempty"`
}

type ManualDetails struct {
	RoutingNumber     string `json:"routing_number" validate:"required"`
	AccountNumber     string `json:"account_number" validate:"required"`
	AccountType       string `json:"account_type" validate:"required,oneof=checking savings"`
	AccountHolderName string `json:"account_holder_name"`
	AccountHolderType string `json:"account_holder_type" validate:"omitempty,oneof=individual company"`
	Country           string `json:"country"`
	Currency          string `json:"currency"`
}

// MicrodepositRequest confirms the two deposit amounts. Leaving both empty
// asks the processor to send the deposits.
type MicrodepositRequest struct {
	Amount1  *decimal.Decimal `json:"amount1"`
	Amount2  *decimal.Decimal `json:"amount2"`
	Currency string           `json:"currency"`
}

type UpdateRequest struct {
	Name    *string `json:"name"`
	Removed bool    `json:"removed"`
}

type BalanceResponse struct {
	FundingSourceID string          `json:"funding_source_id"`
	Value           decimal.Decimal `json:"value"`
	Currency        string          `json:"currency"`
}
