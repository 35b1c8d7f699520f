package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Service interface {
	// Create registers the plan and mirrors it as a processor product when
	// the subscription processor supports recurring billing.
	Create(ctx context.Context, req CreateRequest) (*PlanCost, error)
	// Update changes the processor product first and then the local rows.
	Update(ctx context.Context, planCostID string, req UpdateRequest) (*PlanCost, error)
	Get(ctx context.Context, planCostID string) (*PlanCost, error)
	List(ctx context.Context) ([]PlanCost, error)
}

type CreateRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	// Code defaults to a slug of the name.
	Code             string          `json:"code" validate:"omitempty,max=255"`
	Description      string          `json:"description"`
	Cost             decimal.Decimal `json:"cost"`
	Currency         string          `json:"currency" validate:"omitempty,len=3"`
	RecurrencePeriod int             `json:"recurrence_period" validate:"required,min=1"`
	RecurrenceUnit   string          `json:"recurrence_unit" validate:"required,oneof=day month year"`
	// OwnerIdentityID is the merchant identity the product is created for.
	OwnerIdentityID string `json:"owner_identity_id"`
}

type UpdateRequest struct {
	Name             *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Cost             *decimal.Decimal `json:"cost"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	RecurrencePeriod *int             `json:"recurrence_period" validate:"omitempty,min=1"`
	RecurrenceUnit   *string          `json:"recurrence_unit" validate:"omitempty,oneof=day month year"`
	OwnerIdentityID  string           `json:"owner_identity_id"`
}
