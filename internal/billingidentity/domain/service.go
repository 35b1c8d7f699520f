package domain

import (
	"context"
)

type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*BillingIdentity, error)
	DefaultBilling(ctx context.Context, partyID string) (*BillingIdentity, error)
	Get(ctx context.Context, id string) (*BillingIdentity, error)
	GetByExternalCustomerID(ctx context.Context, provider, externalID string) (*BillingIdentity, error)
	ListByParty(ctx context.Context, partyID string) ([]BillingIdentity, error)
	SetDefault(ctx context.Context, id string) (*BillingIdentity, error)
	UpdateProfile(ctx context.Context, id string, profile Profile) (*BillingIdentity, error)
	Offboard(ctx context.Context, id string) (*OffboardResult, error)
}

type Profile struct {
	Email        string            `json:"email" validate:"omitempty,email"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	BusinessName string            `json:"business_name"`
	Phone        string            `json:"phone"`
	Country      string            `json:"country"`
	BusinessType string            `json:"business_type"`
	IPAddress    string            `json:"ip_address"`
	Metadata     map[string]string `json:"metadata"`
}

type ResolveRequest struct {
	PartyID   string `json:"party_id" validate:"required"`
	PartyType string `json:"party_type" validate:"omitempty,oneof=business customer"`
	// Provider defaults to the configured default processor.
	Provider string `json:"provider"`
	Role     string `json:"role" validate:"required,oneof=customer merchant"`
	// Create registers the party at the processor when no identity exists.
	Create  bool    `json:"create"`
	Profile Profile `json:"profile"`
}

type OffboardResult struct {
	Identity *BillingIdentity `json:"identity"`
	// ProcessorRemoved is false when the processor cannot delete the party.
	ProcessorRemoved bool   `json:"processor_removed"`
	Note             string `json:"note,omitempty"`
}
