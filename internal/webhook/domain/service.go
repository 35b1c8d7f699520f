package domain

import (
	"context"
	"net/http"
)

type Service interface {
	CreateSubscription(ctx context.Context, req CreateRequest) (*Subscription, error)
	ListSubscriptions(ctx context.Context, provider string) ([]Subscription, error)
	SetPaused(ctx context.Context, id string, paused bool) (*Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Ingest verifies a delivery against the stored secrets, applies transfer
	// status changes and archives the event once per processor event id.
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*IngestResult, error)
	ListEvents(ctx context.Context, provider string, limit int) ([]Event, error)
	// EventPayload returns the decompressed body of an archived event.
	EventPayload(ctx context.Context, id string) ([]byte, error)
}

type CreateRequest struct {
	// Provider defaults to the configured default processor.
	Provider string `json:"provider"`
	URL      string `json:"url" validate:"required,url"`
	// Secret is generated when empty.
	Secret string   `json:"secret" validate:"omitempty,min=16,max=128"`
	Events []string `json:"events"`
}

type IngestResult struct {
	EventID       string `json:"event_id"`
	Result        string `json:"result"`
	TransactionID string `json:"transaction_id,omitempty"`
	InstallmentID string `json:"installment_id,omitempty"`
}
