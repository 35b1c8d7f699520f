package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Ingest results.
const (
	ResultApplied   = "applied"
	ResultIgnored   = "ignored"
	ResultUnmatched = "unmatched"
	ResultDuplicate = "duplicate"
)

// Subscription is a webhook endpoint registered at a processor. The signing
// secret is stored sealed.
type Subscription struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider          string       `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_subscriptions_external"`
	ExternalWebhookID string       `json:"external_webhook_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_webhook_subscriptions_external"`
	URL               string       `json:"url" gorm:"type:text;not null"`
	SealedSecret      string       `json:"-" gorm:"type:text;not null"`
	Paused            bool         `json:"paused" gorm:"not null"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "webhook_subscriptions" }

// Event archives one verified delivery. Payload is the masked body,
// snappy-compressed.
type Event struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	Provider        string            `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_events_external"`
	ExternalEventID string            `json:"external_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_webhook_events_external"`
	Topic           string            `json:"topic" gorm:"type:varchar(128)"`
	ResourceID      string            `json:"resource_id,omitempty" gorm:"type:varchar(255);index"`
	Status          string            `json:"status,omitempty" gorm:"type:varchar(16)"`
	Result          string            `json:"result" gorm:"type:varchar(16);not null"`
	TransactionID   snowflake.ID      `json:"transaction_id,omitempty"`
	Headers         datatypes.JSONMap `json:"headers,omitempty" gorm:"type:json"`
	Payload         []byte            `json:"-"`
	OccurredAt      *time.Time        `json:"occurred_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at" gorm:"not null"`
}

func (Event) TableName() string { return "webhook_events" }
