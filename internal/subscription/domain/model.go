package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	StatusCreated   = "created"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Subscription is an agreement between a paying customer identity and a
// receiving merchant identity for one plan cost.
type Subscription struct {
	ID                     snowflake.ID     `json:"id" gorm:"primaryKey"`
	PayerIdentityID        snowflake.ID     `json:"payer_identity_id" gorm:"not null;index"`
	ReceiverIdentityID     snowflake.ID     `json:"receiver_identity_id" gorm:"not null;index"`
	SenderFundingID        snowflake.ID     `json:"sender_funding_id,omitempty"`
	ReceiverFundingID      snowflake.ID     `json:"receiver_funding_id,omitempty"`
	PlanCostID             snowflake.ID     `json:"plan_cost_id" gorm:"not null;index"`
	Provider               string           `json:"provider" gorm:"type:varchar(32);not null"`
	ExternalSubscriptionID string           `json:"external_subscription_id,omitempty" gorm:"type:varchar(255)"`
	ExternalScheduleID     string           `json:"external_schedule_id,omitempty" gorm:"type:varchar(255)"`
	ApplicationFeePercent  *decimal.Decimal `json:"application_fee_percent,omitempty" gorm:"type:numeric(7,4)"`
	Description            string           `json:"description,omitempty" gorm:"type:text"`
	BillingStartAt         time.Time        `json:"billing_start_at" gorm:"not null"`
	BillingNextAt          *time.Time       `json:"billing_next_at,omitempty"`
	BillingLastAt          *time.Time       `json:"billing_last_at,omitempty"`
	BillingEndAt           *time.Time       `json:"billing_end_at,omitempty"`
	Active                 bool             `json:"active" gorm:"not null"`
	Cancelled              bool             `json:"cancelled" gorm:"not null"`
	CancelledAt            *time.Time       `json:"cancelled_at,omitempty"`
	IdempotencyKey         *string          `json:"-" gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt              time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time        `json:"updated_at" gorm:"not null"`

	// ClientSecret is returned by processors that confirm the first payment
	// client side. It is never stored.
	ClientSecret string `json:"client_secret,omitempty" gorm:"-"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) Status() string {
	switch {
	case s.Cancelled:
		return StatusCancelled
	case s.Active:
		return StatusActive
	default:
		return StatusCreated
	}
}
