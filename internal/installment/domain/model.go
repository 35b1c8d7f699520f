package domain

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusEmpty     = "empty"
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Recurrence units and the spacing between due dates.
const (
	UnitDay   = "day"
	UnitMonth = "month"
	UnitYear  = "year"
)

// Installment is one due obligation under a subscription.
type Installment struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	SubscriptionID    snowflake.ID `json:"subscription_id" gorm:"not null;uniqueIndex:ux_installments_sequence"`
	Sequence          int          `json:"sequence" gorm:"not null;uniqueIndex:ux_installments_sequence"`
	Status            string       `json:"status" gorm:"type:varchar(16);not null;index"`
	StatusChangedAt   *time.Time   `json:"status_changed_at,omitempty"`
	DueAt             time.Time    `json:"due_at" gorm:"not null;index"`
	Retries           int          `json:"retries" gorm:"not null"`
	Exhausted         bool         `json:"exhausted" gorm:"not null"`
	Notifications     int          `json:"notifications" gorm:"not null"`
	NotifiedAt        *time.Time   `json:"notified_at,omitempty"`
	LastTransactionID snowflake.ID `json:"last_transaction_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Installment) TableName() string { return "installments" }

// Payable reports whether the installment may be charged.
func (i *Installment) Payable() bool {
	return !i.Exhausted && (i.Status == StatusEmpty || i.Status == StatusFailed)
}

// CorrelationID keys the charge for the current retry so a replay of the
// same attempt never moves money twice.
func (i *Installment) CorrelationID() string {
	return "installment:" + i.ID.String() + ":" + strconv.Itoa(i.Retries)
}

// Step returns the spacing between due dates for a recurrence unit.
func Step(unit string) (time.Duration, bool) {
	switch unit {
	case UnitDay:
		return 24 * time.Hour, true
	case UnitMonth:
		return 30 * 24 * time.Hour, true
	case UnitYear:
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}
