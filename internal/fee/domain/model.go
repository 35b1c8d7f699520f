package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// FeeLog is one processor-side fee charged against a recorded transfer.
type FeeLog struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	TransactionID snowflake.ID    `json:"transaction_id" gorm:"not null;index"`
	IdentityID    snowflake.ID    `json:"identity_id,omitempty" gorm:"index"`
	Provider      string          `json:"provider" gorm:"type:varchar(32);not null"`
	ExternalLink  string          `json:"external_link" gorm:"type:varchar(512);not null;uniqueIndex"`
	TransferLink  string          `json:"transfer_link,omitempty" gorm:"type:varchar(512)"`
	ChargedTo     string          `json:"charged_to,omitempty" gorm:"type:varchar(255)"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(20,4);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null"`
	Status        string          `json:"status" gorm:"type:varchar(32);not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (FeeLog) TableName() string { return "fee_logs" }

// FeeProfile is a platform fee configured per fee type. The most recently
// updated enabled profile of a type is the one charged.
type FeeProfile struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Service     string          `json:"service" gorm:"type:varchar(64);not null;index"`
	FeeType     string          `json:"fee_type" gorm:"type:varchar(64);not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(20,4);not null"`
	Currency    string          `json:"currency" gorm:"type:varchar(3);not null"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	Enabled     bool            `json:"enabled" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (FeeProfile) TableName() string { return "fee_profiles" }
