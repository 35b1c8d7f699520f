package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment types. Only TypePay is guarded against a second concurrent charge.
const (
	TypePay         = "pay"
	TypeInstallment = "installment"
	TypeTransfer    = "transfer"
	TypePayment     = "payment"
)

// Transfer attempt states.
const (
	AttemptStarted   = "started"
	AttemptCompleted = "completed"
	AttemptFailed    = "failed"
	AttemptAmbiguous = "ambiguous"
)

// DefaultDescriptor is used when no descriptor is configured for a type.
const DefaultDescriptor = "not_set"

// Transaction is the local record of one processor transfer. Correlation id,
// amount and party links never change after creation.
type Transaction struct {
	ID                    snowflake.ID      `json:"id" gorm:"primaryKey"`
	CorrelationID         string            `json:"correlation_id" gorm:"type:varchar(128);not null;uniqueIndex"`
	Provider              string            `json:"provider" gorm:"type:varchar(32);not null;index:idx_transactions_external"`
	ExternalTransferID    string            `json:"external_transfer_id" gorm:"type:varchar(255);not null;index:idx_transactions_external"`
	Amount                decimal.Decimal   `json:"amount" gorm:"type:numeric(20,4);not null"`
	Currency              string            `json:"currency" gorm:"type:varchar(3);not null"`
	Status                string            `json:"status" gorm:"type:varchar(16);not null;index"`
	Type                  string            `json:"type" gorm:"type:varchar(32);not null"`
	Descriptor            string            `json:"descriptor" gorm:"type:varchar(64)"`
	SourceIdentityID      snowflake.ID      `json:"source_identity_id" gorm:"not null;index"`
	SourceFundingID       snowflake.ID      `json:"source_funding_id" gorm:"not null;index:idx_transactions_guard"`
	DestinationIdentityID snowflake.ID      `json:"destination_identity_id" gorm:"not null;index"`
	DestinationFundingID  snowflake.ID      `json:"destination_funding_id" gorm:"not null"`
	SubscriptionID        snowflake.ID      `json:"subscription_id,omitempty" gorm:"index:idx_transactions_guard"`
	InstallmentID         snowflake.ID      `json:"installment_id,omitempty" gorm:"index"`
	FailureReason         string            `json:"failure_reason,omitempty" gorm:"type:text"`
	Metadata              datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt             time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time         `json:"updated_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// Settled reports a status that no longer changes on its own.
func (t *Transaction) Settled() bool {
	return IsTerminal(t.Status)
}

// TransferAttempt claims a correlation id while the processor call is in
// flight. Request holds what is needed to record the transfer if the
// processor outcome is only learned later.
type TransferAttempt struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	CorrelationID    string         `json:"correlation_id" gorm:"type:varchar(128);not null;uniqueIndex"`
	Provider         string         `json:"provider" gorm:"type:varchar(32);not null"`
	SourceIdentityID snowflake.ID   `json:"source_identity_id" gorm:"not null"`
	State            string         `json:"state" gorm:"type:varchar(16);not null;index"`
	Error            string         `json:"error,omitempty" gorm:"type:text"`
	Request          datatypes.JSON `json:"request" gorm:"type:json"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null;index"`
}

func (TransferAttempt) TableName() string { return "transfer_attempts" }

// AttemptRequest is the snapshot stored on a TransferAttempt.
type AttemptRequest struct {
	Type                  string            `json:"type"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Descriptor            string            `json:"descriptor"`
	SourceIdentityID      snowflake.ID      `json:"source_identity_id"`
	SourceFundingID       snowflake.ID      `json:"source_funding_id"`
	DestinationIdentityID snowflake.ID      `json:"destination_identity_id"`
	DestinationFundingID  snowflake.ID      `json:"destination_funding_id"`
	SubscriptionID        snowflake.ID      `json:"subscription_id"`
	InstallmentID         snowflake.ID      `json:"installment_id"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

type PaymentDescriptor struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentType string       `json:"payment_type" gorm:"type:varchar(32);not null;uniqueIndex"`
	Descriptor  string       `json:"descriptor" gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (PaymentDescriptor) TableName() string { return "payment_descriptors" }

// Payment is a one-off charge made through the single payment processor.
type Payment struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	Provider          string          `json:"provider" gorm:"type:varchar(32);not null"`
	ExternalPaymentID string          `json:"external_payment_id" gorm:"type:varchar(255);not null;index"`
	IdentityID        snowflake.ID    `json:"identity_id" gorm:"not null;index"`
	FundingSourceID   snowflake.ID    `json:"funding_source_id,omitempty"`
	Type              string          `json:"type" gorm:"type:varchar(32);not null"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(20,4);not null"`
	Currency          string          `json:"currency" gorm:"type:varchar(3);not null"`
	Status            string          `json:"status" gorm:"type:varchar(32);not null"`
	Description       string          `json:"description,omitempty" gorm:"type:text"`
	IdempotencyKey    string          `json:"-" gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`

	// ClientSecret is returned by the processor for client-side confirmation
	// and never stored.
	ClientSecret string `json:"client_secret,omitempty" gorm:"-"`
}

func (Payment) TableName() string { return "payments" }
