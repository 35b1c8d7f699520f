package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/gateway"
)

// Verification states.
const (
	StateUnverified = "unverified"
	StateVerified   = "verified"
	StateDeleted    = "deleted"
)

type FundingSource struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	IdentityID          snowflake.ID `json:"identity_id" gorm:"not null;index"`
	Provider            string       `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_funding_sources_external"`
	ExternalFundingID   string       `json:"external_funding_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_funding_sources_external"`
	Type                string       `json:"type" gorm:"type:varchar(16);not null"`
	BankName            string       `json:"bank_name,omitempty" gorm:"type:varchar(255)"`
	Name                string       `json:"name" gorm:"type:varchar(255)"`
	Last4               string       `json:"last4,omitempty" gorm:"type:varchar(4)"`
	PendingMicrodeposit bool         `json:"pending_microdeposit" gorm:"not null"`
	Deleted             bool         `json:"deleted" gorm:"not null;default:false"`
	CreatedAt           time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time    `json:"updated_at" gorm:"not null"`
}

func (FundingSource) TableName() string { return "funding_sources" }

func (f *FundingSource) State() string {
	switch {
	case f.Deleted:
		return StateDeleted
	case f.PendingMicrodeposit:
		return StateUnverified
	default:
		return StateVerified
	}
}

// IsValid reports whether transfers may draw on or pay into the source.
// Balance sources are processor wallets and are never charged directly.
func IsValid(f *FundingSource) bool {
	if f == nil {
		return false
	}
	return !f.PendingMicrodeposit && f.Type != gateway.FundingTypeBalance && !f.Deleted
}
