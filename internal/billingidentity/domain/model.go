package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"gorm.io/datatypes"
)

// Party types.
const (
	PartyBusiness = "business"
	PartyCustomer = "customer"
)

// Roles an identity plays at its processor.
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
)

// BillingIdentity maps an internal party to its identifier at one processor.
// External ids never change once assigned.
type BillingIdentity struct {
	ID                 snowflake.ID      `json:"id" gorm:"primaryKey"`
	PartyID            string            `json:"party_id" gorm:"type:varchar(64);not null;index:idx_billing_identities_party"`
	PartyType          string            `json:"party_type" gorm:"type:varchar(16);not null"`
	Provider           string            `json:"provider" gorm:"type:varchar(32);not null;index:idx_billing_identities_party"`
	Role               string            `json:"role" gorm:"type:varchar(16);not null"`
	ExternalCustomerID string            `json:"external_customer_id,omitempty" gorm:"type:varchar(255)"`
	ExternalAccountID  string            `json:"external_account_id,omitempty" gorm:"type:varchar(255)"`
	IsDefault          bool              `json:"is_default" gorm:"not null;default:false"`
	Email              string            `json:"email" gorm:"type:varchar(255)"`
	FirstName          string            `json:"first_name" gorm:"type:varchar(255)"`
	LastName           string            `json:"last_name" gorm:"type:varchar(255)"`
	BusinessName       string            `json:"business_name,omitempty" gorm:"type:varchar(255)"`
	Phone              string            `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt          time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time         `json:"updated_at" gorm:"not null"`
	DeletedAt          *time.Time        `json:"deleted_at,omitempty"`
}

func (BillingIdentity) TableName() string { return "billing_identities" }

// Owner addresses the identity at its processor.
func (b *BillingIdentity) Owner() gateway.Owner {
	if b.Role == RoleMerchant {
		return gateway.Owner{AccountID: b.ExternalAccountID}
	}
	return gateway.Owner{CustomerID: b.ExternalCustomerID}
}

func (b *BillingIdentity) Deleted() bool { return b.DeletedAt != nil }
