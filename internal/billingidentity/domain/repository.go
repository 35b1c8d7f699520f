package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, identity *BillingIdentity) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillingIdentity, error)
	// FindLive returns the identity that is not offboarded for the triple.
	FindLive(ctx context.Context, db *gorm.DB, partyID, provider, role string) (*BillingIdentity, error)
	FindDefault(ctx context.Context, db *gorm.DB, partyID, provider string) (*BillingIdentity, error)
	FindByExternalCustomerID(ctx context.Context, db *gorm.DB, provider, externalID string) (*BillingIdentity, error)
	CountLive(ctx context.Context, db *gorm.DB, partyID, provider string) (int64, error)
	ListByParty(ctx context.Context, db *gorm.DB, partyID string) ([]BillingIdentity, error)
	ClearDefault(ctx context.Context, db *gorm.DB, partyID, provider string) error
	Update(ctx context.Context, db *gorm.DB, identity *BillingIdentity) error
}
