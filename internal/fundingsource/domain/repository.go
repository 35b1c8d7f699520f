package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, source *FundingSource) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FundingSource, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*FundingSource, error)
	ListByIdentity(ctx context.Context, db *gorm.DB, identityID snowflake.ID) ([]FundingSource, error)
	Update(ctx context.Context, db *gorm.DB, source *FundingSource) error
}
