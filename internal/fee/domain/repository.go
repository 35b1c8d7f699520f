package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateLog(ctx context.Context, db *gorm.DB, log *FeeLog) error
	FindLogByExternalLink(ctx context.Context, db *gorm.DB, link string) (*FeeLog, error)
	ListLogsByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]FeeLog, error)
	UpdateLogStatus(ctx context.Context, db *gorm.DB, log *FeeLog) error

	CreateProfile(ctx context.Context, db *gorm.DB, profile *FeeProfile) error
	FindProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FeeProfile, error)
	// FindLatestEnabled returns the most recently updated enabled profile of
	// the type. An empty service matches any service.
	FindLatestEnabled(ctx context.Context, db *gorm.DB, service, feeType string) (*FeeProfile, error)
	ListProfiles(ctx context.Context, db *gorm.DB) ([]FeeProfile, error)
	UpdateProfileEnabled(ctx context.Context, db *gorm.DB, profile *FeeProfile) error
}
