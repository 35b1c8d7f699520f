package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Subscription, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, sub *Subscription) error
	UpdateFunding(ctx context.Context, db *gorm.DB, sub *Subscription) error
	UpdateBilling(ctx context.Context, db *gorm.DB, sub *Subscription) error
}
