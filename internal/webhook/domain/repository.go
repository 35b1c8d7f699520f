package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateSubscription(ctx context.Context, db *gorm.DB, item *Subscription) error
	FindSubscriptionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	ListSubscriptions(ctx context.Context, db *gorm.DB, provider string) ([]Subscription, error)
	UpdateSubscriptionPaused(ctx context.Context, db *gorm.DB, item *Subscription) error
	DeleteSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	CreateEvent(ctx context.Context, db *gorm.DB, item *Event) error
	FindEvent(ctx context.Context, db *gorm.DB, provider, externalID string) (*Event, error)
	FindEventByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	ListEvents(ctx context.Context, db *gorm.DB, provider string, limit int) ([]Event, error)
}
