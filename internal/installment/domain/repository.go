package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateBatch(ctx context.Context, db *gorm.DB, items []Installment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Installment, error)
	CountBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, status string) (int64, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]Installment, error)
	// ListDue returns payable installments due at or before now whose
	// subscription is active and not cancelled.
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Installment, error)
	ListPending(ctx context.Context, db *gorm.DB, limit int) ([]Installment, error)
	// UpdateFrom writes the mutable fields only while the stored status
	// still equals from. It reports whether a row was updated.
	UpdateFrom(ctx context.Context, db *gorm.DB, item *Installment, from string) (bool, error)
	UpdateNotification(ctx context.Context, db *gorm.DB, item *Installment) error
}
