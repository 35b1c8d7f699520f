package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Subscription, error) {
	var items []domain.Subscription
	stmt := db.WithContext(ctx).Model(&domain.Subscription{})
	if filter.PayerIdentityID != "" {
		stmt = stmt.Where("payer_identity_id = ?", filter.PayerIdentityID)
	}
	if filter.ReceiverIdentityID != "" {
		stmt = stmt.Where("receiver_identity_id = ?", filter.ReceiverIdentityID)
	}
	switch filter.Status {
	case domain.StatusCancelled:
		stmt = stmt.Where("cancelled = ?", true)
	case domain.StatusActive:
		stmt = stmt.Where("active = ? AND cancelled = ?", true, false)
	case domain.StatusCreated:
		stmt = stmt.Where("active = ? AND cancelled = ?", false, false)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		SET active = ?, cancelled = ?, cancelled_at = ?, external_subscription_id = ?, updated_at = ?
		WHERE id = ?`,
		sub.Active, sub.Cancelled, sub.CancelledAt, sub.ExternalSubscriptionID, sub.UpdatedAt, sub.ID,
	).Error
}

func (r *repo) UpdateFunding(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET sender_funding_id = ?, receiver_funding_id = ?, updated_at = ? WHERE id = ?`,
		sub.SenderFundingID, sub.ReceiverFundingID, sub.UpdatedAt, sub.ID,
	).Error
}

func (r *repo) UpdateBilling(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET billing_next_at = ?, billing_last_at = ?, updated_at = ? WHERE id = ?`,
		sub.BillingNextAt, sub.BillingLastAt, sub.UpdatedAt, sub.ID,
	).Error
}
