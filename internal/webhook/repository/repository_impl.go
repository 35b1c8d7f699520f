package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/webhook/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateSubscription(ctx context.Context, db *gorm.DB, item *domain.Subscription) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) FindSubscriptionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
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

func (r *repo) ListSubscriptions(ctx context.Context, db *gorm.DB, provider string) ([]domain.Subscription, error) {
	var items []domain.Subscription
	stmt := db.WithContext(ctx).Model(&domain.Subscription{})
	if provider != "" {
		stmt = stmt.Where("provider = ?", provider)
	}
	if err := stmt.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateSubscriptionPaused(ctx context.Context, db *gorm.DB, item *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_subscriptions SET paused = ?, updated_at = ? WHERE id = ?`,
		item.Paused, item.UpdatedAt, item.ID,
	).Error
}

func (r *repo) DeleteSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM webhook_subscriptions WHERE id = ?`, id).Error
}

func (r *repo) CreateEvent(ctx context.Context, db *gorm.DB, item *domain.Event) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", provider, externalID).
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

func (r *repo) FindEventByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Event, error) {
	var item domain.Event
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

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, provider string, limit int) ([]domain.Event, error) {
	var items []domain.Event
	stmt := db.WithContext(ctx).Model(&domain.Event{}).Omit("payload")
	if provider != "" {
		stmt = stmt.Where("provider = ?", provider)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
