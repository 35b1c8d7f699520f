package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/installment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateBatch(ctx context.Context, db *gorm.DB, items []domain.Installment) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Installment, error) {
	var item domain.Installment
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

func (r *repo) CountBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("subscription_id = ?", subscriptionID).
		Count(&count).Error
	return count, err
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, status string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, status).
		Count(&count).Error
	return count, err
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.Installment, error) {
	var items []domain.Installment
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("sequence ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Installment, error) {
	var items []domain.Installment
	stmt := db.WithContext(ctx).
		Table("installments AS i").
		Select("i.*").
		Joins("JOIN subscriptions AS s ON s.id = i.subscription_id").
		Where("s.active = ? AND s.cancelled = ?", true, false).
		Where("i.status IN ? AND i.exhausted = ? AND i.due_at <= ?",
			[]string{domain.StatusEmpty, domain.StatusFailed}, false, now).
		Order("i.due_at ASC, i.id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, limit int) ([]domain.Installment, error) {
	var items []domain.Installment
	stmt := db.WithContext(ctx).
		Where("status = ? AND last_transaction_id <> 0", domain.StatusPending).
		Order("updated_at ASC, id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateFrom(ctx context.Context, db *gorm.DB, item *domain.Installment, from string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE installments
		SET status = ?, status_changed_at = ?, retries = ?, exhausted = ?, last_transaction_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		item.Status, item.StatusChangedAt, item.Retries, item.Exhausted, item.LastTransactionID, item.UpdatedAt,
		item.ID, from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateNotification(ctx context.Context, db *gorm.DB, item *domain.Installment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE installments SET notifications = notifications + 1, notified_at = ?, updated_at = ? WHERE id = ?`,
		item.NotifiedAt, item.UpdatedAt, item.ID,
	).Error
}
