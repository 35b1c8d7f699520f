package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/fee/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateLog(ctx context.Context, db *gorm.DB, log *domain.FeeLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) FindLogByExternalLink(ctx context.Context, db *gorm.DB, link string) (*domain.FeeLog, error) {
	var item domain.FeeLog
	err := db.WithContext(ctx).
		Where("external_link = ?", link).
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

func (r *repo) ListLogsByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]domain.FeeLog, error) {
	var items []domain.FeeLog
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateLogStatus(ctx context.Context, db *gorm.DB, log *domain.FeeLog) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fee_logs SET status = ?, updated_at = ? WHERE id = ?`,
		log.Status, log.UpdatedAt, log.ID,
	).Error
}

func (r *repo) CreateProfile(ctx context.Context, db *gorm.DB, profile *domain.FeeProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FeeProfile, error) {
	var item domain.FeeProfile
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

func (r *repo) FindLatestEnabled(ctx context.Context, db *gorm.DB, service, feeType string) (*domain.FeeProfile, error) {
	var item domain.FeeProfile
	stmt := db.WithContext(ctx).Where("fee_type = ? AND enabled = ?", feeType, true)
	if service != "" {
		stmt = stmt.Where("service = ?", service)
	}
	err := stmt.Order("updated_at DESC, id DESC").Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListProfiles(ctx context.Context, db *gorm.DB) ([]domain.FeeProfile, error) {
	var items []domain.FeeProfile
	if err := db.WithContext(ctx).Order("service ASC, fee_type ASC, updated_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateProfileEnabled(ctx context.Context, db *gorm.DB, profile *domain.FeeProfile) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fee_profiles SET enabled = ?, updated_at = ? WHERE id = ?`,
		profile.Enabled, profile.UpdatedAt, profile.ID,
	).Error
}
