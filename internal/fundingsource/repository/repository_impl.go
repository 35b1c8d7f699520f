package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, source *domain.FundingSource) error {
	return db.WithContext(ctx).Create(source).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FundingSource, error) {
	var item domain.FundingSource
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.FundingSource, error) {
	var item domain.FundingSource
	err := db.WithContext(ctx).
		Where("provider = ? AND external_funding_id = ?", provider, externalID).
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

func (r *repo) ListByIdentity(ctx context.Context, db *gorm.DB, identityID snowflake.ID) ([]domain.FundingSource, error) {
	var items []domain.FundingSource
	err := db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, source *domain.FundingSource) error {
	if source == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE funding_sources
		 SET type = ?, bank_name = ?, name = ?, last4 = ?, pending_microdeposit = ?, deleted = ?, updated_at = ?
		 WHERE id = ?`,
		source.Type,
		source.BankName,
		source.Name,
		source.Last4,
		source.PendingMicrodeposit,
		source.Deleted,
		source.UpdatedAt,
		source.ID,
	).Error
}
