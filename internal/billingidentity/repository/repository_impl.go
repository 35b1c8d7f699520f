package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, identity *domain.BillingIdentity) error {
	return db.WithContext(ctx).Create(identity).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BillingIdentity, error) {
	var item domain.BillingIdentity
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

func (r *repo) FindLive(ctx context.Context, db *gorm.DB, partyID, provider, role string) (*domain.BillingIdentity, error) {
	var item domain.BillingIdentity
	err := db.WithContext(ctx).
		Where("party_id = ? AND provider = ? AND role = ? AND deleted_at IS NULL", partyID, provider, role).
		Order("created_at ASC").
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

func (r *repo) FindDefault(ctx context.Context, db *gorm.DB, partyID, provider string) (*domain.BillingIdentity, error) {
	var item domain.BillingIdentity
	err := db.WithContext(ctx).
		Where("party_id = ? AND provider = ? AND is_default = ? AND deleted_at IS NULL", partyID, provider, true).
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

func (r *repo) FindByExternalCustomerID(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.BillingIdentity, error) {
	var item domain.BillingIdentity
	err := db.WithContext(ctx).
		Where("provider = ? AND (external_customer_id = ? OR external_account_id = ?)", provider, externalID, externalID).
		Order("created_at ASC").
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

func (r *repo) CountLive(ctx context.Context, db *gorm.DB, partyID, provider string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.BillingIdentity{}).
		Where("party_id = ? AND provider = ? AND deleted_at IS NULL", partyID, provider).
		Count(&count).Error
	return count, err
}

func (r *repo) ListByParty(ctx context.Context, db *gorm.DB, partyID string) ([]domain.BillingIdentity, error) {
	var items []domain.BillingIdentity
	err := db.WithContext(ctx).
		Where("party_id = ?", partyID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClearDefault(ctx context.Context, db *gorm.DB, partyID, provider string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_identities SET is_default = ? WHERE party_id = ? AND provider = ? AND is_default = ?`,
		false,
		partyID,
		provider,
		true,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, identity *domain.BillingIdentity) error {
	if identity == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Model(&domain.BillingIdentity{}).
		Where("id = ?", identity.ID).
		Updates(map[string]any{
			"is_default":    identity.IsDefault,
			"email":         identity.Email,
			"first_name":    identity.FirstName,
			"last_name":     identity.LastName,
			"business_name": identity.BusinessName,
			"phone":         identity.Phone,
			"metadata":      identity.Metadata,
			"updated_at":    identity.UpdatedAt,
			"deleted_at":    identity.DeletedAt,
		}).Error
}
