package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var item domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*domain.Transaction, error) {
	var item domain.Transaction
	if err := db.WithContext(ctx).Where("correlation_id = ?", correlationID).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).
		Where("provider = ? AND external_transfer_id = ?", provider, externalID).
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

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, subscriptionID, sourceFundingID snowflake.ID, paymentType string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("subscription_id = ? AND source_funding_id = ? AND type = ?", subscriptionID, sourceFundingID, paymentType).
		Where("status NOT IN ?", []string{gateway.StatusFailed, gateway.StatusCancelled}).
		Count(&count).Error
	return count, err
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	var items []domain.Transaction
	stmt := db.WithContext(ctx).Model(&domain.Transaction{})

	if filter.Provider != "" {
		stmt = stmt.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	for column, value := range map[string]string{
		"source_identity_id":      filter.SourceIdentityID,
		"destination_identity_id": filter.DestinationIdentityID,
		"subscription_id":         filter.SubscriptionID,
		"installment_id":          filter.InstallmentID,
	} {
		if value == "" {
			continue
		}
		id, err := snowflake.ParseString(value)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where(column+" = ?", id)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateTransactionStatus touches only the mutable columns.
func (r *repo) UpdateTransactionStatus(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	if tx == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE transactions SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		tx.Status,
		tx.FailureReason,
		tx.UpdatedAt,
		tx.ID,
	).Error
}

func (r *repo) CreateAttempt(ctx context.Context, db *gorm.DB, attempt *domain.TransferAttempt) error {
	return db.WithContext(ctx).Create(attempt).Error
}

func (r *repo) FindAttempt(ctx context.Context, db *gorm.DB, correlationID string) (*domain.TransferAttempt, error) {
	var item domain.TransferAttempt
	if err := db.WithContext(ctx).Where("correlation_id = ?", correlationID).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ReclaimFailedAttempt(ctx context.Context, db *gorm.DB, attempt *domain.TransferAttempt) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE transfer_attempts SET state = ?, error = ?, request = ?, updated_at = ? WHERE correlation_id = ? AND state = ?`,
		domain.AttemptStarted,
		"",
		attempt.Request,
		attempt.UpdatedAt,
		attempt.CorrelationID,
		domain.AttemptFailed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateAttempt(ctx context.Context, db *gorm.DB, attempt *domain.TransferAttempt) error {
	if attempt == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE transfer_attempts SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		attempt.State,
		attempt.Error,
		attempt.UpdatedAt,
		attempt.ID,
	).Error
}

func (r *repo) ListStaleAttempts(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.TransferAttempt, error) {
	var items []domain.TransferAttempt
	stmt := db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", []string{domain.AttemptStarted, domain.AttemptAmbiguous}, before).
		Order("updated_at ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertDescriptor(ctx context.Context, db *gorm.DB, descriptor *domain.PaymentDescriptor) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"descriptor", "updated_at"}),
	}).Create(descriptor).Error
}

func (r *repo) FindDescriptor(ctx context.Context, db *gorm.DB, paymentType string) (*domain.PaymentDescriptor, error) {
	var item domain.PaymentDescriptor
	if err := db.WithContext(ctx).Where("payment_type = ?", paymentType).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListDescriptors(ctx context.Context, db *gorm.DB) ([]domain.PaymentDescriptor, error) {
	var items []domain.PaymentDescriptor
	if err := db.WithContext(ctx).Order("payment_type ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPaymentByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Payment, error) {
	var item domain.Payment
	if err := db.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	if payment == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET amount = ?, currency = ?, status = ?, description = ?, updated_at = ? WHERE id = ?`,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Description,
		payment.UpdatedAt,
		payment.ID,
	).Error
}
