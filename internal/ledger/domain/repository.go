package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*Transaction, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*Transaction, error)
	// CountActive counts transactions of the type that have not failed or
	// been cancelled for the subscription and source pair.
	CountActive(ctx context.Context, db *gorm.DB, subscriptionID, sourceFundingID snowflake.ID, paymentType string) (int64, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
	UpdateTransactionStatus(ctx context.Context, db *gorm.DB, tx *Transaction) error

	CreateAttempt(ctx context.Context, db *gorm.DB, attempt *TransferAttempt) error
	FindAttempt(ctx context.Context, db *gorm.DB, correlationID string) (*TransferAttempt, error)
	// ReclaimFailedAttempt moves a failed attempt for the same correlation id
	// back to started and reports whether this caller won it.
	ReclaimFailedAttempt(ctx context.Context, db *gorm.DB, attempt *TransferAttempt) (bool, error)
	UpdateAttempt(ctx context.Context, db *gorm.DB, attempt *TransferAttempt) error
	ListStaleAttempts(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]TransferAttempt, error)

	UpsertDescriptor(ctx context.Context, db *gorm.DB, descriptor *PaymentDescriptor) error
	FindDescriptor(ctx context.Context, db *gorm.DB, paymentType string) (*PaymentDescriptor, error)
	ListDescriptors(ctx context.Context, db *gorm.DB) ([]PaymentDescriptor, error)

	CreatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Payment, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
}
