package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	// CreateInstallments generates the schedule of a subscription once. A
	// non-nil tx joins the caller's database transaction.
	CreateInstallments(ctx context.Context, tx *gorm.DB, schedule Schedule) ([]Installment, error)
	Advance(ctx context.Context, id string, outcome Outcome) (*Installment, error)
	MarkPending(ctx context.Context, id string, transactionID snowflake.ID) (*Installment, error)
	Notify(ctx context.Context, id string) (*Installment, error)
	PayableBalance(ctx context.Context, subscriptionID string, cost decimal.Decimal) (decimal.Decimal, error)

	Get(ctx context.Context, id string) (*Installment, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]Installment, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Installment, error)
	ListPending(ctx context.Context, limit int) ([]Installment, error)
}

type Schedule struct {
	SubscriptionID snowflake.ID
	Period         int
	Unit           string
	Start          time.Time
}

type Outcome struct {
	Success       bool
	TransactionID snowflake.ID
	At            time.Time
}
