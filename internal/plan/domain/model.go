package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Plan struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:varchar(255);not null"`
	Code        string       `json:"code" gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string       `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// PlanCost is a recurring price of a plan. RecurrencePeriod is the number of
// installments a subscription to it generates.
type PlanCost struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	PlanID            snowflake.ID    `json:"plan_id" gorm:"not null;index"`
	Cost              decimal.Decimal `json:"cost" gorm:"type:numeric(20,4);not null"`
	Currency          string          `json:"currency" gorm:"type:varchar(3);not null"`
	RecurrencePeriod  int             `json:"recurrence_period" gorm:"not null"`
	RecurrenceUnit    string          `json:"recurrence_unit" gorm:"type:varchar(16);not null"`
	Provider          string          `json:"provider,omitempty" gorm:"type:varchar(32)"`
	ExternalProductID string          `json:"external_product_id,omitempty" gorm:"type:varchar(255)"`
	ExternalPriceID   string          `json:"external_price_id,omitempty" gorm:"type:varchar(255)"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`

	Plan *Plan `json:"plan,omitempty" gorm:"-"`
}

func (PlanCost) TableName() string { return "plan_costs" }
