package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreatePlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindPlanByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	UpdatePlan(ctx context.Context, db *gorm.DB, plan *Plan) error

	CreateCost(ctx context.Context, db *gorm.DB, cost *PlanCost) error
	FindCostByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PlanCost, error)
	ListCosts(ctx context.Context, db *gorm.DB) ([]PlanCost, error)
	ListPlans(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Plan, error)
	UpdateCost(ctx context.Context, db *gorm.DB, cost *PlanCost) error
}
