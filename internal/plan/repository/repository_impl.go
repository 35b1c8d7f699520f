package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreatePlan(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var item domain.Plan
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

func (r *repo) FindPlanByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).
		Where("code = ?", code).
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

func (r *repo) UpdatePlan(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plans SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		plan.Name, plan.Description, plan.UpdatedAt, plan.ID,
	).Error
}

func (r *repo) CreateCost(ctx context.Context, db *gorm.DB, cost *domain.PlanCost) error {
	return db.WithContext(ctx).Create(cost).Error
}

func (r *repo) FindCostByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PlanCost, error) {
	var item domain.PlanCost
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

func (r *repo) ListCosts(ctx context.Context, db *gorm.DB) ([]domain.PlanCost, error) {
	var items []domain.PlanCost
	if err := db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPlans(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Plan, error) {
	var items []domain.Plan
	if len(ids) == 0 {
		return items, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateCost(ctx context.Context, db *gorm.DB, cost *domain.PlanCost) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plan_costs
		SET cost = ?, currency = ?, recurrence_period = ?, recurrence_unit = ?, external_price_id = ?, updated_at = ?
		WHERE id = ?`,
		cost.Cost, cost.Currency, cost.RecurrencePeriod, cost.RecurrenceUnit, cost.ExternalPriceID, cost.UpdatedAt, cost.ID,
	).Error
}
