package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Identities identitydomain.Service
	Gateways   *gateway.Set
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	identities identitydomain.Service
	gateways   *gateway.Set
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("plan.service"),
		repo:       p.Repo,
		genID:      p.GenID,
		identities: p.Identities,
		gateways:   p.Gateways,
		clock:      p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.PlanCost, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RecurrenceUnit = strings.ToLower(strings.TrimSpace(req.RecurrenceUnit))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if !req.Cost.IsPositive() {
		return nil, apperr.Invalid("cost", "must be positive")
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	code := slug.Make(strings.TrimSpace(req.Code))
	if code == "" {
		code = slug.Make(req.Name)
	}
	if code == "" {
		return nil, apperr.Invalid("code", "cannot be derived from name")
	}
	existing, err := s.repo.FindPlanByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("plan", "code "+code+" is taken")
	}

	now := s.clock.Now(ctx)
	plan := &domain.Plan{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		Code:        code,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cost := &domain.PlanCost{
		ID:               s.genID.Generate(),
		PlanID:           plan.ID,
		Cost:             req.Cost,
		Currency:         req.Currency,
		RecurrencePeriod: req.RecurrencePeriod,
		RecurrenceUnit:   req.RecurrenceUnit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	gw := s.gateways.Subscription
	if gw.SupportsRecurring() {
		accountID, err := s.accountID(ctx, req.OwnerIdentityID)
		if err != nil {
			return nil, err
		}
		product, err := gw.CreateProduct(ctx, gateway.ProductInput{
			Name:          plan.Name,
			AccountID:     accountID,
			Price:         cost.Cost,
			Currency:      cost.Currency,
			Interval:      cost.RecurrenceUnit,
			IntervalCount: 1,
		})
		if err != nil {
			return nil, err
		}
		cost.Provider = gw.Provider()
		cost.ExternalProductID = product.ID
		cost.ExternalPriceID = product.PriceID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreatePlan(ctx, tx, plan); err != nil {
			return err
		}
		return s.repo.CreateCost(ctx, tx, cost)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("plan", "code "+code+" is taken")
		}
		if cost.ExternalProductID != "" {
			s.log.Error("processor product has no local plan",
				zap.String("provider", cost.Provider),
				zap.String("external_product_id", cost.ExternalProductID),
				zap.Error(err),
			)
		}
		return nil, err
	}
	cost.Plan = plan
	return cost, nil
}

func (s *Service) Update(ctx context.Context, planCostID string, req domain.UpdateRequest) (*domain.PlanCost, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.RecurrenceUnit != nil {
		unit := strings.ToLower(strings.TrimSpace(*req.RecurrenceUnit))
		req.RecurrenceUnit = &unit
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if req.Cost != nil && !req.Cost.IsPositive() {
		return nil, apperr.Invalid("cost", "must be positive")
	}

	cost, err := s.Get(ctx, planCostID)
	if err != nil {
		return nil, err
	}
	plan := cost.Plan
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Cost != nil {
		cost.Cost = *req.Cost
	}
	if req.Currency != "" {
		cost.Currency = req.Currency
	}
	if req.RecurrencePeriod != nil {
		cost.RecurrencePeriod = *req.RecurrencePeriod
	}
	if req.RecurrenceUnit != nil {
		cost.RecurrenceUnit = *req.RecurrenceUnit
	}

	if cost.ExternalProductID != "" {
		gw, err := s.gateways.For(cost.Provider)
		if err != nil {
			return nil, err
		}
		accountID, err := s.accountID(ctx, req.OwnerIdentityID)
		if err != nil {
			return nil, err
		}
		product, err := gw.UpdateProduct(ctx, cost.ExternalProductID, gateway.ProductInput{
			Name:          plan.Name,
			AccountID:     accountID,
			Price:         cost.Cost,
			Currency:      cost.Currency,
			Interval:      cost.RecurrenceUnit,
			IntervalCount: 1,
		})
		if err != nil {
			return nil, err
		}
		if product.PriceID != "" {
			cost.ExternalPriceID = product.PriceID
		}
	}

	now := s.clock.Now(ctx)
	plan.UpdatedAt = now
	cost.UpdatedAt = now
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdatePlan(ctx, tx, plan); err != nil {
			return err
		}
		return s.repo.UpdateCost(ctx, tx, cost)
	})
	if err != nil {
		return nil, err
	}
	return cost, nil
}

func (s *Service) Get(ctx context.Context, planCostID string) (*domain.PlanCost, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(planCostID))
	if err != nil {
		return nil, apperr.Invalid("plan_cost_id", "malformed")
	}
	cost, err := s.repo.FindCostByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if cost == nil {
		return nil, apperr.NotFound("plan_cost", planCostID)
	}
	plan, err := s.repo.FindPlanByID(ctx, s.db, cost.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperr.NotFound("plan", cost.PlanID.String())
	}
	cost.Plan = plan
	return cost, nil
}

func (s *Service) List(ctx context.Context) ([]domain.PlanCost, error) {
	costs, err := s.repo.ListCosts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(costs))
	for _, c := range costs {
		ids = append(ids, c.PlanID)
	}
	plans, err := s.repo.ListPlans(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*domain.Plan, len(plans))
	for i := range plans {
		byID[plans[i].ID] = &plans[i]
	}
	for i := range costs {
		costs[i].Plan = byID[costs[i].PlanID]
	}
	return costs, nil
}

// accountID returns the connected account the product belongs to, if any.
func (s *Service) accountID(ctx context.Context, identityID string) (string, error) {
	if strings.TrimSpace(identityID) == "" {
		return "", nil
	}
	owner, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return "", err
	}
	return owner.ExternalAccountID, nil
}
