package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/installment/domain"
	"github.com/railzwaylabs/paycore/internal/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries = 3
	defaultListLimit  = 100
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Config config.Config
	Clock  clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	clock      clock.Clock
	maxRetries int
}

func New(p Params) domain.Service {
	maxRetries := p.Config.Installment.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("installment.service"),
		repo:       p.Repo,
		genID:      p.GenID,
		clock:      p.Clock,
		maxRetries: maxRetries,
	}
}

func (s *Service) CreateInstallments(ctx context.Context, tx *gorm.DB, schedule domain.Schedule) ([]domain.Installment, error) {
	if tx == nil {
		tx = s.db
	}
	if schedule.SubscriptionID == 0 {
		return nil, apperr.Invalid("subscription_id", "required")
	}
	if schedule.Period <= 0 {
		return nil, apperr.Invalid("period", "must be positive")
	}
	unit := strings.ToLower(strings.TrimSpace(schedule.Unit))
	step, ok := domain.Step(unit)
	if !ok {
		return nil, apperr.Invalid("unit", "must be one of day, month, year")
	}

	count, err := s.repo.CountBySubscription(ctx, tx, schedule.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("installment", "installments already exist for subscription "+schedule.SubscriptionID.String())
	}

	now := s.clock.Now(ctx)
	start := schedule.Start
	if start.IsZero() {
		start = now
	}
	items := make([]domain.Installment, 0, schedule.Period)
	for i := 0; i < schedule.Period; i++ {
		items = append(items, domain.Installment{
			ID:             s.genID.Generate(),
			SubscriptionID: schedule.SubscriptionID,
			Sequence:       i + 1,
			Status:         domain.StatusEmpty,
			DueAt:          start.Add(time.Duration(i) * step),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if err := s.repo.CreateBatch(ctx, tx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Advance applies a charge outcome. Failures count toward the retry ceiling;
// the failure that takes the count past it exhausts the installment.
func (s *Service) Advance(ctx context.Context, id string, outcome domain.Outcome) (*domain.Installment, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == domain.StatusProcessed || item.Exhausted {
		return nil, apperr.Conflict("installment", "installment is already settled")
	}

	at := outcome.At
	if at.IsZero() {
		at = s.clock.Now(ctx)
	}
	from := item.Status
	item.StatusChangedAt = &at
	item.UpdatedAt = s.clock.Now(ctx)
	if outcome.TransactionID != 0 {
		item.LastTransactionID = outcome.TransactionID
	}

	result := "processed"
	if outcome.Success {
		item.Status = domain.StatusProcessed
	} else {
		item.Status = domain.StatusFailed
		item.Retries++
		result = "failed"
		if item.Retries > s.maxRetries {
			item.Exhausted = true
			result = "exhausted"
		}
	}

	ok, err := s.repo.UpdateFrom(ctx, s.db, item, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("installment", "installment changed concurrently")
	}
	observability.InstallmentsAdvanced.WithLabelValues(result).Inc()
	return item, nil
}

// MarkPending links the charge in flight. Only a payable installment can
// move to pending, so a second charge loses the race.
func (s *Service) MarkPending(ctx context.Context, id string, transactionID snowflake.ID) (*domain.Installment, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == domain.StatusPending && item.LastTransactionID == transactionID {
		return item, nil
	}
	if !item.Payable() {
		return nil, apperr.Conflict("installment", "installment is "+item.Status)
	}

	now := s.clock.Now(ctx)
	from := item.Status
	item.Status = domain.StatusPending
	item.StatusChangedAt = &now
	item.LastTransactionID = transactionID
	item.UpdatedAt = now
	ok, err := s.repo.UpdateFrom(ctx, s.db, item, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("installment", "installment changed concurrently")
	}
	return item, nil
}

// Notify counts a reminder. The count is read back inside the increment's
// transaction, so concurrent reminders each see their own number.
func (s *Service) Notify(ctx context.Context, id string) (*domain.Installment, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	item.NotifiedAt = &now
	item.UpdatedAt = now

	var counted *domain.Installment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateNotification(ctx, tx, item); err != nil {
			return err
		}
		fresh, err := s.repo.FindByID(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return apperr.NotFound("installment", id)
		}
		counted = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counted, nil
}

// PayableBalance is the cost of every installment not yet charged.
func (s *Service) PayableBalance(ctx context.Context, subscriptionID string, cost decimal.Decimal) (decimal.Decimal, error) {
	sub, err := parseID("subscription_id", subscriptionID)
	if err != nil {
		return decimal.Zero, err
	}
	count, err := s.repo.CountByStatus(ctx, s.db, sub, domain.StatusEmpty)
	if err != nil {
		return decimal.Zero, err
	}
	return cost.Mul(decimal.NewFromInt(count)), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Installment, error) {
	return s.load(ctx, id)
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.Installment, error) {
	sub, err := parseID("subscription_id", subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBySubscription(ctx, s.db, sub)
}

func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Installment, error) {
	if now.IsZero() {
		now = s.clock.Now(ctx)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListDue(ctx, s.db, now, limit)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]domain.Installment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListPending(ctx, s.db, limit)
}

func (s *Service) load(ctx context.Context, id string) (*domain.Installment, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("installment", id)
	}
	return item, nil
}

func parseID(field, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.Invalid(field, "malformed")
	}
	return id, nil
}
