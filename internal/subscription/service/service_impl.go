package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	plandomain "github.com/railzwaylabs/paycore/internal/plan/domain"
	"github.com/railzwaylabs/paycore/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 100

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Identities     identitydomain.Service
	FundingSources fundingdomain.Service
	Plans          plandomain.Service
	Installments   installmentdomain.Service
	Ledger         ledgerdomain.Service
	Fees           feedomain.Service
	Gateways       *gateway.Set
	Clock          clock.Clock
	Config         config.Config
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	repo           domain.Repository
	genID          *snowflake.Node
	identities     identitydomain.Service
	fundingSources fundingdomain.Service
	plans          plandomain.Service
	installments   installmentdomain.Service
	ledger         ledgerdomain.Service
	fees           feedomain.Service
	gateways       *gateway.Set
	clock          clock.Clock
	feeTypes       []string
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("subscription.service"),
		repo:           p.Repo,
		genID:          p.GenID,
		identities:     p.Identities,
		fundingSources: p.FundingSources,
		plans:          p.Plans,
		installments:   p.Installments,
		ledger:         p.Ledger,
		fees:           p.Fees,
		gateways:       p.Gateways,
		clock:          p.Clock,
		feeTypes:       p.Config.Scheduler.FeeTypes,
	}
}

// draft carries everything resolved before the processor is called.
type draft struct {
	sub      *domain.Subscription
	cost     *plandomain.PlanCost
	payer    *identitydomain.BillingIdentity
	receiver *identitydomain.BillingIdentity
	sender   *fundingdomain.FundingSource
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Subscription, error) {
	if existing, err := s.replay(ctx, req.IdempotencyKey); existing != nil || err != nil {
		return existing, err
	}

	now := s.clock.Now(ctx)
	gw := s.gateways.Subscription
	d, err := s.prepare(ctx, gw, req, now)
	if err != nil {
		return nil, err
	}

	if gw.SupportsRecurring() {
		in, err := s.subscriptionInput(d, req)
		if err != nil {
			return nil, err
		}
		created, err := gw.CreateSubscription(ctx, in)
		if err != nil {
			return nil, err
		}
		d.sub.ExternalSubscriptionID = created.ID
		d.sub.ClientSecret = created.ClientSecret
	}

	compensate := func(ctx context.Context) error {
		return gw.CancelSubscription(ctx, d.sub.ExternalSubscriptionID, d.receiver.ExternalAccountID)
	}
	sub, err := s.persist(ctx, d, compensate)
	if err != nil {
		return nil, err
	}
	if req.Activate {
		return s.activate(ctx, sub)
	}
	return sub, nil
}

func (s *Service) CreateSchedule(ctx context.Context, req domain.CreateScheduleRequest) (*domain.Subscription, error) {
	gw := s.gateways.Subscription
	if !gw.SupportsRecurring() {
		return nil, apperr.Unsupported(gw.Provider(), gateway.OpCreateSubscriptionSchedule)
	}
	if existing, err := s.replay(ctx, req.IdempotencyKey); existing != nil || err != nil {
		return existing, err
	}

	now := s.clock.Now(ctx)
	start := req.StartAt
	immediate := start.IsZero() || !start.After(now)
	if immediate {
		start = now
	}
	d, err := s.prepare(ctx, gw, req.CreateRequest, start)
	if err != nil {
		return nil, err
	}

	in, err := s.subscriptionInput(d, req.CreateRequest)
	if err != nil {
		return nil, err
	}
	scheduleInput := gateway.ScheduleInput{SubscriptionInput: in}
	if !immediate {
		scheduleInput.StartAt = start
	}
	schedule, err := gw.CreateSubscriptionSchedule(ctx, scheduleInput)
	if err != nil {
		return nil, err
	}
	if immediate && schedule.SubscriptionID != "" {
		d.sub.ExternalSubscriptionID = schedule.SubscriptionID
	} else {
		d.sub.ExternalScheduleID = schedule.ID
	}

	compensate := func(ctx context.Context) error {
		if d.sub.ExternalScheduleID != "" {
			return gw.CancelSubscriptionSchedule(ctx, d.sub.ExternalScheduleID, d.receiver.ExternalAccountID)
		}
		return gw.CancelSubscription(ctx, d.sub.ExternalSubscriptionID, d.receiver.ExternalAccountID)
	}
	sub, err := s.persist(ctx, d, compensate)
	if err != nil {
		return nil, err
	}
	if req.Activate {
		return s.activate(ctx, sub)
	}
	return sub, nil
}

func (s *Service) replay(ctx context.Context, key string) (*domain.Subscription, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return s.repo.FindByIdempotencyKey(ctx, s.db, key)
}

// prepare validates the request and resolves parties, funding and plan. It
// makes no processor call.
func (s *Service) prepare(ctx context.Context, gw gateway.Gateway, req domain.CreateRequest, start time.Time) (*draft, error) {
	req.PayerPartyID = strings.TrimSpace(req.PayerPartyID)
	req.ReceiverPartyID = strings.TrimSpace(req.ReceiverPartyID)
	req.Description = strings.TrimSpace(req.Description)
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if req.EndAt != nil && !req.EndAt.After(start) {
		return nil, apperr.Invalid("end_at", "must be after the billing start")
	}
	if req.ApplicationFeePercent != nil && (req.ApplicationFeePercent.IsNegative() || req.ApplicationFeePercent.GreaterThan(hundred)) {
		return nil, apperr.Invalid("application_fee_percent", "must be between 0 and 100")
	}

	cost, err := s.plans.Get(ctx, req.PlanCostID)
	if err != nil {
		return nil, err
	}
	payer, err := s.identities.Resolve(ctx, identitydomain.ResolveRequest{
		PartyID:  req.PayerPartyID,
		Provider: gw.Provider(),
		Role:     identitydomain.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}
	receiver, err := s.identities.Resolve(ctx, identitydomain.ResolveRequest{
		PartyID:  req.ReceiverPartyID,
		Provider: gw.Provider(),
		Role:     identitydomain.RoleMerchant,
	})
	if err != nil {
		return nil, err
	}

	sender, err := s.ownedSource(ctx, "sender_funding_id", req.SenderFundingID, payer.ID)
	if err != nil {
		return nil, err
	}
	receiving, err := s.ownedSource(ctx, "receiver_funding_id", req.ReceiverFundingID, receiver.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	sub := &domain.Subscription{
		ID:                    s.genID.Generate(),
		PayerIdentityID:       payer.ID,
		ReceiverIdentityID:    receiver.ID,
		PlanCostID:            cost.ID,
		Provider:              gw.Provider(),
		ApplicationFeePercent: req.ApplicationFeePercent,
		Description:           req.Description,
		BillingStartAt:        start,
		BillingNextAt:         &start,
		BillingEndAt:          req.EndAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if sender != nil {
		sub.SenderFundingID = sender.ID
	}
	if receiving != nil {
		sub.ReceiverFundingID = receiving.ID
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		sub.IdempotencyKey = &key
	}
	return &draft{sub: sub, cost: cost, payer: payer, receiver: receiver, sender: sender}, nil
}

func (s *Service) subscriptionInput(d *draft, req domain.CreateRequest) (gateway.SubscriptionInput, error) {
	if d.cost.ExternalPriceID == "" {
		return gateway.SubscriptionInput{}, apperr.Invalid("plan_cost_id", "plan has no processor price")
	}
	in := gateway.SubscriptionInput{
		CustomerID:            d.payer.ExternalCustomerID,
		AccountID:             d.receiver.ExternalAccountID,
		PriceID:               d.cost.ExternalPriceID,
		ApplicationFeePercent: req.ApplicationFeePercent,
		Iterations:            int64(d.cost.RecurrencePeriod),
		Description:           d.sub.Description,
		IdempotencyKey:        strings.TrimSpace(req.IdempotencyKey),
	}
	if d.sender != nil {
		in.PaymentMethodID = d.sender.ExternalFundingID
	}
	return in, nil
}

// persist writes the subscription and its installments in one transaction.
// When the write fails a processor-side subscription is cancelled again.
func (s *Service) persist(ctx context.Context, d *draft, compensate func(context.Context) error) (*domain.Subscription, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, d.sub); err != nil {
			return err
		}
		_, err := s.installments.CreateInstallments(ctx, tx, installmentdomain.Schedule{
			SubscriptionID: d.sub.ID,
			Period:         d.cost.RecurrencePeriod,
			Unit:           d.cost.RecurrenceUnit,
			Start:          d.sub.BillingStartAt,
		})
		return err
	})
	if err == nil {
		return d.sub, nil
	}

	if d.sub.ExternalSubscriptionID != "" || d.sub.ExternalScheduleID != "" {
		if cerr := compensate(context.WithoutCancel(ctx)); cerr != nil {
			s.log.Error("failed to cancel processor subscription after local write failed",
				zap.String("subscription_id", d.sub.ID.String()),
				zap.String("external_subscription_id", d.sub.ExternalSubscriptionID),
				zap.String("external_schedule_id", d.sub.ExternalScheduleID),
				zap.Error(cerr),
			)
			err = errors.Join(err, cerr)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && d.sub.IdempotencyKey != nil {
		existing, ferr := s.repo.FindByIdempotencyKey(ctx, s.db, *d.sub.IdempotencyKey)
		if ferr == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, err
}

func (s *Service) ownedSource(ctx context.Context, field, id string, owner snowflake.ID) (*fundingdomain.FundingSource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	source, err := s.fundingSources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.IdentityID != owner {
		return nil, apperr.Invalid(field, "funding source belongs to another identity")
	}
	return source, nil
}

func (s *Service) Activate(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, sub)
}

func (s *Service) activate(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	if sub.Cancelled {
		return nil, apperr.Conflict("subscription", "subscription is cancelled")
	}
	if sub.Active {
		return sub, nil
	}
	if err := s.checkFunding(ctx, sub); err != nil {
		return nil, err
	}

	sub.Active = true
	sub.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateLifecycle(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// checkFunding holds for every active subscription: a verified sender and a
// live receiving source. Balance sources may receive but never pay.
func (s *Service) checkFunding(ctx context.Context, sub *domain.Subscription) error {
	if sub.SenderFundingID == 0 {
		return apperr.Invalid("sender_funding_id", "required for an active subscription")
	}
	if sub.ReceiverFundingID == 0 {
		return apperr.Invalid("receiver_funding_id", "required for an active subscription")
	}
	sender, err := s.fundingSources.Get(ctx, sub.SenderFundingID.String())
	if err != nil {
		return err
	}
	if !fundingdomain.IsValid(sender) {
		return apperr.Invalid("sender_funding_id", "funding source is "+sender.State())
	}
	receiver, err := s.fundingSources.Get(ctx, sub.ReceiverFundingID.String())
	if err != nil {
		return err
	}
	if receiver.Deleted || receiver.PendingMicrodeposit {
		return apperr.Invalid("receiver_funding_id", "funding source is "+receiver.State())
	}
	return nil
}

// deactivate parks a subscription whose funding stopped qualifying. It stays
// uncancelled so Activate can resume it once the sources are fixed.
func (s *Service) deactivate(ctx context.Context, sub *domain.Subscription, reason error) error {
	sub.Active = false
	sub.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateLifecycle(ctx, s.db, sub); err != nil {
		return err
	}
	s.log.Warn("subscription deactivated",
		zap.String("subscription_id", sub.ID.String()),
		zap.Error(reason),
	)
	return nil
}

// Cancel stops future charging. Installments and transactions are kept.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Cancelled {
		return sub, nil
	}
	if sub.ExternalSubscriptionID != "" {
		gw, receiver, err := s.processor(ctx, sub)
		if err != nil {
			return nil, err
		}
		if err := gw.CancelSubscription(ctx, sub.ExternalSubscriptionID, receiver.ExternalAccountID); err != nil {
			return nil, err
		}
	}
	return s.markCancelled(ctx, sub)
}

func (s *Service) CancelScheduled(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Cancelled {
		return sub, nil
	}
	if sub.ExternalScheduleID == "" {
		return nil, apperr.Conflict("subscription", "subscription has no processor schedule")
	}
	gw, receiver, err := s.processor(ctx, sub)
	if err != nil {
		return nil, err
	}
	if err := gw.CancelSubscriptionSchedule(ctx, sub.ExternalScheduleID, receiver.ExternalAccountID); err != nil {
		return nil, err
	}
	return s.markCancelled(ctx, sub)
}

func (s *Service) markCancelled(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	now := s.clock.Now(ctx)
	sub.Active = false
	sub.Cancelled = true
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.repo.UpdateLifecycle(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) processor(ctx context.Context, sub *domain.Subscription) (gateway.Gateway, *identitydomain.BillingIdentity, error) {
	gw, err := s.gateways.For(sub.Provider)
	if err != nil {
		return nil, nil, err
	}
	receiver, err := s.identities.Get(ctx, sub.ReceiverIdentityID.String())
	if err != nil {
		return nil, nil, err
	}
	return gw, receiver, nil
}

func (s *Service) UpdatePlan(ctx context.Context, planCostID string, req plandomain.UpdateRequest) (*plandomain.PlanCost, error) {
	return s.plans.Update(ctx, planCostID, req)
}

func (s *Service) SetFundingSources(ctx context.Context, id string, req domain.FundingRequest) (*domain.Subscription, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Cancelled {
		return nil, apperr.Conflict("subscription", "subscription is cancelled")
	}
	sender, err := s.ownedSource(ctx, "sender_funding_id", req.SenderFundingID, sub.PayerIdentityID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.ownedSource(ctx, "receiver_funding_id", req.ReceiverFundingID, sub.ReceiverIdentityID)
	if err != nil {
		return nil, err
	}
	if sender == nil && receiver == nil {
		return nil, apperr.Invalid("funding", "at least one funding source is required")
	}
	if sender != nil {
		sub.SenderFundingID = sender.ID
	}
	if receiver != nil {
		sub.ReceiverFundingID = receiver.ID
	}
	if sub.Active {
		if err := s.checkFunding(ctx, sub); err != nil {
			return nil, err
		}
	}
	sub.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateFunding(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.load(ctx, id)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Subscription, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if err := apperr.Validate(filter); err != nil {
		return nil, err
	}
	for field, value := range map[string]string{
		"payer_identity_id":    filter.PayerIdentityID,
		"receiver_identity_id": filter.ReceiverIdentityID,
	} {
		if value == "" {
			continue
		}
		if _, err := parseID(field, value); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > defaultListLimit {
		filter.Limit = defaultListLimit
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) PayableBalance(ctx context.Context, id string) (*domain.Balance, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	cost, err := s.plans.Get(ctx, sub.PlanCostID.String())
	if err != nil {
		return nil, err
	}
	amount, err := s.installments.PayableBalance(ctx, sub.ID.String(), cost.Cost)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{SubscriptionID: sub.ID.String(), Amount: amount, Currency: cost.Currency}, nil
}

func (s *Service) ListInstallments(ctx context.Context, id string) ([]installmentdomain.Installment, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.installments.ListBySubscription(ctx, sub.ID.String())
}

func (s *Service) ListTransactions(ctx context.Context, id string) ([]ledgerdomain.Transaction, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, ledgerdomain.ListFilter{SubscriptionID: sub.ID.String()})
}

func (s *Service) load(ctx context.Context, id string) (*domain.Subscription, error) {
	parsed, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription", id)
	}
	return sub, nil
}

func parseID(field, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.Invalid(field, "malformed")
	}
	return id, nil
}
