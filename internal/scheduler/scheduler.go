package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/internal/observability"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobCharge    = "charge_due_installments"
	JobSettle    = "settle_pending_installments"
	JobReconcile = "reconcile_transfers"
	JobFees      = "sync_fees"

	// jobLockTTL bounds how long a crashed replica can block a job.
	jobLockTTL = 30 * time.Minute
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Clock         clock.Clock
	Locker        locker.Locker
	Installments  installmentdomain.Service
	Subscriptions subscriptiondomain.Service
	Ledger        ledgerdomain.Service
	Fees          feedomain.Service
}

// Scheduler drives the periodic money movement work. Each job holds a
// locker lease while it runs so replicas never overlap on the same job.
type Scheduler struct {
	log   *zap.Logger
	cfg   config.SchedulerConfig
	grace time.Duration
	clock clock.Clock
	lock  locker.Locker

	installments  installmentdomain.Service
	subscriptions subscriptiondomain.Service
	ledger        ledgerdomain.Service
	fees          feedomain.Service

	cron *cron.Cron
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config.Scheduler,
		grace:         p.Config.Ledger.ReconcileAfter,
		clock:         p.Clock,
		lock:          p.Locker,
		installments:  p.Installments,
		subscriptions: p.Subscriptions,
		ledger:        p.Ledger,
		fees:          p.Fees,
	}
}

type job struct {
	name string
	spec string
	fn   func(ctx context.Context, run *jobRun) error
}

func (s *Scheduler) jobs() []job {
	return []job{
		{JobCharge, s.cfg.ChargeSpec, s.chargeDue},
		{JobSettle, s.cfg.SettleSpec, s.settlePending},
		{JobReconcile, s.cfg.ReconcileSpec, s.reconcile},
		{JobFees, s.cfg.FeeSpec, s.syncFees},
	}
}

// Start registers every job with a non-empty spec and starts the cron loop.
// Jobs run with ctx, which should outlive Start.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.log})))
	for _, j := range s.jobs() {
		if j.spec == "" {
			s.log.Info("job disabled", zap.String("job", j.name))
			continue
		}
		if _, err := c.AddFunc(j.spec, func() { _ = s.Run(ctx, j.name) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
		s.log.Info("job scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one job by name. A job already running elsewhere is skipped.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	var target *job
	for _, j := range s.jobs() {
		if j.name == name {
			target = &j
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown job %q", name)
	}

	lease, err := s.lock.Acquire(ctx, locker.Key("job", name), jobLockTTL, 0)
	if errors.Is(err, locker.ErrNotAcquired) {
		s.log.Debug("job already running", zap.String("job", name))
		observability.SchedulerJobRuns.WithLabelValues(name, "skipped").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release job lock", zap.String("job", name), zap.Error(err))
		}
	}()

	run := s.startRun(ctx, name)
	err = target.fn(ctx, run)
	s.finishRun(run, err)
	return err
}

type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Sugar().Debugw(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Sugar().Errorw(msg, append(kv, "error", err)...)
}
