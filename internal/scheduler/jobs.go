package scheduler

import (
	"context"

	"github.com/railzwaylabs/paycore/internal/apperr"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (s *Scheduler) batchSize() int {
	if s.cfg.BatchSize <= 0 {
		return 200
	}
	return s.cfg.BatchSize
}

// forEach runs fn over items on at most cfg.Concurrency goroutines. Item
// failures are counted on run and never abort the batch.
func (s *Scheduler) forEach(ctx context.Context, run *jobRun, items []installmentdomain.Installment, fn func(context.Context, installmentdomain.Installment) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Concurrency, 1))
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, item); err != nil {
				run.AddFailed(1)
				s.logItemError(run.name, item, err)
				return nil
			}
			run.AddProcessed(1)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) logItemError(job string, item installmentdomain.Installment, err error) {
	fields := []zap.Field{
		zap.String("job", job),
		zap.String("installment_id", item.ID.String()),
		zap.String("subscription_id", item.SubscriptionID.String()),
		zap.Error(err),
	}
	switch {
	case apperr.IsConflict(err), apperr.IsAmbiguous(err):
		// A competing charge or an unknown processor outcome resolves on a
		// later run.
		s.log.Warn("installment skipped", fields...)
	default:
		s.log.Error("installment failed", fields...)
	}
}

// chargeDue charges every payable installment whose due date has passed.
func (s *Scheduler) chargeDue(ctx context.Context, run *jobRun) error {
	due, err := s.installments.ListDue(ctx, s.clock.Now(ctx), s.batchSize())
	if err != nil {
		return err
	}
	return s.forEach(ctx, run, due, func(ctx context.Context, inst installmentdomain.Installment) error {
		_, err := s.subscriptions.ChargeInstallment(ctx, inst.ID.String())
		return err
	})
}

// settlePending advances pending installments whose transactions reached a
// final status without a webhook.
func (s *Scheduler) settlePending(ctx context.Context, run *jobRun) error {
	pending, err := s.installments.ListPending(ctx, s.batchSize())
	if err != nil {
		return err
	}
	return s.forEach(ctx, run, pending, func(ctx context.Context, inst installmentdomain.Installment) error {
		_, err := s.subscriptions.SettleInstallment(ctx, inst.ID.String())
		return err
	})
}

func (s *Scheduler) reconcile(ctx context.Context, run *jobRun) error {
	res, err := s.ledger.Reconcile(ctx, s.grace)
	if err != nil {
		return err
	}
	run.AddProcessed(res.Recovered + res.Failed)
	if res.Unresolved > 0 {
		s.log.Info("transfer attempts still unresolved", zap.Int("count", res.Unresolved))
	}
	return nil
}

func (s *Scheduler) syncFees(ctx context.Context, run *jobRun) error {
	res, err := s.fees.SyncRecent(ctx, s.batchSize())
	if err != nil {
		return err
	}
	run.AddProcessed(res.Created + res.Updated)
	return nil
}
