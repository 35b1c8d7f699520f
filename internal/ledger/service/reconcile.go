package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/observability"
)

const (
	defaultReconcileAfter = 15 * time.Minute
	reconcileBatch        = 200
)

type reconcileOutcome int

const (
	outcomeRecovered reconcileOutcome = iota
	outcomeFailed
	outcomeUnresolved
)

// Reconcile settles transfer attempts whose processor outcome was never
// observed by matching them against the processor's transfer list.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration) (domain.ReconcileResult, error) {
	if olderThan <= 0 {
		olderThan = s.cfg.ReconcileAfter
	}
	if olderThan <= 0 {
		olderThan = defaultReconcileAfter
	}

	var res domain.ReconcileResult
	attempts, err := s.repo.ListStaleAttempts(ctx, s.db, s.clock.Now(ctx).Add(-olderThan), reconcileBatch)
	if err != nil {
		return res, err
	}

	var errs []error
	for i := range attempts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res.Checked++
		outcome, err := s.reconcileAttempt(ctx, &attempts[i])
		if err != nil {
			res.Unresolved++
			errs = append(errs, fmt.Errorf("reconcile %s: %w", attempts[i].CorrelationID, err))
			continue
		}
		switch outcome {
		case outcomeRecovered:
			res.Recovered++
			observability.TransfersReconciled.WithLabelValues("recovered").Inc()
		case outcomeFailed:
			res.Failed++
			observability.TransfersReconciled.WithLabelValues("absent").Inc()
		default:
			res.Unresolved++
			observability.TransfersReconciled.WithLabelValues("unresolved").Inc()
		}
	}
	return res, errors.Join(errs...)
}

func (s *Service) reconcileAttempt(ctx context.Context, attempt *domain.TransferAttempt) (reconcileOutcome, error) {
	existing, err := s.repo.FindByCorrelationID(ctx, s.db, attempt.CorrelationID)
	if err != nil {
		return outcomeUnresolved, err
	}
	if existing != nil {
		return outcomeRecovered, s.closeAttempt(ctx, attempt, domain.AttemptCompleted, "")
	}

	gw, err := s.gateway(attempt.Provider)
	if err != nil {
		return outcomeUnresolved, err
	}
	if !gw.SupportsListing() {
		if attempt.State == domain.AttemptStarted {
			return outcomeUnresolved, s.closeAttempt(ctx, attempt, domain.AttemptAmbiguous, "processor cannot list transfers")
		}
		return outcomeUnresolved, nil
	}

	var snap domain.AttemptRequest
	if err := json.Unmarshal(attempt.Request, &snap); err != nil {
		return outcomeUnresolved, fmt.Errorf("decode attempt request: %w", err)
	}
	payer, err := s.identities.Get(ctx, attempt.SourceIdentityID.String())
	if err != nil {
		return outcomeUnresolved, err
	}
	found, err := findAtProcessor(ctx, gw, payer.Owner(), attempt.CorrelationID)
	if err != nil {
		return outcomeUnresolved, err
	}
	if found == nil {
		return outcomeFailed, s.closeAttempt(ctx, attempt, domain.AttemptFailed, "transfer not found at processor")
	}
	if _, err := s.record(ctx, attempt, snap, found); err != nil {
		return outcomeUnresolved, err
	}
	return outcomeRecovered, nil
}
