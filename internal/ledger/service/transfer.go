package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/internal/observability"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultLockTTL  = time.Minute
	defaultLockWait = 5 * time.Second
	defaultCurrency = "USD"
)

// InitiateTransfer moves money between two funding sources at most once per
// correlation id.
func (s *Service) InitiateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	req.CorrelationID = strings.TrimSpace(req.CorrelationID)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if err := apperr.Validate(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be positive")
	}

	existing, err := s.repo.FindByCorrelationID(ctx, s.db, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	source, err := s.fundingSources.Get(ctx, req.SourceFundingID)
	if err != nil {
		return nil, err
	}
	if !fundingdomain.IsValid(source) {
		observability.TransferGuardRejections.WithLabelValues("invalid_source").Inc()
		return nil, apperr.Invalid("source_funding_id", "funding source is unverified, deleted or a balance")
	}
	dest, err := s.fundingSources.Get(ctx, req.DestinationFundingID)
	if err != nil {
		return nil, err
	}
	if dest.Deleted {
		observability.TransferGuardRejections.WithLabelValues("invalid_destination").Inc()
		return nil, apperr.Invalid("destination_funding_id", "funding source is deleted")
	}
	if dest.Provider != source.Provider {
		return nil, apperr.Invalid("destination_funding_id", "funding sources belong to different processors")
	}

	var subscriptionID, installmentID snowflake.ID
	if req.SubscriptionID != "" {
		if subscriptionID, err = parseID("subscription_id", req.SubscriptionID); err != nil {
			return nil, err
		}
	}
	if req.InstallmentID != "" {
		if installmentID, err = parseID("installment_id", req.InstallmentID); err != nil {
			return nil, err
		}
	}

	payer, err := s.identities.Get(ctx, source.IdentityID.String())
	if err != nil {
		return nil, err
	}
	payee, err := s.identities.Get(ctx, dest.IdentityID.String())
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(source.Provider)
	if err != nil {
		return nil, err
	}

	lease, err := s.locker.Acquire(ctx, locker.Key("transfer", subscriptionID.String(), source.ID.String(), req.Type), s.lockTTL(), s.lockWait())
	if err != nil {
		if errors.Is(err, locker.ErrNotAcquired) {
			observability.TransferGuardRejections.WithLabelValues("locked").Inc()
			return nil, apperr.Conflict("transaction", "another transfer for this subscription and funding source is in progress")
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release transfer lock", zap.String("correlation_id", req.CorrelationID), zap.Error(err))
		}
	}()

	// A replay may have completed while this call waited for the lock.
	existing, err = s.repo.FindByCorrelationID(ctx, s.db, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if req.Type == domain.TypePay {
		count, err := s.repo.CountActive(ctx, s.db, subscriptionID, source.ID, domain.TypePay)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			observability.TransferGuardRejections.WithLabelValues("duplicate_pay").Inc()
			return nil, apperr.Conflict("transaction", "a pay transaction for this subscription and funding source is pending or processed")
		}
	}

	descriptor, err := s.DescriptorFor(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	snap := domain.AttemptRequest{
		Type:                  req.Type,
		Amount:                req.Amount,
		Currency:              currency,
		Descriptor:            descriptor,
		SourceIdentityID:      payer.ID,
		SourceFundingID:       source.ID,
		DestinationIdentityID: payee.ID,
		DestinationFundingID:  dest.ID,
		SubscriptionID:        subscriptionID,
		InstallmentID:         installmentID,
		Metadata:              req.Metadata,
	}
	attempt, err := s.claim(ctx, req.CorrelationID, source.Provider, snap)
	if err != nil {
		return nil, err
	}

	in := gateway.TransferInput{
		Source:        gateway.FundingParty{Owner: payer.Owner(), FundingID: source.ExternalFundingID},
		Destination:   gateway.FundingParty{Owner: payee.Owner(), FundingID: dest.ExternalFundingID},
		Amount:        req.Amount,
		Currency:      currency,
		CorrelationID: req.CorrelationID,
		Description:   req.Description,
		Fees:          req.Fees,
		Metadata:      req.Metadata,
	}
	if descriptor != domain.DefaultDescriptor {
		in.Descriptor = descriptor
	}
	tr, err := gw.InitiateTransfer(ctx, in)
	if err != nil {
		return s.resolveFailure(ctx, gw, attempt, payer.Owner(), snap, err)
	}
	return s.record(ctx, attempt, snap, tr)
}

// claim writes the durable marker for the correlation id. A failed attempt
// may be claimed again; any other state means a call is in flight or awaits
// reconciliation.
func (s *Service) claim(ctx context.Context, correlationID, provider string, snap domain.AttemptRequest) (*domain.TransferAttempt, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	attempt := &domain.TransferAttempt{
		ID:               s.genID.Generate(),
		CorrelationID:    correlationID,
		Provider:         provider,
		SourceIdentityID: snap.SourceIdentityID,
		State:            domain.AttemptStarted,
		Request:          datatypes.JSON(raw),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	current, err := s.repo.FindAttempt(ctx, s.db, correlationID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if current.State != domain.AttemptFailed {
			return nil, apperr.Conflict("transfer_attempt", "correlation id is "+current.State)
		}
		current.Request = attempt.Request
		current.UpdatedAt = now
		won, err := s.repo.ReclaimFailedAttempt(ctx, s.db, current)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, apperr.Conflict("transfer_attempt", "correlation id was claimed concurrently")
		}
		current.State = domain.AttemptStarted
		current.Error = ""
		return current, nil
	}

	if err := s.repo.CreateAttempt(ctx, s.db, attempt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("transfer_attempt", "correlation id was claimed concurrently")
		}
		return nil, err
	}
	return attempt, nil
}

// resolveFailure never repeats the call. An ambiguous outcome is checked
// against the processor's transfer list before the attempt is parked for
// the reconciliation sweep.
func (s *Service) resolveFailure(ctx context.Context, gw gateway.Gateway, attempt *domain.TransferAttempt, owner gateway.Owner, snap domain.AttemptRequest, callErr error) (*domain.Transaction, error) {
	if !apperr.IsAmbiguous(callErr) {
		observability.TransfersInitiated.WithLabelValues(attempt.Provider, snap.Type, "rejected").Inc()
		if err := s.closeAttempt(ctx, attempt, domain.AttemptFailed, callErr.Error()); err != nil {
			return nil, errors.Join(callErr, err)
		}
		return nil, callErr
	}

	if gw.SupportsListing() {
		found, err := findAtProcessor(ctx, gw, owner, attempt.CorrelationID)
		if err != nil {
			s.log.Warn("reconciliation read after ambiguous transfer failed",
				zap.String("correlation_id", attempt.CorrelationID),
				zap.Error(err),
			)
		}
		if found != nil {
			observability.TransfersReconciled.WithLabelValues("recovered_inline").Inc()
			return s.record(ctx, attempt, snap, found)
		}
	}

	observability.TransfersReconciled.WithLabelValues("ambiguous").Inc()
	if err := s.closeAttempt(ctx, attempt, domain.AttemptAmbiguous, callErr.Error()); err != nil {
		return nil, errors.Join(callErr, err)
	}
	return nil, callErr
}

// record stores the processor transfer and completes the attempt in one
// database transaction.
func (s *Service) record(ctx context.Context, attempt *domain.TransferAttempt, snap domain.AttemptRequest, tr *gateway.Transfer) (*domain.Transaction, error) {
	now := s.clock.Now(ctx)
	amount := tr.Amount
	if amount.IsZero() {
		amount = snap.Amount
	}
	currency := strings.ToUpper(tr.Currency)
	if currency == "" {
		currency = snap.Currency
	}
	status := tr.Status
	if status == "" {
		status = gateway.StatusPending
	}

	txn := &domain.Transaction{
		ID:                    s.genID.Generate(),
		CorrelationID:         attempt.CorrelationID,
		Provider:              attempt.Provider,
		ExternalTransferID:    tr.ID,
		Amount:                amount,
		Currency:              currency,
		Status:                status,
		Type:                  snap.Type,
		Descriptor:            snap.Descriptor,
		SourceIdentityID:      snap.SourceIdentityID,
		SourceFundingID:       snap.SourceFundingID,
		DestinationIdentityID: snap.DestinationIdentityID,
		DestinationFundingID:  snap.DestinationFundingID,
		SubscriptionID:        snap.SubscriptionID,
		InstallmentID:         snap.InstallmentID,
		FailureReason:         tr.FailureReason,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if len(snap.Metadata) > 0 {
		txn.Metadata = datatypes.JSONMap{}
		for k, v := range snap.Metadata {
			txn.Metadata[k] = v
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateTransaction(ctx, tx, txn); err != nil {
			return err
		}
		attempt.State = domain.AttemptCompleted
		attempt.Error = ""
		attempt.UpdatedAt = now
		return s.repo.UpdateAttempt(ctx, tx, attempt)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.repo.FindByCorrelationID(ctx, s.db, attempt.CorrelationID); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		// The attempt stays started so the sweep records the transfer later.
		return nil, fmt.Errorf("record transfer %s: %w", tr.ID, err)
	}
	observability.TransfersInitiated.WithLabelValues(txn.Provider, txn.Type, txn.Status).Inc()
	return txn, nil
}

func (s *Service) closeAttempt(ctx context.Context, attempt *domain.TransferAttempt, state, reason string) error {
	attempt.State = state
	attempt.Error = reason
	attempt.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateAttempt(ctx, s.db, attempt); err != nil {
		return fmt.Errorf("close transfer attempt %s: %w", attempt.CorrelationID, err)
	}
	return nil
}

func findAtProcessor(ctx context.Context, gw gateway.Gateway, owner gateway.Owner, correlationID string) (*gateway.Transfer, error) {
	transfers, err := gw.ListCustomerTransfers(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range transfers {
		if transfers[i].CorrelationID == correlationID {
			return &transfers[i], nil
		}
	}
	return nil, nil
}

// RetrieveTransfer refreshes the status of a recorded transfer.
func (s *Service) RetrieveTransfer(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(txn.Provider)
	if err != nil {
		return nil, err
	}
	tr, err := gw.RetrieveTransfer(ctx, txn.ExternalTransferID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, txn, tr.Status, tr.FailureReason); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) CancelTransfer(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Settled() {
		return nil, apperr.Conflict("transaction", "transfer is already "+txn.Status)
	}
	gw, err := s.gateway(txn.Provider)
	if err != nil {
		return nil, err
	}
	tr, err := gw.CancelTransfer(ctx, txn.ExternalTransferID)
	if err != nil {
		return nil, err
	}
	status := tr.Status
	if status == "" {
		status = gateway.StatusCancelled
	}
	if err := s.transition(ctx, txn, status, tr.FailureReason); err != nil {
		return nil, err
	}
	return txn, nil
}

// ApplyStatus records a status reported asynchronously by the processor.
func (s *Service) ApplyStatus(ctx context.Context, provider, externalID, status, reason string) (*domain.Transaction, error) {
	txn, err := s.repo.FindByExternalID(ctx, s.db, provider, externalID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, apperr.NotFound("transaction", externalID)
	}
	if err := s.transition(ctx, txn, status, reason); err != nil {
		return nil, err
	}
	return txn, nil
}

// transition updates only status and failure reason; out of order or
// repeated notifications are ignored.
func (s *Service) transition(ctx context.Context, txn *domain.Transaction, status, reason string) error {
	if !domain.CanTransition(txn.Status, status) {
		return nil
	}
	txn.Status = status
	if reason != "" {
		txn.FailureReason = reason
	}
	txn.UpdatedAt = s.clock.Now(ctx)
	return s.repo.UpdateTransactionStatus(ctx, s.db, txn)
}

func (s *Service) lockTTL() time.Duration {
	if s.cfg.LockTTL > 0 {
		return s.cfg.LockTTL
	}
	return defaultLockTTL
}

func (s *Service) lockWait() time.Duration {
	if s.cfg.LockWait > 0 {
		return s.cfg.LockWait
	}
	return defaultLockWait
}
