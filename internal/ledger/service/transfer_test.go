package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) request(correlationID, paymentType string) domain.TransferRequest {
	return domain.TransferRequest{
		SourceFundingID:      f.source.ID.String(),
		DestinationFundingID: f.dest.ID.String(),
		Amount:               decimal.RequireFromString("50.00"),
		Currency:             "usd",
		Type:                 paymentType,
		CorrelationID:        correlationID,
	}
}

func transferFor(id, correlationID, status string) *gateway.Transfer {
	return &gateway.Transfer{
		ID:            id,
		Status:        status,
		Amount:        decimal.RequireFromString("50.00"),
		Currency:      "USD",
		CorrelationID: correlationID,
	}
}

func (f *fixture) attempt(t *testing.T, correlationID string) *domain.TransferAttempt {
	t.Helper()
	var attempt domain.TransferAttempt
	require.NoError(t, f.db.Where("correlation_id = ?", correlationID).First(&attempt).Error)
	return &attempt
}

func TestInitiateTransferReplaysCorrelationID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.MatchedBy(func(in gateway.TransferInput) bool {
		return in.CorrelationID == "c-1" &&
			in.Source == gateway.FundingParty{Owner: gateway.Owner{CustomerID: "cus-1"}, FundingID: "fs-src"} &&
			in.Destination == gateway.FundingParty{Owner: gateway.Owner{AccountID: "acct-1"}, FundingID: "fs-dst"} &&
			in.Currency == "USD" && in.Descriptor == ""
	})).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()

	first, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	assert.Equal(t, "tr-1", first.ExternalTransferID)
	assert.Equal(t, gateway.StatusPending, first.Status)
	assert.Equal(t, domain.DefaultDescriptor, first.Descriptor)
	assert.Equal(t, f.payer.ID, first.SourceIdentityID)
	assert.Equal(t, f.payee.ID, first.DestinationIdentityID)

	second, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	f.gw.AssertNumberOfCalls(t, "InitiateTransfer", 1)

	var count int64
	require.NoError(t, f.db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.AttemptCompleted, f.attempt(t, "c-1").State)
}

func TestInitiateTransferRejectsUnusableSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.addSource(t, f.payer, "fs-pending", gateway.FundingTypeBank, true)
	balance := f.addSource(t, f.payer, "fs-balance", gateway.FundingTypeBalance, false)
	for _, id := range []string{pending.ID.String(), balance.ID.String()} {
		req := f.request("c-"+id, domain.TypeTransfer)
		req.SourceFundingID = id
		_, err := f.svc.InitiateTransfer(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}

	req := f.request("c-zero", domain.TypeTransfer)
	req.Amount = decimal.Zero
	_, err := f.svc.InitiateTransfer(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.gw.AssertNotCalled(t, "InitiateTransfer", mock.Anything, mock.Anything)
}

func TestPayGuardAllowsOneLiveCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "pay-1", gateway.StatusPending), nil).Once()

	_, err := f.svc.InitiateTransfer(ctx, f.request("pay-1", domain.TypePay))
	require.NoError(t, err)

	_, err = f.svc.InitiateTransfer(ctx, f.request("pay-2", domain.TypePay))
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	has, err := f.svc.HasPreviousTransaction(ctx, "", f.source.ID.String(), domain.TypePay)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = f.svc.ApplyStatus(ctx, gateway.ProviderDwolla, "tr-1", gateway.StatusFailed, "R01")
	require.NoError(t, err)

	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-2", "pay-2", gateway.StatusPending), nil).Once()
	again, err := f.svc.InitiateTransfer(ctx, f.request("pay-2", domain.TypePay))
	require.NoError(t, err)
	assert.Equal(t, "tr-2", again.ExternalTransferID)
}

func TestOtherTypesAreNotGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "i-1", gateway.StatusPending), nil).Once()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-2", "i-2", gateway.StatusPending), nil).Once()

	_, err := f.svc.InitiateTransfer(ctx, f.request("i-1", domain.TypeInstallment))
	require.NoError(t, err)
	_, err = f.svc.InitiateTransfer(ctx, f.request("i-2", domain.TypeInstallment))
	require.NoError(t, err)
}

func TestHeldLockIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lease, err := f.locker.Acquire(ctx, locker.Key("transfer", "0", f.source.ID.String(), domain.TypePay), time.Minute, time.Second)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = f.svc.InitiateTransfer(ctx, f.request("pay-1", domain.TypePay))
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	f.gw.AssertNotCalled(t, "InitiateTransfer", mock.Anything, mock.Anything)
}

func TestProviderRejectionRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rejected := apperr.ProviderStatus(gateway.ProviderDwolla, gateway.OpInitiateTransfer, http.StatusBadRequest, "InsufficientFunds", "insufficient funds", "")
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(nil, rejected).Once()

	_, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	assert.ErrorIs(t, err, apperr.ErrProviderCall)
	assert.False(t, apperr.IsAmbiguous(err))

	_, err = f.svc.GetByCorrelationID(ctx, "c-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	attempt := f.attempt(t, "c-1")
	assert.Equal(t, domain.AttemptFailed, attempt.State)
	assert.Contains(t, attempt.Error, "insufficient funds")

	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()
	txn, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	assert.Equal(t, "tr-1", txn.ExternalTransferID)
	assert.Equal(t, domain.AttemptCompleted, f.attempt(t, "c-1").State)
}

func TestAmbiguousOutcomeRecoveredByListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	timeout := apperr.ProviderFailure(gateway.ProviderDwolla, gateway.OpInitiateTransfer, context.DeadlineExceeded)
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(nil, timeout).Once()
	f.gw.On("ListCustomerTransfers", mock.Anything, gateway.Owner{CustomerID: "cus-1"}).Return([]gateway.Transfer{
		*transferFor("tr-other", "c-other", gateway.StatusProcessed),
		*transferFor("tr-9", "c-1", gateway.StatusPending),
	}, nil).Once()

	txn, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	assert.Equal(t, "tr-9", txn.ExternalTransferID)
	f.gw.AssertNumberOfCalls(t, "InitiateTransfer", 1)
}

func TestAmbiguousOutcomeParkedAndSwept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	timeout := apperr.ProviderFailure(gateway.ProviderDwolla, gateway.OpInitiateTransfer, context.DeadlineExceeded)
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(nil, timeout).Twice()
	f.gw.On("ListCustomerTransfers", mock.Anything, mock.Anything).Return([]gateway.Transfer{}, nil).Twice()

	_, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.Error(t, err)
	assert.True(t, apperr.IsAmbiguous(err))
	assert.Equal(t, domain.AttemptAmbiguous, f.attempt(t, "c-1").State)

	_, err = f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	_, err = f.svc.InitiateTransfer(ctx, f.request("c-2", domain.TypeTransfer))
	require.Error(t, err)

	res, err := f.svc.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)

	f.clock.Advance(20 * time.Minute)
	f.gw.On("ListCustomerTransfers", mock.Anything, mock.Anything).Return([]gateway.Transfer{
		*transferFor("tr-1", "c-1", gateway.StatusProcessed),
	}, nil).Twice()

	res, err = f.svc.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileResult{Checked: 2, Recovered: 1, Failed: 1}, res)

	txn, err := f.svc.GetByCorrelationID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", txn.ExternalTransferID)
	assert.Equal(t, gateway.StatusProcessed, txn.Status)
	assert.Equal(t, domain.AttemptCompleted, f.attempt(t, "c-1").State)
	assert.Equal(t, domain.AttemptFailed, f.attempt(t, "c-2").State)
}

func TestReconcileLeavesUnlistableProcessorsAmbiguous(t *testing.T) {
	f := newFixture(t)
	f.gw.Listing = false
	ctx := context.Background()
	timeout := apperr.ProviderFailure(gateway.ProviderDwolla, gateway.OpInitiateTransfer, context.DeadlineExceeded)
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(nil, timeout).Once()

	_, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.Error(t, err)

	f.clock.Advance(time.Hour)
	res, err := f.svc.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, domain.AttemptAmbiguous, f.attempt(t, "c-1").State)
	f.gw.AssertNotCalled(t, "ListCustomerTransfers", mock.Anything, mock.Anything)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()
	txn, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)

	f.gw.On("RetrieveTransfer", mock.Anything, "tr-1").Return(transferFor("tr-1", "c-1", gateway.StatusProcessed), nil).Once()
	txn, err = f.svc.RetrieveTransfer(ctx, txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusProcessed, txn.Status)

	_, err = f.svc.CancelTransfer(ctx, txn.ID.String())
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	txn, err = f.svc.ApplyStatus(ctx, gateway.ProviderDwolla, "tr-1", gateway.StatusFailed, "R01: Insufficient Funds")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusFailed, txn.Status)

	txn, err = f.svc.ApplyStatus(ctx, gateway.ProviderDwolla, "tr-1", gateway.StatusProcessed, "")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusFailed, txn.Status)
	assert.Equal(t, "R01: Insufficient Funds", txn.FailureReason)
	assert.True(t, decimal.RequireFromString("50").Equal(txn.Amount))

	_, err = f.svc.ApplyStatus(ctx, gateway.ProviderDwolla, "tr-unknown", gateway.StatusFailed, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelPendingTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()
	f.gw.On("CancelTransfer", mock.Anything, "tr-1").Return(transferFor("tr-1", "c-1", gateway.StatusCancelled), nil).Once()

	txn, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	txn, err = f.svc.CancelTransfer(ctx, txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCancelled, txn.Status)
}

func TestDescriptorIsSentToProcessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc, err := f.svc.DescriptorFor(ctx, domain.TypeInstallment)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDescriptor, desc)

	_, err = f.svc.UpsertDescriptor(ctx, domain.DescriptorRequest{PaymentType: "installment", Descriptor: "ACME PLAN"})
	require.NoError(t, err)
	item, err := f.svc.UpsertDescriptor(ctx, domain.DescriptorRequest{PaymentType: "Installment", Descriptor: "ACME MONTHLY"})
	require.NoError(t, err)
	assert.Equal(t, "ACME MONTHLY", item.Descriptor)

	list, err := f.svc.ListDescriptors(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	f.gw.On("InitiateTransfer", mock.Anything, mock.MatchedBy(func(in gateway.TransferInput) bool {
		return in.Descriptor == "ACME MONTHLY"
	})).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()
	txn, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeInstallment))
	require.NoError(t, err)
	assert.Equal(t, "ACME MONTHLY", txn.Descriptor)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-1", "c-1", gateway.StatusPending), nil).Once()
	f.gw.On("InitiateTransfer", mock.Anything, mock.Anything).Return(transferFor("tr-2", "c-2", gateway.StatusProcessed), nil).Once()

	_, err := f.svc.InitiateTransfer(ctx, f.request("c-1", domain.TypeTransfer))
	require.NoError(t, err)
	_, err = f.svc.InitiateTransfer(ctx, f.request("c-2", domain.TypeInstallment))
	require.NoError(t, err)

	all, err := f.svc.List(ctx, domain.ListFilter{SourceIdentityID: f.payer.ID.String()})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	processed, err := f.svc.List(ctx, domain.ListFilter{Status: gateway.StatusProcessed})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "tr-2", processed[0].ExternalTransferID)

	installments, err := f.svc.List(ctx, domain.ListFilter{Type: domain.TypeInstallment, Provider: gateway.ProviderDwolla})
	require.NoError(t, err)
	assert.Len(t, installments, 1)

	none, err := f.svc.List(ctx, domain.ListFilter{DestinationIdentityID: f.payer.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.List(ctx, domain.ListFilter{SubscriptionID: "abc"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
