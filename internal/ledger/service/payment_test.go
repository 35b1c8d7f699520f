package service

import (
	"context"
	"testing"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitiatePaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiatePayment", mock.Anything, mock.MatchedBy(func(in gateway.PaymentInput) bool {
		return in.IdempotencyKey == "order-7" && in.FundingID == "fs-src" &&
			in.Destination == "acct-1" && in.Customer.CustomerID == "cus-1"
	})).Return(&gateway.Payment{ID: "pi_1", Status: gateway.StatusPending, ClientSecret: "secret_1"}, nil).Once()

	req := domain.PaymentRequest{
		IdentityID:            f.payer.ID.String(),
		FundingSourceID:       f.source.ID.String(),
		DestinationIdentityID: f.payee.ID.String(),
		Amount:                decimal.RequireFromString("19.99"),
		Currency:              "usd",
		IdempotencyKey:        "order-7",
	}
	first, err := f.svc.InitiatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", first.ExternalPaymentID)
	assert.Equal(t, "secret_1", first.ClientSecret)
	assert.Equal(t, domain.TypePayment, first.Type)
	assert.Equal(t, "USD", first.Currency)

	second, err := f.svc.InitiatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.ClientSecret)
	f.gw.AssertNumberOfCalls(t, "InitiatePayment", 1)
}

func TestInitiatePaymentRejectsForeignSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.InitiatePayment(context.Background(), domain.PaymentRequest{
		IdentityID:      f.payer.ID.String(),
		FundingSourceID: f.dest.ID.String(),
		Amount:          decimal.NewFromInt(5),
		Currency:        "USD",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	f.gw.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestRetrievePaymentRefreshesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("InitiatePayment", mock.Anything, mock.Anything).Return(&gateway.Payment{ID: "pi_1", Status: gateway.StatusPending}, nil).Once()
	f.gw.On("RetrievePayment", mock.Anything, "pi_1").Return(&gateway.Payment{ID: "pi_1", Status: gateway.StatusProcessed}, nil).Once()

	payment, err := f.svc.InitiatePayment(ctx, domain.PaymentRequest{
		IdentityID: f.payer.ID.String(),
		Amount:     decimal.NewFromInt(5),
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.ID.String(), payment.IdempotencyKey)

	payment, err = f.svc.RetrievePayment(ctx, payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusProcessed, payment.Status)

	_, err = f.svc.RetrievePayment(ctx, "12345")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
