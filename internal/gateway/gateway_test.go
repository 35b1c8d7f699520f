package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/gatewaymock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFactory struct {
	name  string
	built int
}

func (f *mockFactory) Provider() string { return f.name }

func (f *mockFactory) New(config.PaymentConfig) (gateway.Gateway, error) {
	f.built++
	return gatewaymock.New(f.name), nil
}

func fastRetry() config.PaymentConfig {
	return config.PaymentConfig{
		Retry: config.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
}

func TestSetBuildsEachProviderOnce(t *testing.T) {
	dwolla := &mockFactory{name: gateway.ProviderDwolla}
	stripe := &mockFactory{name: gateway.ProviderStripe}
	reg := gateway.NewRegistry(dwolla, stripe)

	set, err := gateway.NewSet(config.PaymentConfig{
		Provider:              gateway.ProviderDwolla,
		SubscriptionProvider:  gateway.ProviderStripe,
		SinglePaymentProvider: gateway.ProviderStripe,
	}, reg, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, dwolla.built)
	assert.Equal(t, 1, stripe.built)
	assert.Equal(t, gateway.ProviderDwolla, set.Default.Provider())
	assert.Equal(t, gateway.ProviderStripe, set.Subscription.Provider())
	assert.Same(t, set.Subscription, set.SinglePayment)
	assert.Len(t, set.All(), 2)

	_, err = set.For(gateway.ProviderHelcim)
	assert.ErrorIs(t, err, gateway.ErrUnknownProvider)
}

func TestSetFallsBackToDefault(t *testing.T) {
	reg := gateway.NewRegistry(&mockFactory{name: gateway.ProviderDwolla})
	set, err := gateway.NewSet(config.PaymentConfig{Provider: gateway.ProviderDwolla}, reg, nil)
	require.NoError(t, err)
	assert.Same(t, set.Default, set.Subscription)
	assert.Same(t, set.Default, set.SinglePayment)
}

func TestSetRejectsUnknownProvider(t *testing.T) {
	reg := gateway.NewRegistry(&mockFactory{name: gateway.ProviderDwolla})
	_, err := gateway.NewSet(config.PaymentConfig{Provider: "paypal"}, reg, nil)
	assert.ErrorIs(t, err, gateway.ErrUnknownProvider)
	assert.Equal(t, []string{gateway.ProviderDwolla}, reg.Providers())
}

func TestInstrumentRetriesRepeatableCalls(t *testing.T) {
	m := gatewaymock.New("test")
	unavailable := apperr.ProviderStatus("test", gateway.OpRetrieveTransfer, http.StatusServiceUnavailable, "", "down", "")
	m.On("RetrieveTransfer", mock.Anything, "tr-1").Return(nil, unavailable).Twice()
	m.On("RetrieveTransfer", mock.Anything, "tr-1").Return(&gateway.Transfer{ID: "tr-1"}, nil).Once()

	gw := gateway.Instrument(m, fastRetry())
	tr, err := gw.RetrieveTransfer(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", tr.ID)
	m.AssertNumberOfCalls(t, "RetrieveTransfer", 3)
}

func TestInstrumentNeverRepeatsMoneyMovement(t *testing.T) {
	m := gatewaymock.New("test")
	timeout := apperr.ProviderFailure("test", gateway.OpInitiateTransfer, context.DeadlineExceeded)
	m.On("InitiateTransfer", mock.Anything, mock.Anything).Return(nil, timeout).Once()

	gw := gateway.Instrument(m, fastRetry())
	_, err := gw.InitiateTransfer(context.Background(), gateway.TransferInput{CorrelationID: "c-1"})
	require.Error(t, err)
	assert.True(t, apperr.IsAmbiguous(err))
	m.AssertNumberOfCalls(t, "InitiateTransfer", 1)
}

func TestInstrumentDoesNotRetryClientErrors(t *testing.T) {
	m := gatewaymock.New("test")
	invalid := apperr.ProviderStatus("test", gateway.OpRetrieveCustomer, http.StatusBadRequest, "ValidationError", "bad", "")
	m.On("RetrieveCustomer", mock.Anything, "c-1").Return(nil, invalid).Once()

	gw := gateway.Instrument(m, fastRetry())
	_, err := gw.RetrieveCustomer(context.Background(), "c-1")

	var pe *apperr.ProviderCallError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "ValidationError", pe.Code)
	m.AssertNumberOfCalls(t, "RetrieveCustomer", 1)
}

func TestInstrumentPassesUnsupportedThrough(t *testing.T) {
	m := gatewaymock.New("test")
	m.On("VerifyMicrodeposit", mock.Anything, mock.Anything).Return(apperr.Unsupported("test", gateway.OpVerifyMicrodeposit)).Once()

	gw := gateway.Instrument(m, fastRetry())
	err := gw.VerifyMicrodeposit(context.Background(), gateway.MicrodepositInput{})
	assert.True(t, apperr.IsUnsupported(err))
	assert.Equal(t, "test", gw.Provider())
}

func TestOwner(t *testing.T) {
	assert.Equal(t, "acct", gateway.Owner{CustomerID: "cus", AccountID: "acct"}.ID())
	assert.False(t, gateway.Owner{CustomerID: "cus"}.IsMerchant())
	assert.True(t, gateway.MicrodepositInput{}.Initiate())
}
