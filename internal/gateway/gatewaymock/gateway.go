// Package gatewaymock provides a testify mock of gateway.Gateway.
package gatewaymock

import (
	"context"

	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/stretchr/testify/mock"
)

type Gateway struct {
	mock.Mock

	Name      string
	Listing   bool
	Recurring bool
}

// New returns a mock reporting the given provider name. Listing and recurring
// support default to true.
func New(name string) *Gateway {
	return &Gateway{Name: name, Listing: true, Recurring: true}
}

func (m *Gateway) Provider() string        { return m.Name }
func (m *Gateway) SupportsListing() bool   { return m.Listing }
func (m *Gateway) SupportsRecurring() bool { return m.Recurring }

func result[T any](args mock.Arguments) (*T, error) {
	var out *T
	if v := args.Get(0); v != nil {
		out = v.(*T)
	}
	return out, args.Error(1)
}

func (m *Gateway) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (*gateway.Customer, error) {
	return result[gateway.Customer](m.Called(ctx, in))
}

func (m *Gateway) RetrieveCustomer(ctx context.Context, customerID string) (*gateway.Customer, error) {
	return result[gateway.Customer](m.Called(ctx, customerID))
}

func (m *Gateway) UpdateCustomer(ctx context.Context, customerID string, in gateway.CustomerInput) (*gateway.Customer, error) {
	return result[gateway.Customer](m.Called(ctx, customerID, in))
}

func (m *Gateway) DeleteCustomer(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *Gateway) CreateMerchant(ctx context.Context, in gateway.MerchantInput) (*gateway.Merchant, error) {
	return result[gateway.Merchant](m.Called(ctx, in))
}

func (m *Gateway) RetrieveMerchant(ctx context.Context, accountID string) (*gateway.Merchant, error) {
	return result[gateway.Merchant](m.Called(ctx, accountID))
}

func (m *Gateway) UpdateMerchant(ctx context.Context, accountID string, in gateway.MerchantInput) (*gateway.Merchant, error) {
	return result[gateway.Merchant](m.Called(ctx, accountID, in))
}

func (m *Gateway) DeleteMerchant(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *Gateway) CreateFundingSource(ctx context.Context, in gateway.FundingSourceLinkInput) (*gateway.FundingInstrument, error) {
	return result[gateway.FundingInstrument](m.Called(ctx, in))
}

func (m *Gateway) CreateFundingSourceManually(ctx context.Context, in gateway.FundingSourceManualInput) (*gateway.FundingInstrument, error) {
	return result[gateway.FundingInstrument](m.Called(ctx, in))
}

func (m *Gateway) UpdateFundingSource(ctx context.Context, in gateway.FundingSourceUpdateInput) (*gateway.FundingInstrument, error) {
	return result[gateway.FundingInstrument](m.Called(ctx, in))
}

func (m *Gateway) RetrieveFundingSource(ctx context.Context, owner gateway.Owner, fundingID string) (*gateway.FundingInstrument, error) {
	return result[gateway.FundingInstrument](m.Called(ctx, owner, fundingID))
}

func (m *Gateway) ListFundingSources(ctx context.Context, owner gateway.Owner) ([]gateway.FundingInstrument, error) {
	args := m.Called(ctx, owner)
	out, _ := args.Get(0).([]gateway.FundingInstrument)
	return out, args.Error(1)
}

func (m *Gateway) GetFundingSourceBalance(ctx context.Context, owner gateway.Owner, fundingID string) (*gateway.Balance, error) {
	return result[gateway.Balance](m.Called(ctx, owner, fundingID))
}

func (m *Gateway) VerifyMicrodeposit(ctx context.Context, in gateway.MicrodepositInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *Gateway) InitiateTransfer(ctx context.Context, in gateway.TransferInput) (*gateway.Transfer, error) {
	return result[gateway.Transfer](m.Called(ctx, in))
}

func (m *Gateway) RetrieveTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	return result[gateway.Transfer](m.Called(ctx, transferID))
}

func (m *Gateway) CancelTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	return result[gateway.Transfer](m.Called(ctx, transferID))
}

func (m *Gateway) ListCustomerTransfers(ctx context.Context, owner gateway.Owner) ([]gateway.Transfer, error) {
	args := m.Called(ctx, owner)
	out, _ := args.Get(0).([]gateway.Transfer)
	return out, args.Error(1)
}

func (m *Gateway) GetFeeOfTransaction(ctx context.Context, transferID string) (*gateway.FeeBreakdown, error) {
	return result[gateway.FeeBreakdown](m.Called(ctx, transferID))
}

func (m *Gateway) InitiatePayment(ctx context.Context, in gateway.PaymentInput) (*gateway.Payment, error) {
	return result[gateway.Payment](m.Called(ctx, in))
}

func (m *Gateway) RetrievePayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	return result[gateway.Payment](m.Called(ctx, paymentID))
}

func (m *Gateway) UpdatePayment(ctx context.Context, paymentID string, in gateway.PaymentUpdateInput) (*gateway.Payment, error) {
	return result[gateway.Payment](m.Called(ctx, paymentID, in))
}

func (m *Gateway) CreateWebhook(ctx context.Context, in gateway.WebhookInput) (*gateway.Webhook, error) {
	return result[gateway.Webhook](m.Called(ctx, in))
}

func (m *Gateway) RetrieveWebhook(ctx context.Context, webhookID string) (*gateway.Webhook, error) {
	return result[gateway.Webhook](m.Called(ctx, webhookID))
}

func (m *Gateway) UpdateWebhook(ctx context.Context, webhookID string, in gateway.WebhookUpdateInput) (*gateway.Webhook, error) {
	return result[gateway.Webhook](m.Called(ctx, webhookID, in))
}

func (m *Gateway) DeleteWebhook(ctx context.Context, webhookID string) error {
	return m.Called(ctx, webhookID).Error(0)
}

func (m *Gateway) ListWebhooks(ctx context.Context) ([]gateway.Webhook, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]gateway.Webhook)
	return out, args.Error(1)
}

func (m *Gateway) CreateProduct(ctx context.Context, in gateway.ProductInput) (*gateway.Product, error) {
	return result[gateway.Product](m.Called(ctx, in))
}

func (m *Gateway) UpdateProduct(ctx context.Context, productID string, in gateway.ProductInput) (*gateway.Product, error) {
	return result[gateway.Product](m.Called(ctx, productID, in))
}

func (m *Gateway) CreateSubscription(ctx context.Context, in gateway.SubscriptionInput) (*gateway.Subscription, error) {
	return result[gateway.Subscription](m.Called(ctx, in))
}

func (m *Gateway) CancelSubscription(ctx context.Context, subscriptionID, accountID string) error {
	return m.Called(ctx, subscriptionID, accountID).Error(0)
}

func (m *Gateway) CreateSubscriptionSchedule(ctx context.Context, in gateway.ScheduleInput) (*gateway.SubscriptionSchedule, error) {
	return result[gateway.SubscriptionSchedule](m.Called(ctx, in))
}

func (m *Gateway) CancelSubscriptionSchedule(ctx context.Context, scheduleID, accountID string) error {
	return m.Called(ctx, scheduleID, accountID).Error(0)
}

var _ gateway.Gateway = (*Gateway)(nil)
