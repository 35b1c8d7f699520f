package gateway

import "context"

// Provider names accepted in configuration.
const (
	ProviderDwolla = "dwolla"
	ProviderStripe = "stripe"
	ProviderHelcim = "helcim"
)

// Operation names used in errors, metrics and spans.
const (
	OpCreateCustomer              = "create_customer"
	OpRetrieveCustomer            = "retrieve_customer"
	OpUpdateCustomer              = "update_customer"
	OpDeleteCustomer              = "delete_customer"
	OpCreateMerchant              = "create_merchant"
	OpRetrieveMerchant            = "retrieve_merchant"
	OpUpdateMerchant              = "update_merchant"
	OpDeleteMerchant              = "delete_merchant"
	OpCreateFundingSource         = "create_funding_source"
	OpCreateFundingSourceManually = "create_funding_source_manually"
	OpUpdateFundingSource         = "update_funding_source"
	OpRetrieveFundingSource       = "retrieve_funding_source"
	OpListFundingSources          = "list_funding_sources"
	OpGetFundingSourceBalance     = "get_funding_source_balance"
	OpVerifyMicrodeposit          = "verify_microdeposit"
	OpInitiateTransfer            = "initiate_transfer"
	OpRetrieveTransfer            = "retrieve_transfer"
	OpCancelTransfer              = "cancel_transfer"
	OpListCustomerTransfers       = "list_customer_transfers"
	OpGetFeeOfTransaction         = "get_fee_of_transaction"
	OpInitiatePayment             = "initiate_payment"
	OpRetrievePayment             = "retrieve_payment"
	OpUpdatePayment               = "update_payment"
	OpCreateWebhook               = "create_webhook"
	OpRetrieveWebhook             = "retrieve_webhook"
	OpUpdateWebhook               = "update_webhook"
	OpDeleteWebhook               = "delete_webhook"
	OpListWebhooks                = "list_webhooks"
	OpCreateProduct               = "create_product"
	OpUpdateProduct               = "update_product"
	OpCreateSubscription          = "create_subscription"
	OpCancelSubscription          = "cancel_subscription"
	OpCreateSubscriptionSchedule  = "create_subscription_schedule"
	OpCancelSubscriptionSchedule  = "cancel_subscription_schedule"
)

// Gateway is the capability contract every processor variant implements in
// full. Operations a processor cannot perform return
// *apperr.UnsupportedOperationError.
type Gateway interface {
	Provider() string
	// SupportsListing reports whether ListFundingSources and
	// ListCustomerTransfers enumerate processor state.
	SupportsListing() bool
	// SupportsRecurring reports whether the processor hosts products,
	// subscriptions and schedules.
	SupportsRecurring() bool

	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, in CustomerInput) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error

	CreateMerchant(ctx context.Context, in MerchantInput) (*Merchant, error)
	RetrieveMerchant(ctx context.Context, accountID string) (*Merchant, error)
	UpdateMerchant(ctx context.Context, accountID string, in MerchantInput) (*Merchant, error)
	DeleteMerchant(ctx context.Context, accountID string) error

	CreateFundingSource(ctx context.Context, in FundingSourceLinkInput) (*FundingInstrument, error)
	CreateFundingSourceManually(ctx context.Context, in FundingSourceManualInput) (*FundingInstrument, error)
	UpdateFundingSource(ctx context.Context, in FundingSourceUpdateInput) (*FundingInstrument, error)
	RetrieveFundingSource(ctx context.Context, owner Owner, fundingID string) (*FundingInstrument, error)
	ListFundingSources(ctx context.Context, owner Owner) ([]FundingInstrument, error)
	GetFundingSourceBalance(ctx context.Context, owner Owner, fundingID string) (*Balance, error)
	VerifyMicrodeposit(ctx context.Context, in MicrodepositInput) error

	InitiateTransfer(ctx context.Context, in TransferInput) (*Transfer, error)
	RetrieveTransfer(ctx context.Context, transferID string) (*Transfer, error)
	CancelTransfer(ctx context.Context, transferID string) (*Transfer, error)
	ListCustomerTransfers(ctx context.Context, owner Owner) ([]Transfer, error)
	GetFeeOfTransaction(ctx context.Context, transferID string) (*FeeBreakdown, error)

	InitiatePayment(ctx context.Context, in PaymentInput) (*Payment, error)
	RetrievePayment(ctx context.Context, paymentID string) (*Payment, error)
	UpdatePayment(ctx context.Context, paymentID string, in PaymentUpdateInput) (*Payment, error)

	CreateWebhook(ctx context.Context, in WebhookInput) (*Webhook, error)
	RetrieveWebhook(ctx context.Context, webhookID string) (*Webhook, error)
	UpdateWebhook(ctx context.Context, webhookID string, in WebhookUpdateInput) (*Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	ListWebhooks(ctx context.Context) ([]Webhook, error)

	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID string, in ProductInput) (*Product, error)
	CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, accountID string) error
	CreateSubscriptionSchedule(ctx context.Context, in ScheduleInput) (*SubscriptionSchedule, error)
	CancelSubscriptionSchedule(ctx context.Context, scheduleID, accountID string) error
}
