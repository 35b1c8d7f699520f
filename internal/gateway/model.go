package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer statuses normalized across processors.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Funding instrument types.
const (
	FundingTypeBank    = "bank"
	FundingTypeCard    = "card"
	FundingTypeBalance = "balance"
)

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

type CustomerInput struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	BusinessName string
	Address      Address
	// IPAddress is forwarded where processors require the end user address.
	IPAddress string
	Metadata  map[string]string
}

type Customer struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	BusinessName string
	Status       string
}

type MerchantInput struct {
	Email               string
	BusinessName        string
	BusinessType        string
	Country             string
	Phone               string
	Website             string
	StatementDescriptor string
	Address             Address
	Metadata            map[string]string
}

type Merchant struct {
	ID             string
	Email          string
	BusinessName   string
	Country        string
	Status         string
	ChargesEnabled bool
	PayoutsEnabled bool
}

// Owner addresses the processor identity a funding instrument hangs off.
// Exactly one of CustomerID or AccountID is expected.
type Owner struct {
	CustomerID string
	AccountID  string
}

func (o Owner) IsMerchant() bool { return o.AccountID != "" }

// ID returns whichever processor id is set.
func (o Owner) ID() string {
	if o.AccountID != "" {
		return o.AccountID
	}
	return o.CustomerID
}

type FundingSourceLinkInput struct {
	Owner Owner
	Name  string
	// Token is a processor or aggregator token (plaid processor token, stripe
	// payment method or bank token, helcim card token).
	Token string
}

type FundingSourceManualInput struct {
	Owner             Owner
	Name              string
	RoutingNumber     string
	AccountNumber     string
	AccountType       string
	AccountHolderName string
	AccountHolderType string
	Country           string
	Currency          string
}

type FundingSourceUpdateInput struct {
	Owner     Owner
	FundingID string
	Name      string
	Removed   bool
}

type FundingInstrument struct {
	ID       string
	Name     string
	Type     string
	BankName string
	Last4    string
	Status   string
	Verified bool
	Removed  bool
}

type Balance struct {
	Value    decimal.Decimal
	Currency string
}

// MicrodepositInput verifies two deposit amounts. With no amounts the
// processor is asked to send the deposits.
type MicrodepositInput struct {
	Owner     Owner
	FundingID string
	Amount1   *decimal.Decimal
	Amount2   *decimal.Decimal
	Currency  string
}

func (m MicrodepositInput) Initiate() bool { return m.Amount1 == nil && m.Amount2 == nil }

type FundingParty struct {
	Owner     Owner
	FundingID string
}

type FeeCharge struct {
	ChargeTo Owner
	Amount   decimal.Decimal
	Currency string
}

type TransferInput struct {
	Source        FundingParty
	Destination   FundingParty
	Amount        decimal.Decimal
	Currency      string
	CorrelationID string
	Descriptor    string
	Description   string
	Fees          []FeeCharge
	Metadata      map[string]string
}

type Transfer struct {
	ID            string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	CorrelationID string
	FailureReason string
	CreatedAt     time.Time
}

type FeeLine struct {
	// Link is the processor's stable reference for the fee line.
	Link string
	// ChargedTo is the processor customer id that paid the fee.
	ChargedTo    string
	TransferLink string
	Status       string
	Amount       decimal.Decimal
	Currency     string
}

type FeeBreakdown struct {
	Total int
	Lines []FeeLine
}

type PaymentInput struct {
	Customer       Owner
	FundingID      string
	Destination    string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Descriptor     string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentUpdateInput struct {
	Amount      *decimal.Decimal
	Currency    string
	Description *string
	Metadata    map[string]string
}

type Payment struct {
	ID           string
	Status       string
	Amount       decimal.Decimal
	Currency     string
	ClientSecret string
}

type WebhookInput struct {
	URL    string
	Secret string
	Events []string
}

type WebhookUpdateInput struct {
	Paused bool
}

type Webhook struct {
	ID        string
	URL       string
	Paused    bool
	Secret    string
	CreatedAt time.Time
}

type ProductInput struct {
	Name          string
	AccountID     string
	Price         decimal.Decimal
	Currency      string
	Interval      string
	IntervalCount int64
}

type Product struct {
	ID      string
	PriceID string
}

type SubscriptionInput struct {
	CustomerID            string
	AccountID             string
	PriceID               string
	PaymentMethodID       string
	ApplicationFeePercent *decimal.Decimal
	Iterations            int64
	Description           string
	IdempotencyKey        string
}

type Subscription struct {
	ID           string
	Status       string
	ClientSecret string
}

type ScheduleInput struct {
	SubscriptionInput
	// StartAt zero means start now.
	StartAt time.Time
}

type SubscriptionSchedule struct {
	ID             string
	SubscriptionID string
	Status         string
}
