package helcim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/money"
	"github.com/shopspring/decimal"
)

const (
	providerName    = gateway.ProviderHelcim
	defaultCurrency = "CAD"
	defaultClientIP = "127.0.0.1"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) New(cfg config.PaymentConfig) (gateway.Gateway, error) {
	token := strings.TrimSpace(cfg.Helcim.APIToken)
	if token == "" {
		return nil, fmt.Errorf("%w: helcim api token is required", gateway.ErrInvalidConfig)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Helcim.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	clientIP := strings.TrimSpace(cfg.Helcim.ClientIP)
	if clientIP == "" {
		clientIP = defaultClientIP
	}
	return &Gateway{
		c: &client{
			baseURL:      baseURL,
			apiToken:     token,
			partnerToken: strings.TrimSpace(cfg.Helcim.PartnerToken),
			http:         &http.Client{Timeout: timeout},
		},
		clientIP: clientIP,
	}, nil
}

// Gateway charges tokenized cards stored against Helcim customers. Customers
// are addressed by their customer code.
type Gateway struct {
	c        *client
	clientIP string
}

func (g *Gateway) Provider() string        { return providerName }
func (g *Gateway) SupportsListing() bool   { return true }
func (g *Gateway) SupportsRecurring() bool { return false }

type billingAddress struct {
	Name       string `json:"name,omitempty"`
	Street1    string `json:"street1,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Email      string `json:"email,omitempty"`
}

type customerResource struct {
	ID             json.Number     `json:"id"`
	CustomerCode   string          `json:"customerCode"`
	ContactName    string          `json:"contactName"`
	BusinessName   string          `json:"businessName"`
	CellPhone      string          `json:"cellPhone"`
	BillingAddress *billingAddress `json:"billingAddress"`
}

func customerBody(in gateway.CustomerInput) map[string]any {
	name := strings.TrimSpace(in.FirstName + " " + in.LastName)
	body := map[string]any{"contactName": name}
	if in.BusinessName != "" {
		body["businessName"] = in.BusinessName
	}
	if in.Phone != "" {
		body["cellPhone"] = in.Phone
	}
	if in.Address.Line1 != "" || in.Email != "" {
		body["billingAddress"] = billingAddress{
			Name:       name,
			Street1:    in.Address.Line1,
			Street2:    in.Address.Line2,
			City:       in.Address.City,
			Province:   in.Address.State,
			Country:    in.Address.Country,
			PostalCode: in.Address.PostalCode,
			Email:      in.Email,
		}
	}
	return body
}

func (r customerResource) toCustomer() *gateway.Customer {
	first, last := r.ContactName, ""
	if idx := strings.Index(r.ContactName, " "); idx > 0 {
		first, last = r.ContactName[:idx], r.ContactName[idx+1:]
	}
	c := &gateway.Customer{
		ID:           r.CustomerCode,
		FirstName:    first,
		LastName:     last,
		BusinessName: r.BusinessName,
		Status:       "active",
	}
	if r.BillingAddress != nil {
		c.Email = r.BillingAddress.Email
	}
	return c
}

func (g *Gateway) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (*gateway.Customer, error) {
	var res customerResource
	if err := g.c.do(ctx, gateway.OpCreateCustomer, http.MethodPost, "customers/", customerBody(in), &res, ""); err != nil {
		return nil, err
	}
	return res.toCustomer(), nil
}

// lookup resolves a customer code to the full record, including the numeric
// id the update and card endpoints need.
func (g *Gateway) lookup(ctx context.Context, op, customerCode string) (*customerResource, error) {
	var res []customerResource
	path := "customers/?customerCode=" + url.QueryEscape(customerCode)
	if err := g.c.do(ctx, op, http.MethodGet, path, nil, &res, ""); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].CustomerCode == customerCode {
			return &res[i], nil
		}
	}
	return nil, apperr.ProviderStatus(providerName, op, http.StatusNotFound, "customer_not_found", "no customer with code "+customerCode, "")
}

func (g *Gateway) RetrieveCustomer(ctx context.Context, customerID string) (*gateway.Customer, error) {
	res, err := g.lookup(ctx, gateway.OpRetrieveCustomer, customerID)
	if err != nil {
		return nil, err
	}
	return res.toCustomer(), nil
}

func (g *Gateway) UpdateCustomer(ctx context.Context, customerID string, in gateway.CustomerInput) (*gateway.Customer, error) {
	existing, err := g.lookup(ctx, gateway.OpUpdateCustomer, customerID)
	if err != nil {
		return nil, err
	}
	var res customerResource
	if err := g.c.do(ctx, gateway.OpUpdateCustomer, http.MethodPut, "customers/"+existing.ID.String(), customerBody(in), &res, ""); err != nil {
		return nil, err
	}
	return res.toCustomer(), nil
}

func (g *Gateway) DeleteCustomer(context.Context, string) error {
	return apperr.Unsupported(providerName, gateway.OpDeleteCustomer)
}

func (g *Gateway) CreateMerchant(context.Context, gateway.MerchantInput) (*gateway.Merchant, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateMerchant)
}

func (g *Gateway) RetrieveMerchant(context.Context, string) (*gateway.Merchant, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpRetrieveMerchant)
}

func (g *Gateway) UpdateMerchant(context.Context, string, gateway.MerchantInput) (*gateway.Merchant, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdateMerchant)
}

func (g *Gateway) DeleteMerchant(context.Context, string) error {
	return apperr.Unsupported(providerName, gateway.OpDeleteMerchant)
}

type cardResource struct {
	ID         json.Number `json:"id"`
	CardToken  string      `json:"cardToken"`
	CardF6L4   string      `json:"cardF6L4"`
	CardExpiry string      `json:"cardExpiry"`
	IsDefault  bool        `json:"isDefault"`
}

func (r cardResource) toInstrument() gateway.FundingInstrument {
	last4 := r.CardF6L4
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return gateway.FundingInstrument{
		ID:       r.CardToken,
		Name:     "card " + last4,
		Type:     gateway.FundingTypeCard,
		Last4:    last4,
		Status:   "verified",
		Verified: true,
	}
}

func (g *Gateway) cards(ctx context.Context, op, customerCode string) ([]cardResource, error) {
	cus, err := g.lookup(ctx, op, customerCode)
	if err != nil {
		return nil, err
	}
	var res []cardResource
	if err := g.c.do(ctx, op, http.MethodGet, "customers/"+cus.ID.String()+"/cards", nil, &res, ""); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateFundingSource registers a card token produced by HelcimPay.js. The
// card is already stored against the customer, so the token is confirmed by
// listing the customer's cards.
func (g *Gateway) CreateFundingSource(ctx context.Context, in gateway.FundingSourceLinkInput) (*gateway.FundingInstrument, error) {
	if in.Token == "" {
		return nil, apperr.Invalid("token", "required")
	}
	fi, err := g.findCard(ctx, gateway.OpCreateFundingSource, in.Owner.CustomerID, in.Token)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		fi.Name = in.Name
	}
	return fi, nil
}

func (g *Gateway) findCard(ctx context.Context, op, customerCode, token string) (*gateway.FundingInstrument, error) {
	cards, err := g.cards(ctx, op, customerCode)
	if err != nil {
		return nil, err
	}
	for _, card := range cards {
		if card.CardToken == token {
			fi := card.toInstrument()
			return &fi, nil
		}
	}
	return nil, apperr.ProviderStatus(providerName, op, http.StatusNotFound, "card_not_found", "card token is not stored for customer "+customerCode, "")
}

func (g *Gateway) CreateFundingSourceManually(context.Context, gateway.FundingSourceManualInput) (*gateway.FundingInstrument, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateFundingSourceManually)
}

func (g *Gateway) UpdateFundingSource(context.Context, gateway.FundingSourceUpdateInput) (*gateway.FundingInstrument, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdateFundingSource)
}

func (g *Gateway) RetrieveFundingSource(ctx context.Context, owner gateway.Owner, fundingID string) (*gateway.FundingInstrument, error) {
	return g.findCard(ctx, gateway.OpRetrieveFundingSource, owner.CustomerID, fundingID)
}

func (g *Gateway) ListFundingSources(ctx context.Context, owner gateway.Owner) ([]gateway.FundingInstrument, error) {
	cards, err := g.cards(ctx, gateway.OpListFundingSources, owner.CustomerID)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.FundingInstrument, 0, len(cards))
	for _, card := range cards {
		out = append(out, card.toInstrument())
	}
	return out, nil
}

func (g *Gateway) GetFundingSourceBalance(context.Context, gateway.Owner, string) (*gateway.Balance, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpGetFundingSourceBalance)
}

func (g *Gateway) VerifyMicrodeposit(context.Context, gateway.MicrodepositInput) error {
	return apperr.Unsupported(providerName, gateway.OpVerifyMicrodeposit)
}

type transactionResource struct {
	TransactionID json.Number     `json:"transactionId"`
	Status        string          `json:"status"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerCode  string          `json:"customerCode"`
	DateCreated   string          `json:"dateCreated"`
	InvoiceNumber string          `json:"invoiceNumber"`
}

const dateLayout = "2006-01-02 15:04:05"

func (r transactionResource) toTransfer() *gateway.Transfer {
	t := &gateway.Transfer{
		ID:            r.TransactionID.String(),
		Status:        transactionStatus(r.Status, r.Type),
		Amount:        r.Amount,
		Currency:      money.Normalize(r.Currency),
		CorrelationID: r.InvoiceNumber,
	}
	if created, err := time.Parse(dateLayout, r.DateCreated); err == nil {
		t.CreatedAt = created.UTC()
	}
	if t.Status == gateway.StatusFailed {
		t.FailureReason = "declined"
	}
	return t
}

func transactionStatus(status, kind string) string {
	switch strings.ToUpper(status) {
	case "APPROVED":
		if strings.EqualFold(kind, "reverse") {
			return gateway.StatusCancelled
		}
		return gateway.StatusProcessed
	case "DECLINED":
		return gateway.StatusFailed
	default:
		return gateway.StatusPending
	}
}

func (g *Gateway) purchase(ctx context.Context, op, customerCode, cardToken, invoice, key string, amount decimal.Decimal, currency string) (*transactionResource, error) {
	currency = money.Normalize(currency)
	if currency == "" {
		currency = defaultCurrency
	}
	body := map[string]any{
		"ipAddress":    g.clientIP,
		"currency":     currency,
		"amount":       json.Number(amount.StringFixed(money.Exponent(currency))),
		"customerCode": customerCode,
		"cardData":     map[string]string{"cardToken": cardToken},
	}
	if invoice != "" {
		body["invoiceNumber"] = invoice
	}
	var res transactionResource
	if err := g.c.do(ctx, op, http.MethodPost, "payment/purchase", body, &res, idempotencyKey(key)); err != nil {
		return nil, err
	}
	return &res, nil
}

// InitiateTransfer charges the source card. Helcim settles to the merchant
// account the API token belongs to, so the destination is implied.
func (g *Gateway) InitiateTransfer(ctx context.Context, in gateway.TransferInput) (*gateway.Transfer, error) {
	res, err := g.purchase(ctx, gateway.OpInitiateTransfer, in.Source.Owner.CustomerID, in.Source.FundingID,
		in.CorrelationID, in.CorrelationID, in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	t := res.toTransfer()
	if t.CorrelationID == "" {
		t.CorrelationID = in.CorrelationID
	}
	return t, nil
}

func (g *Gateway) RetrieveTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	var res transactionResource
	if err := g.c.do(ctx, gateway.OpRetrieveTransfer, http.MethodGet, "card-transactions/"+transferID, nil, &res, ""); err != nil {
		return nil, err
	}
	return res.toTransfer(), nil
}

// CancelTransfer reverses an approved, unsettled transaction.
func (g *Gateway) CancelTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	body := map[string]any{
		"cardTransactionId": json.Number(transferID),
		"ipAddress":         g.clientIP,
	}
	var res transactionResource
	if err := g.c.do(ctx, gateway.OpCancelTransfer, http.MethodPost, "payment/reverse", body, &res, idempotencyKey("rev"+transferID)); err != nil {
		return nil, err
	}
	t := res.toTransfer()
	if t.Status == gateway.StatusProcessed || t.Status == gateway.StatusCancelled {
		t.Status = gateway.StatusCancelled
	}
	return t, nil
}

func (g *Gateway) ListCustomerTransfers(ctx context.Context, owner gateway.Owner) ([]gateway.Transfer, error) {
	var res []transactionResource
	path := "card-transactions/?customerCode=" + url.QueryEscape(owner.CustomerID)
	if err := g.c.do(ctx, gateway.OpListCustomerTransfers, http.MethodGet, path, nil, &res, ""); err != nil {
		return nil, err
	}
	out := make([]gateway.Transfer, 0, len(res))
	for _, item := range res {
		out = append(out, *item.toTransfer())
	}
	return out, nil
}

func (g *Gateway) GetFeeOfTransaction(context.Context, string) (*gateway.FeeBreakdown, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpGetFeeOfTransaction)
}

func (g *Gateway) InitiatePayment(ctx context.Context, in gateway.PaymentInput) (*gateway.Payment, error) {
	if in.FundingID == "" {
		return nil, apperr.Invalid("funding_id", "helcim payments need a stored card token")
	}
	res, err := g.purchase(ctx, gateway.OpInitiatePayment, in.Customer.CustomerID, in.FundingID,
		"", in.IdempotencyKey, in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	t := res.toTransfer()
	return &gateway.Payment{ID: t.ID, Status: t.Status, Amount: t.Amount, Currency: t.Currency}, nil
}

func (g *Gateway) RetrievePayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	t, err := g.RetrieveTransfer(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &gateway.Payment{ID: t.ID, Status: t.Status, Amount: t.Amount, Currency: t.Currency}, nil
}

func (g *Gateway) UpdatePayment(context.Context, string, gateway.PaymentUpdateInput) (*gateway.Payment, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdatePayment)
}

func (g *Gateway) CreateWebhook(context.Context, gateway.WebhookInput) (*gateway.Webhook, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateWebhook)
}

func (g *Gateway) RetrieveWebhook(context.Context, string) (*gateway.Webhook, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpRetrieveWebhook)
}

func (g *Gateway) UpdateWebhook(context.Context, string, gateway.WebhookUpdateInput) (*gateway.Webhook, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdateWebhook)
}

func (g *Gateway) DeleteWebhook(context.Context, string) error {
	return apperr.Unsupported(providerName, gateway.OpDeleteWebhook)
}

func (g *Gateway) ListWebhooks(context.Context) ([]gateway.Webhook, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpListWebhooks)
}

func (g *Gateway) CreateProduct(context.Context, gateway.ProductInput) (*gateway.Product, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateProduct)
}

func (g *Gateway) UpdateProduct(context.Context, string, gateway.ProductInput) (*gateway.Product, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdateProduct)
}

func (g *Gateway) CreateSubscription(context.Context, gateway.SubscriptionInput) (*gateway.Subscription, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateSubscription)
}

func (g *Gateway) CancelSubscription(context.Context, string, string) error {
	return apperr.Unsupported(providerName, gateway.OpCancelSubscription)
}

func (g *Gateway) CreateSubscriptionSchedule(context.Context, gateway.ScheduleInput) (*gateway.SubscriptionSchedule, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpCreateSubscriptionSchedule)
}

func (g *Gateway) CancelSubscriptionSchedule(context.Context, string, string) error {
	return apperr.Unsupported(providerName, gateway.OpCancelSubscriptionSchedule)
}

var _ gateway.Gateway = (*Gateway)(nil)
