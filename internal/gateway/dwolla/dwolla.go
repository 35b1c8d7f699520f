package dwolla

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/money"
	"github.com/shopspring/decimal"
)

const providerName = gateway.ProviderDwolla

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) New(cfg config.PaymentConfig) (gateway.Gateway, error) {
	key := strings.TrimSpace(cfg.Dwolla.Key)
	secret := strings.TrimSpace(cfg.Dwolla.Secret)
	if key == "" || secret == "" {
		return nil, fmt.Errorf("%w: dwolla key and secret are required", gateway.ErrInvalidConfig)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Dwolla.BaseURL), "/")
	if baseURL == "" {
		baseURL = sandboxURL
		if strings.EqualFold(cfg.Dwolla.Environment, "production") {
			baseURL = productionURL
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gateway{c: &client{
		baseURL: baseURL,
		key:     key,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}}, nil
}

// Gateway moves money over ACH between Dwolla customers' funding sources.
// Card payments and processor-hosted recurring billing are not offered.
type Gateway struct {
	c *client
}

func (g *Gateway) Provider() string        { return providerName }
func (g *Gateway) SupportsListing() bool   { return true }
func (g *Gateway) SupportsRecurring() bool { return false }

type link struct {
	Href string `json:"href"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func toAmount(value decimal.Decimal, currency string) amount {
	currency = money.Normalize(currency)
	return amount{Value: value.StringFixed(money.Exponent(currency)), Currency: currency}
}

func (a amount) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(a.Value))
	if err != nil {
		return decimal.Zero
	}
	return d
}

type customerResource struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	BusinessName string `json:"businessName"`
}

func customerBody(in gateway.CustomerInput) map[string]any {
	body := map[string]any{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"email":     in.Email,
	}
	if in.BusinessName != "" {
		body["businessName"] = in.BusinessName
	}
	if in.IPAddress != "" {
		body["ipAddress"] = in.IPAddress
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}
	if in.Address.Line1 != "" {
		body["address1"] = in.Address.Line1
		body["address2"] = in.Address.Line2
		body["city"] = in.Address.City
		body["state"] = in.Address.State
		body["postalCode"] = in.Address.PostalCode
	}
	return body
}

func (r customerResource) toCustomer() *gateway.Customer {
	return &gateway.Customer{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		BusinessName: r.BusinessName,
		Status:       r.Status,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (*gateway.Customer, error) {
	id, err := g.c.create(ctx, gateway.OpCreateCustomer, "customers", customerBody(in), "")
	if err != nil {
		return nil, err
	}
	return g.RetrieveCustomer(ctx, id)
}

func (g *Gateway) RetrieveCustomer(ctx context.Context, customerID string) (*gateway.Customer, error) {
	var res customerResource
	if err := g.c.get(ctx, gateway.OpRetrieveCustomer, "customers/"+customerID, &res); err != nil {
		return nil, err
	}
	return res.toCustomer(), nil
}

func (g *Gateway) UpdateCustomer(ctx context.Context, customerID string, in gateway.CustomerInput) (*gateway.Customer, error) {
	var res customerResource
	if err := g.c.post(ctx, gateway.OpUpdateCustomer, "customers/"+customerID, customerBody(in), &res); err != nil {
		return nil, err
	}
	return res.toCustomer(), nil
}

// DeleteCustomer deactivates the customer. Dwolla never hard-deletes.
func (g *Gateway) DeleteCustomer(ctx context.Context, customerID string) error {
	return g.c.post(ctx, gateway.OpDeleteCustomer, "customers/"+customerID, map[string]any{"status": "deactivated"}, nil)
}

// Merchants are receive-only customers.
func (g *Gateway) CreateMerchant(ctx context.Context, in gateway.MerchantInput) (*gateway.Merchant, error) {
	id, err := g.c.create(ctx, gateway.OpCreateMerchant, "customers", merchantBody(in), "")
	if err != nil {
		return nil, err
	}
	return g.RetrieveMerchant(ctx, id)
}

func merchantBody(in gateway.MerchantInput) map[string]any {
	first, last := splitName(in.BusinessName)
	return map[string]any{
		"firstName":    first,
		"lastName":     last,
		"email":        in.Email,
		"type":         "receive-only",
		"businessName": in.BusinessName,
	}
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], fields[0]
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func (g *Gateway) RetrieveMerchant(ctx context.Context, accountID string) (*gateway.Merchant, error) {
	var res customerResource
	if err := g.c.get(ctx, gateway.OpRetrieveMerchant, "customers/"+accountID, &res); err != nil {
		return nil, err
	}
	return merchantFrom(res), nil
}

func merchantFrom(res customerResource) *gateway.Merchant {
	active := !strings.EqualFold(res.Status, "deactivated") && !strings.EqualFold(res.Status, "suspended")
	return &gateway.Merchant{
		ID:             res.ID,
		Email:          res.Email,
		BusinessName:   res.BusinessName,
		Country:        "US",
		Status:         res.Status,
		ChargesEnabled: active,
		PayoutsEnabled: active,
	}
}

func (g *Gateway) UpdateMerchant(ctx context.Context, accountID string, in gateway.MerchantInput) (*gateway.Merchant, error) {
	body := merchantBody(in)
	delete(body, "type")
	var res customerResource
	if err := g.c.post(ctx, gateway.OpUpdateMerchant, "customers/"+accountID, body, &res); err != nil {
		return nil, err
	}
	return merchantFrom(res), nil
}

func (g *Gateway) DeleteMerchant(ctx context.Context, accountID string) error {
	return g.c.post(ctx, gateway.OpDeleteMerchant, "customers/"+accountID, map[string]any{"status": "deactivated"}, nil)
}

type fundingResource struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Type            string `json:"type"`
	BankAccountType string `json:"bankAccountType"`
	Name            string `json:"name"`
	BankName        string `json:"bankName"`
	Removed         bool   `json:"removed"`
}

func (r fundingResource) toInstrument() gateway.FundingInstrument {
	fi := gateway.FundingInstrument{
		ID:       r.ID,
		Name:     r.Name,
		Type:     gateway.FundingTypeBank,
		BankName: r.BankName,
		Status:   r.Status,
		Verified: strings.EqualFold(r.Status, "verified"),
		Removed:  r.Removed,
	}
	if strings.EqualFold(r.Type, "balance") {
		fi.Type = gateway.FundingTypeBalance
		fi.BankName = "dwolla balance"
	}
	return fi
}

func (g *Gateway) CreateFundingSource(ctx context.Context, in gateway.FundingSourceLinkInput) (*gateway.FundingInstrument, error) {
	if in.Token == "" {
		return nil, apperr.Invalid("token", "required")
	}
	body := map[string]any{
		"plaidToken": in.Token,
		"name":       in.Name,
	}
	return g.createFunding(ctx, gateway.OpCreateFundingSource, in.Owner, body)
}

func (g *Gateway) CreateFundingSourceManually(ctx context.Context, in gateway.FundingSourceManualInput) (*gateway.FundingInstrument, error) {
	accountType := strings.ToLower(in.AccountType)
	if accountType == "" {
		accountType = "checking"
	}
	body := map[string]any{
		"routingNumber":   in.RoutingNumber,
		"accountNumber":   in.AccountNumber,
		"bankAccountType": accountType,
		"name":            in.Name,
	}
	return g.createFunding(ctx, gateway.OpCreateFundingSourceManually, in.Owner, body)
}

func (g *Gateway) createFunding(ctx context.Context, op string, owner gateway.Owner, body map[string]any) (*gateway.FundingInstrument, error) {
	id, err := g.c.create(ctx, op, "customers/"+owner.ID()+"/funding-sources", body, "")
	if err != nil {
		return nil, err
	}
	var res fundingResource
	if err := g.c.get(ctx, op, "funding-sources/"+id, &res); err != nil {
		return nil, err
	}
	fi := res.toInstrument()
	return &fi, nil
}

func (g *Gateway) UpdateFundingSource(ctx context.Context, in gateway.FundingSourceUpdateInput) (*gateway.FundingInstrument, error) {
	body := map[string]any{}
	if in.Removed {
		body["removed"] = true
	} else {
		body["name"] = in.Name
	}
	var res fundingResource
	if err := g.c.post(ctx, gateway.OpUpdateFundingSource, "funding-sources/"+in.FundingID, body, &res); err != nil {
		return nil, err
	}
	fi := res.toInstrument()
	return &fi, nil
}

func (g *Gateway) RetrieveFundingSource(ctx context.Context, _ gateway.Owner, fundingID string) (*gateway.FundingInstrument, error) {
	var res fundingResource
	if err := g.c.get(ctx, gateway.OpRetrieveFundingSource, "funding-sources/"+fundingID, &res); err != nil {
		return nil, err
	}
	fi := res.toInstrument()
	return &fi, nil
}

func (g *Gateway) ListFundingSources(ctx context.Context, owner gateway.Owner) ([]gateway.FundingInstrument, error) {
	var res struct {
		Embedded struct {
			FundingSources []fundingResource `json:"funding-sources"`
		} `json:"_embedded"`
	}
	if err := g.c.get(ctx, gateway.OpListFundingSources, "customers/"+owner.ID()+"/funding-sources", &res); err != nil {
		return nil, err
	}
	out := make([]gateway.FundingInstrument, 0, len(res.Embedded.FundingSources))
	for _, item := range res.Embedded.FundingSources {
		out = append(out, item.toInstrument())
	}
	return out, nil
}

func (g *Gateway) GetFundingSourceBalance(ctx context.Context, _ gateway.Owner, fundingID string) (*gateway.Balance, error) {
	var res struct {
		Balance amount `json:"balance"`
	}
	if err := g.c.get(ctx, gateway.OpGetFundingSourceBalance, "funding-sources/"+fundingID+"/balance", &res); err != nil {
		return nil, err
	}
	return &gateway.Balance{Value: res.Balance.decimal(), Currency: res.Balance.Currency}, nil
}

func (g *Gateway) VerifyMicrodeposit(ctx context.Context, in gateway.MicrodepositInput) error {
	path := "funding-sources/" + in.FundingID + "/micro-deposits"
	if in.Initiate() {
		_, err := g.c.do(ctx, gateway.OpVerifyMicrodeposit, http.MethodPost, path, nil, "")
		return err
	}
	if in.Amount1 == nil || in.Amount2 == nil {
		return apperr.Invalid("amounts", "both microdeposit amounts are required")
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	body := map[string]any{
		"amount1": toAmount(*in.Amount1, currency),
		"amount2": toAmount(*in.Amount2, currency),
	}
	return g.c.post(ctx, gateway.OpVerifyMicrodeposit, path, body, nil)
}

type transferResource struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Amount        amount    `json:"amount"`
	Created       time.Time `json:"created"`
	CorrelationID string    `json:"correlationId"`
}

func (r transferResource) toTransfer() gateway.Transfer {
	return gateway.Transfer{
		ID:            r.ID,
		Status:        normalizeStatus(r.Status),
		Amount:        r.Amount.decimal(),
		Currency:      r.Amount.Currency,
		CorrelationID: r.CorrelationID,
		CreatedAt:     r.Created,
	}
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "processed":
		return gateway.StatusProcessed
	case "failed":
		return gateway.StatusFailed
	case "cancelled":
		return gateway.StatusCancelled
	default:
		return gateway.StatusPending
	}
}

func (g *Gateway) InitiateTransfer(ctx context.Context, in gateway.TransferInput) (*gateway.Transfer, error) {
	links := map[string]link{
		"source":      {Href: g.c.href("funding-sources", in.Source.FundingID)},
		"destination": {Href: g.c.href("funding-sources", in.Destination.FundingID)},
	}
	body := map[string]any{
		"_links": links,
		"amount": toAmount(in.Amount, in.Currency),
	}
	if in.CorrelationID != "" {
		body["correlationId"] = in.CorrelationID
	}
	if len(in.Metadata) > 0 {
		body["metadata"] = in.Metadata
	}
	if len(in.Fees) > 0 {
		fees := make([]map[string]any, 0, len(in.Fees))
		for _, fee := range in.Fees {
			currency := fee.Currency
			if currency == "" {
				currency = in.Currency
			}
			fees = append(fees, map[string]any{
				"_links": map[string]link{"charge-to": {Href: g.c.href("customers", fee.ChargeTo.ID())}},
				"amount": toAmount(fee.Amount, currency),
			})
		}
		body["fees"] = fees
	}

	id, err := g.c.create(ctx, gateway.OpInitiateTransfer, "transfers", body, in.CorrelationID)
	if err != nil {
		return nil, err
	}
	return g.RetrieveTransfer(ctx, id)
}

func (g *Gateway) RetrieveTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	var res transferResource
	if err := g.c.get(ctx, gateway.OpRetrieveTransfer, "transfers/"+transferID, &res); err != nil {
		return nil, err
	}
	t := res.toTransfer()
	if t.Status == gateway.StatusFailed {
		reason, err := g.failureReason(ctx, transferID)
		if err != nil {
			return nil, err
		}
		t.FailureReason = reason
	}
	return &t, nil
}

func (g *Gateway) failureReason(ctx context.Context, transferID string) (string, error) {
	var res struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	if err := g.c.get(ctx, gateway.OpRetrieveTransfer, "transfers/"+transferID+"/failure", &res); err != nil {
		if apperr.IsProviderNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if res.Code == "" {
		return res.Description, nil
	}
	return res.Code + ": " + res.Description, nil
}

func (g *Gateway) CancelTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	var res transferResource
	if err := g.c.post(ctx, gateway.OpCancelTransfer, "transfers/"+transferID, map[string]any{"status": "cancelled"}, &res); err != nil {
		return nil, err
	}
	t := res.toTransfer()
	return &t, nil
}

func (g *Gateway) ListCustomerTransfers(ctx context.Context, owner gateway.Owner) ([]gateway.Transfer, error) {
	var res struct {
		Embedded struct {
			Transfers []transferResource `json:"transfers"`
		} `json:"_embedded"`
	}
	if err := g.c.get(ctx, gateway.OpListCustomerTransfers, "customers/"+owner.ID()+"/transfers", &res); err != nil {
		return nil, err
	}
	out := make([]gateway.Transfer, 0, len(res.Embedded.Transfers))
	for _, item := range res.Embedded.Transfers {
		out = append(out, item.toTransfer())
	}
	return out, nil
}

type feeResource struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Amount amount          `json:"amount"`
	Links  map[string]link `json:"_links"`
}

func (g *Gateway) GetFeeOfTransaction(ctx context.Context, transferID string) (*gateway.FeeBreakdown, error) {
	var res struct {
		Total        int           `json:"total"`
		Transactions []feeResource `json:"transactions"`
		Embedded     struct {
			Fees []feeResource `json:"fees"`
		} `json:"_embedded"`
	}
	if err := g.c.get(ctx, gateway.OpGetFeeOfTransaction, "transfers/"+transferID+"/fees", &res); err != nil {
		return nil, err
	}

	items := res.Transactions
	if len(items) == 0 {
		items = res.Embedded.Fees
	}
	out := &gateway.FeeBreakdown{Total: res.Total, Lines: make([]gateway.FeeLine, 0, len(items))}
	for _, item := range items {
		self := item.Links["self"].Href
		if self == "" {
			self = g.c.href("transfers", item.ID)
		}
		chargedTo := item.Links["source"].Href
		if chargedTo == "" {
			chargedTo = item.Links["charge-to"].Href
		}
		out.Lines = append(out.Lines, gateway.FeeLine{
			Link:         self,
			ChargedTo:    lastSegment(chargedTo),
			TransferLink: item.Links["created-from-transfer"].Href,
			Status:       normalizeStatus(item.Status),
			Amount:       item.Amount.decimal(),
			Currency:     item.Amount.Currency,
		})
	}
	if out.Total == 0 {
		out.Total = len(out.Lines)
	}
	return out, nil
}

func (g *Gateway) InitiatePayment(context.Context, gateway.PaymentInput) (*gateway.Payment, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpInitiatePayment)
}

func (g *Gateway) RetrievePayment(context.Context, string) (*gateway.Payment, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpRetrievePayment)
}

func (g *Gateway) UpdatePayment(context.Context, string, gateway.PaymentUpdateInput) (*gateway.Payment, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpUpdatePayment)
}

type webhookResource struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Paused  bool      `json:"paused"`
	Created time.Time `json:"created"`
}

func (r webhookResource) toWebhook() gateway.Webhook {
	return gateway.Webhook{ID: r.ID, URL: r.URL, Paused: r.Paused, CreatedAt: r.Created}
}

func (g *Gateway) CreateWebhook(ctx context.Context, in gateway.WebhookInput) (*gateway.Webhook, error) {
	if in.Secret == "" {
		return nil, apperr.Invalid("secret", "required")
	}
	id, err := g.c.create(ctx, gateway.OpCreateWebhook, "webhook-subscriptions", map[string]any{
		"url":    in.URL,
		"secret": in.Secret,
	}, "")
	if err != nil {
		return nil, err
	}
	wh, err := g.RetrieveWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	wh.Secret = in.Secret
	return wh, nil
}

func (g *Gateway) RetrieveWebhook(ctx context.Context, webhookID string) (*gateway.Webhook, error) {
	var res webhookResource
	if err := g.c.get(ctx, gateway.OpRetrieveWebhook, "webhook-subscriptions/"+webhookID, &res); err != nil {
		return nil, err
	}
	wh := res.toWebhook()
	return &wh, nil
}

func (g *Gateway) UpdateWebhook(ctx context.Context, webhookID string, in gateway.WebhookUpdateInput) (*gateway.Webhook, error) {
	var res webhookResource
	if err := g.c.post(ctx, gateway.OpUpdateWebhook, "webhook-subscriptions/"+webhookID, map[string]any{"paused": in.Paused}, &res); err != nil {
		return nil, err
	}
	wh := res.toWebhook()
	return &wh, nil
}

func (g *Gateway) DeleteWebhook(ctx context.Context, webhookID string) error {
	_, err := g.c.do(ctx, gateway.OpDeleteWebhook, http.MethodDelete, "webhook-subscriptions/"+webhookID, nil, "")
	return err
}

func (g *Gateway) ListWebhooks(ctx context.Context) ([]gateway.Webhook, error) {
	var res struct {
		Embedded struct {
			Subscriptions []webhookResource `json:"webhook-subscriptions"`
		} `json:"_embedded"`
	}
	if err := g.c.get(ctx, gateway.OpListWebhooks, "webhook-subscriptions", &res); err != nil {
		return nil, err
	}
	out := make([]gateway.Webhook, 0, len(res.Embedded.Subscriptions))
	for _, item := range res.Embedded.Subscriptions {
		out = append(out, item.toWebhook())
	}
	return out, nil
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
