package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const providerName = gateway.ProviderStripe

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) New(cfg config.PaymentConfig) (gateway.Gateway, error) {
	key := strings.TrimSpace(cfg.Stripe.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: stripe api key is required", gateway.ErrInvalidConfig)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	backends := &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig(httpClient, cfg.Stripe.BaseURL)),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig(httpClient, "")),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig(httpClient, "")),
	}
	return &Gateway{api: client.New(key, backends)}, nil
}

// backendConfig disables the SDK's own retries; Instrument decides what may
// be repeated.
func backendConfig(httpClient *http.Client, url string) *stripego.BackendConfig {
	cfg := &stripego.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	}
	if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
		cfg.URL = stripego.String(url)
	}
	return cfg
}

// Gateway charges cards and US bank accounts through PaymentIntents and
// settles to Connect custom accounts.
type Gateway struct {
	api *client.API
}

func (g *Gateway) Provider() string        { return providerName }
func (g *Gateway) SupportsListing() bool   { return true }
func (g *Gateway) SupportsRecurring() bool { return true }

func providerErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *stripego.Error
	if errors.As(err, &se) {
		status := se.HTTPStatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return apperr.ProviderStatus(providerName, op, status, string(se.Code), se.Msg, se.RequestID)
	}
	return apperr.ProviderFailure(providerName, op, err)
}

func addMetadata(add func(string, string), metadata map[string]string) {
	for k, v := range metadata {
		add(k, v)
	}
}

func addressParams(a gateway.Address) *stripego.AddressParams {
	if a.Line1 == "" {
		return nil
	}
	return &stripego.AddressParams{
		Line1:      stripego.String(a.Line1),
		Line2:      optional(a.Line2),
		City:       optional(a.City),
		State:      optional(a.State),
		PostalCode: optional(a.PostalCode),
		Country:    optional(a.Country),
	}
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return stripego.String(v)
}

func customerParams(ctx context.Context, in gateway.CustomerInput) *stripego.CustomerParams {
	name := strings.TrimSpace(in.FirstName + " " + in.LastName)
	if name == "" {
		name = in.BusinessName
	}
	params := &stripego.CustomerParams{
		Email:   optional(in.Email),
		Name:    optional(name),
		Phone:   optional(in.Phone),
		Address: addressParams(in.Address),
	}
	params.Context = ctx
	addMetadata(params.AddMetadata, in.Metadata)
	return params
}

func toCustomer(c *stripego.Customer) *gateway.Customer {
	first, last := c.Name, ""
	if idx := strings.Index(c.Name, " "); idx > 0 {
		first, last = c.Name[:idx], c.Name[idx+1:]
	}
	status := "active"
	if c.Deleted {
		status = "deleted"
	}
	return &gateway.Customer{
		ID:        c.ID,
		Email:     c.Email,
		FirstName: first,
		LastName:  last,
		Status:    status,
	}
}

func (g *Gateway) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (*gateway.Customer, error) {
	c, err := g.api.Customers.New(customerParams(ctx, in))
	if err != nil {
		return nil, providerErr(gateway.OpCreateCustomer, err)
	}
	return toCustomer(c), nil
}

func (g *Gateway) RetrieveCustomer(ctx context.Context, customerID string) (*gateway.Customer, error) {
	params := &stripego.CustomerParams{}
	params.Context = ctx
	c, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrieveCustomer, err)
	}
	return toCustomer(c), nil
}

func (g *Gateway) UpdateCustomer(ctx context.Context, customerID string, in gateway.CustomerInput) (*gateway.Customer, error) {
	c, err := g.api.Customers.Update(customerID, customerParams(ctx, in))
	if err != nil {
		return nil, providerErr(gateway.OpUpdateCustomer, err)
	}
	return toCustomer(c), nil
}

func (g *Gateway) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripego.CustomerParams{}
	params.Context = ctx
	_, err := g.api.Customers.Del(customerID, params)
	return providerErr(gateway.OpDeleteCustomer, err)
}

func accountParams(ctx context.Context, in gateway.MerchantInput) *stripego.AccountParams {
	params := &stripego.AccountParams{
		Email:        optional(in.Email),
		BusinessType: optional(in.BusinessType),
	}
	if in.BusinessName != "" || in.Website != "" {
		params.BusinessProfile = &stripego.AccountBusinessProfileParams{
			Name: optional(in.BusinessName),
			URL:  optional(in.Website),
		}
	}
	if in.StatementDescriptor != "" {
		params.Settings = &stripego.AccountSettingsParams{
			Payments: &stripego.AccountSettingsPaymentsParams{
				StatementDescriptor: stripego.String(in.StatementDescriptor),
			},
		}
	}
	params.Context = ctx
	addMetadata(params.AddMetadata, in.Metadata)
	return params
}

func toMerchant(a *stripego.Account) *gateway.Merchant {
	m := &gateway.Merchant{
		ID:             a.ID,
		Email:          a.Email,
		Country:        a.Country,
		ChargesEnabled: a.ChargesEnabled,
		PayoutsEnabled: a.PayoutsEnabled,
		Status:         "restricted",
	}
	if a.BusinessProfile != nil {
		m.BusinessName = a.BusinessProfile.Name
	}
	switch {
	case a.Deleted:
		m.Status = "deleted"
	case a.ChargesEnabled && a.PayoutsEnabled:
		m.Status = "enabled"
	}
	return m
}

// CreateMerchant opens a Connect custom account able to take card payments
// and receive transfers.
func (g *Gateway) CreateMerchant(ctx context.Context, in gateway.MerchantInput) (*gateway.Merchant, error) {
	params := accountParams(ctx, in)
	params.Type = stripego.String(string(stripego.AccountTypeCustom))
	country := in.Country
	if country == "" {
		country = "US"
	}
	params.Country = stripego.String(country)
	params.Capabilities = &stripego.AccountCapabilitiesParams{
		CardPayments: &stripego.AccountCapabilitiesCardPaymentsParams{Requested: stripego.Bool(true)},
		Transfers:    &stripego.AccountCapabilitiesTransfersParams{Requested: stripego.Bool(true)},
	}
	a, err := g.api.Accounts.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateMerchant, err)
	}
	return toMerchant(a), nil
}

func (g *Gateway) RetrieveMerchant(ctx context.Context, accountID string) (*gateway.Merchant, error) {
	params := &stripego.AccountParams{}
	params.Context = ctx
	a, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrieveMerchant, err)
	}
	return toMerchant(a), nil
}

func (g *Gateway) UpdateMerchant(ctx context.Context, accountID string, in gateway.MerchantInput) (*gateway.Merchant, error) {
	a, err := g.api.Accounts.Update(accountID, accountParams(ctx, in))
	if err != nil {
		return nil, providerErr(gateway.OpUpdateMerchant, err)
	}
	return toMerchant(a), nil
}

func (g *Gateway) DeleteMerchant(ctx context.Context, accountID string) error {
	params := &stripego.AccountParams{}
	params.Context = ctx
	_, err := g.api.Accounts.Del(accountID, params)
	return providerErr(gateway.OpDeleteMerchant, err)
}

var _ gateway.Gateway = (*Gateway)(nil)
