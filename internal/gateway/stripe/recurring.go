package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/money"
	stripego "github.com/stripe/stripe-go/v76"
)

func toWebhook(we *stripego.WebhookEndpoint) *gateway.Webhook {
	return &gateway.Webhook{
		ID:        we.ID,
		URL:       we.URL,
		Paused:    strings.EqualFold(we.Status, "disabled"),
		Secret:    we.Secret,
		CreatedAt: time.Unix(we.Created, 0).UTC(),
	}
}

// CreateWebhook registers an endpoint. Stripe generates the signing secret,
// so any secret on the input is ignored.
func (g *Gateway) CreateWebhook(ctx context.Context, in gateway.WebhookInput) (*gateway.Webhook, error) {
	events := in.Events
	if len(events) == 0 {
		events = []string{"payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled", "payment_intent.processing"}
	}
	params := &stripego.WebhookEndpointParams{
		URL:           stripego.String(in.URL),
		EnabledEvents: stripego.StringSlice(events),
	}
	params.Context = ctx
	we, err := g.api.WebhookEndpoints.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateWebhook, err)
	}
	return toWebhook(we), nil
}

func (g *Gateway) RetrieveWebhook(ctx context.Context, webhookID string) (*gateway.Webhook, error) {
	params := &stripego.WebhookEndpointParams{}
	params.Context = ctx
	we, err := g.api.WebhookEndpoints.Get(webhookID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrieveWebhook, err)
	}
	return toWebhook(we), nil
}

func (g *Gateway) UpdateWebhook(ctx context.Context, webhookID string, in gateway.WebhookUpdateInput) (*gateway.Webhook, error) {
	params := &stripego.WebhookEndpointParams{Disabled: stripego.Bool(in.Paused)}
	params.Context = ctx
	we, err := g.api.WebhookEndpoints.Update(webhookID, params)
	if err != nil {
		return nil, providerErr(gateway.OpUpdateWebhook, err)
	}
	return toWebhook(we), nil
}

func (g *Gateway) DeleteWebhook(ctx context.Context, webhookID string) error {
	params := &stripego.WebhookEndpointParams{}
	params.Context = ctx
	_, err := g.api.WebhookEndpoints.Del(webhookID, params)
	return providerErr(gateway.OpDeleteWebhook, err)
}

func (g *Gateway) ListWebhooks(ctx context.Context) ([]gateway.Webhook, error) {
	params := &stripego.WebhookEndpointListParams{}
	params.Context = ctx
	it := g.api.WebhookEndpoints.List(params)
	var out []gateway.Webhook
	for it.Next() {
		out = append(out, *toWebhook(it.WebhookEndpoint()))
	}
	if err := it.Err(); err != nil {
		return nil, providerErr(gateway.OpListWebhooks, err)
	}
	return out, nil
}

func recurringInterval(in gateway.ProductInput) (string, int64, error) {
	interval := strings.ToLower(strings.TrimSpace(in.Interval))
	switch interval {
	case "day", "week", "month", "year":
	default:
		return "", 0, apperr.Invalid("interval", "must be one of day, week, month, year")
	}
	count := in.IntervalCount
	if count < 1 {
		count = 1
	}
	return interval, count, nil
}

// CreateProduct creates a product with a recurring default price.
func (g *Gateway) CreateProduct(ctx context.Context, in gateway.ProductInput) (*gateway.Product, error) {
	interval, count, err := recurringInterval(in)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(money.Normalize(in.Currency))
	params := &stripego.ProductParams{
		Name: stripego.String(in.Name),
		DefaultPriceData: &stripego.ProductDefaultPriceDataParams{
			Currency:   stripego.String(currency),
			UnitAmount: stripego.Int64(money.ToMinor(in.Price, currency)),
			Recurring: &stripego.ProductDefaultPriceDataRecurringParams{
				Interval:      stripego.String(interval),
				IntervalCount: stripego.Int64(count),
			},
		},
	}
	params.Context = ctx
	if in.AccountID != "" {
		params.AddMetadata("account_id", in.AccountID)
	}
	p, err := g.api.Products.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateProduct, err)
	}
	out := &gateway.Product{ID: p.ID}
	if p.DefaultPrice != nil {
		out.PriceID = p.DefaultPrice.ID
	}
	return out, nil
}

// UpdateProduct renames the product and, because prices are immutable,
// creates a new recurring price and makes it the default.
func (g *Gateway) UpdateProduct(ctx context.Context, productID string, in gateway.ProductInput) (*gateway.Product, error) {
	interval, count, err := recurringInterval(in)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(money.Normalize(in.Currency))
	priceParams := &stripego.PriceParams{
		Product:    stripego.String(productID),
		Currency:   stripego.String(currency),
		UnitAmount: stripego.Int64(money.ToMinor(in.Price, currency)),
		Recurring: &stripego.PriceRecurringParams{
			Interval:      stripego.String(interval),
			IntervalCount: stripego.Int64(count),
		},
	}
	priceParams.Context = ctx
	price, err := g.api.Prices.New(priceParams)
	if err != nil {
		return nil, providerErr(gateway.OpUpdateProduct, err)
	}

	params := &stripego.ProductParams{
		Name:         optional(in.Name),
		DefaultPrice: stripego.String(price.ID),
	}
	params.Context = ctx
	p, err := g.api.Products.Update(productID, params)
	if err != nil {
		return nil, providerErr(gateway.OpUpdateProduct, err)
	}
	return &gateway.Product{ID: p.ID, PriceID: price.ID}, nil
}

func feePercent(in gateway.SubscriptionInput) *float64 {
	if in.ApplicationFeePercent == nil || in.AccountID == "" {
		return nil
	}
	return stripego.Float64(in.ApplicationFeePercent.InexactFloat64())
}

func (g *Gateway) CreateSubscription(ctx context.Context, in gateway.SubscriptionInput) (*gateway.Subscription, error) {
	params := &stripego.SubscriptionParams{
		Customer:              stripego.String(in.CustomerID),
		Items:                 []*stripego.SubscriptionItemsParams{{Price: stripego.String(in.PriceID)}},
		DefaultPaymentMethod:  optional(in.PaymentMethodID),
		Description:           optional(in.Description),
		ApplicationFeePercent: feePercent(in),
	}
	if in.AccountID != "" {
		params.TransferData = &stripego.SubscriptionTransferDataParams{Destination: stripego.String(in.AccountID)}
	}
	if in.PaymentMethodID == "" {
		params.PaymentBehavior = stripego.String("default_incomplete")
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateSubscription, err)
	}
	out := &gateway.Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID, _ string) error {
	params := &stripego.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := g.api.Subscriptions.Cancel(subscriptionID, params)
	return providerErr(gateway.OpCancelSubscription, err)
}

// CreateSubscriptionSchedule creates a single-phase schedule that cancels
// after Iterations billing cycles.
func (g *Gateway) CreateSubscriptionSchedule(ctx context.Context, in gateway.ScheduleInput) (*gateway.SubscriptionSchedule, error) {
	phase := &stripego.SubscriptionSchedulePhaseParams{
		Items:                 []*stripego.SubscriptionSchedulePhaseItemParams{{Price: stripego.String(in.PriceID)}},
		DefaultPaymentMethod:  optional(in.PaymentMethodID),
		ApplicationFeePercent: feePercent(in.SubscriptionInput),
	}
	if in.Iterations > 0 {
		phase.Iterations = stripego.Int64(in.Iterations)
	}
	if in.AccountID != "" {
		phase.TransferData = &stripego.SubscriptionTransferDataParams{Destination: stripego.String(in.AccountID)}
	}

	params := &stripego.SubscriptionScheduleParams{
		Customer:    stripego.String(in.CustomerID),
		EndBehavior: stripego.String(string(stripego.SubscriptionScheduleEndBehaviorCancel)),
		Phases:      []*stripego.SubscriptionSchedulePhaseParams{phase},
	}
	if in.StartAt.IsZero() {
		params.StartDateNow = stripego.Bool(true)
	} else {
		params.StartDate = stripego.Int64(in.StartAt.Unix())
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	sched, err := g.api.SubscriptionSchedules.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpCreateSubscriptionSchedule, err)
	}
	out := &gateway.SubscriptionSchedule{ID: sched.ID, Status: string(sched.Status)}
	if sched.Subscription != nil {
		out.SubscriptionID = sched.Subscription.ID
	}
	return out, nil
}

func (g *Gateway) CancelSubscriptionSchedule(ctx context.Context, scheduleID, _ string) error {
	params := &stripego.SubscriptionScheduleCancelParams{}
	params.Context = ctx
	_, err := g.api.SubscriptionSchedules.Cancel(scheduleID, params)
	return providerErr(gateway.OpCancelSubscriptionSchedule, err)
}
