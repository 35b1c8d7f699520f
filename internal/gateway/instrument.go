package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type instrumented struct {
	next    Gateway
	limiter *rate.Limiter
	retry   config.RetryConfig
	timeout time.Duration
}

// Instrument decorates a variant with throttling, per-call timeouts, retries
// for calls that are safe to repeat, metrics and spans.
func Instrument(next Gateway, cfg config.PaymentConfig) Gateway {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	return &instrumented{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
		timeout: cfg.RequestTimeout,
	}
}

// Unwrap exposes the decorated variant.
func (g *instrumented) Unwrap() Gateway { return g.next }

type callKind int

const (
	// once calls are never repeated: they move money or create resources.
	once callKind = iota
	// repeatable calls read or set absolute state.
	repeatable
)

func call[T any](ctx context.Context, g *instrumented, op string, kind callKind, fn func(context.Context) (T, error)) (T, error) {
	provider := g.next.Provider()
	ctx, span := observability.Tracer().Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("payment.provider", provider),
		attribute.String("payment.operation", op),
	))
	defer span.End()

	start := time.Now()
	attempts := 0
	operation := func() (T, error) {
		attempts++
		if attempts > 1 {
			observability.GatewayRetries.WithLabelValues(provider, op).Inc()
		}
		if err := g.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(fmt.Errorf("%s %s: rate limiter: %w", provider, op, err))
		}

		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		out, err := fn(callCtx)
		if err == nil {
			return out, nil
		}
		if kind == repeatable && apperr.IsTransient(err) {
			return out, err
		}
		return out, backoff.Permanent(err)
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(g.backoff()),
		backoff.WithMaxTries(g.retry.MaxAttempts),
	)

	observability.GatewayLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	observability.GatewayCalls.WithLabelValues(provider, op, outcome(err)).Inc()
	span.SetAttributes(attribute.Int("payment.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (g *instrumented) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if g.retry.InitialBackoff > 0 {
		b.InitialInterval = g.retry.InitialBackoff
	}
	if g.retry.MaxBackoff > 0 {
		b.MaxInterval = g.retry.MaxBackoff
	}
	return b
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if apperr.IsUnsupported(err) {
		return "unsupported"
	}
	if apperr.IsAmbiguous(err) {
		return "ambiguous"
	}
	var pe *apperr.ProviderCallError
	if errors.As(err, &pe) && pe.StatusCode >= http.StatusBadRequest && pe.StatusCode < http.StatusInternalServerError {
		return "client_error"
	}
	return "error"
}

func callErr(ctx context.Context, g *instrumented, op string, kind callKind, fn func(context.Context) error) error {
	_, err := call(ctx, g, op, kind, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (g *instrumented) Provider() string        { return g.next.Provider() }
func (g *instrumented) SupportsListing() bool   { return g.next.SupportsListing() }
func (g *instrumented) SupportsRecurring() bool { return g.next.SupportsRecurring() }

func (g *instrumented) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	return call(ctx, g, OpCreateCustomer, once, func(ctx context.Context) (*Customer, error) {
		return g.next.CreateCustomer(ctx, in)
	})
}

func (g *instrumented) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	return call(ctx, g, OpRetrieveCustomer, repeatable, func(ctx context.Context) (*Customer, error) {
		return g.next.RetrieveCustomer(ctx, customerID)
	})
}

func (g *instrumented) UpdateCustomer(ctx context.Context, customerID string, in CustomerInput) (*Customer, error) {
	return call(ctx, g, OpUpdateCustomer, repeatable, func(ctx context.Context) (*Customer, error) {
		return g.next.UpdateCustomer(ctx, customerID, in)
	})
}

func (g *instrumented) DeleteCustomer(ctx context.Context, customerID string) error {
	return callErr(ctx, g, OpDeleteCustomer, repeatable, func(ctx context.Context) error {
		return g.next.DeleteCustomer(ctx, customerID)
	})
}

func (g *instrumented) CreateMerchant(ctx context.Context, in MerchantInput) (*Merchant, error) {
	return call(ctx, g, OpCreateMerchant, once, func(ctx context.Context) (*Merchant, error) {
		return g.next.CreateMerchant(ctx, in)
	})
}

func (g *instrumented) RetrieveMerchant(ctx context.Context, accountID string) (*Merchant, error) {
	return call(ctx, g, OpRetrieveMerchant, repeatable, func(ctx context.Context) (*Merchant, error) {
		return g.next.RetrieveMerchant(ctx, accountID)
	})
}

func (g *instrumented) UpdateMerchant(ctx context.Context, accountID string, in MerchantInput) (*Merchant, error) {
	return call(ctx, g, OpUpdateMerchant, repeatable, func(ctx context.Context) (*Merchant, error) {
		return g.next.UpdateMerchant(ctx, accountID, in)
	})
}

func (g *instrumented) DeleteMerchant(ctx context.Context, accountID string) error {
	return callErr(ctx, g, OpDeleteMerchant, repeatable, func(ctx context.Context) error {
		return g.next.DeleteMerchant(ctx, accountID)
	})
}

func (g *instrumented) CreateFundingSource(ctx context.Context, in FundingSourceLinkInput) (*FundingInstrument, error) {
	return call(ctx, g, OpCreateFundingSource, once, func(ctx context.Context) (*FundingInstrument, error) {
		return g.next.CreateFundingSource(ctx, in)
	})
}

func (g *instrumented) CreateFundingSourceManually(ctx context.Context, in FundingSourceManualInput) (*FundingInstrument, error) {
	return call(ctx, g, OpCreateFundingSourceManually, once, func(ctx context.Context) (*FundingInstrument, error) {
		return g.next.CreateFundingSourceManually(ctx, in)
	})
}

func (g *instrumented) UpdateFundingSource(ctx context.Context, in FundingSourceUpdateInput) (*FundingInstrument, error) {
	return call(ctx, g, OpUpdateFundingSource, repeatable, func(ctx context.Context) (*FundingInstrument, error) {
		return g.next.UpdateFundingSource(ctx, in)
	})
}

func (g *instrumented) RetrieveFundingSource(ctx context.Context, owner Owner, fundingID string) (*FundingInstrument, error) {
	return call(ctx, g, OpRetrieveFundingSource, repeatable, func(ctx context.Context) (*FundingInstrument, error) {
		return g.next.RetrieveFundingSource(ctx, owner, fundingID)
	})
}

func (g *instrumented) ListFundingSources(ctx context.Context, owner Owner) ([]FundingInstrument, error) {
	return call(ctx, g, OpListFundingSources, repeatable, func(ctx context.Context) ([]FundingInstrument, error) {
		return g.next.ListFundingSources(ctx, owner)
	})
}

func (g *instrumented) GetFundingSourceBalance(ctx context.Context, owner Owner, fundingID string) (*Balance, error) {
	return call(ctx, g, OpGetFundingSourceBalance, repeatable, func(ctx context.Context) (*Balance, error) {
		return g.next.GetFundingSourceBalance(ctx, owner, fundingID)
	})
}

func (g *instrumented) VerifyMicrodeposit(ctx context.Context, in MicrodepositInput) error {
	return callErr(ctx, g, OpVerifyMicrodeposit, once, func(ctx context.Context) error {
		return g.next.VerifyMicrodeposit(ctx, in)
	})
}

func (g *instrumented) InitiateTransfer(ctx context.Context, in TransferInput) (*Transfer, error) {
	return call(ctx, g, OpInitiateTransfer, once, func(ctx context.Context) (*Transfer, error) {
		return g.next.InitiateTransfer(ctx, in)
	})
}

func (g *instrumented) RetrieveTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	return call(ctx, g, OpRetrieveTransfer, repeatable, func(ctx context.Context) (*Transfer, error) {
		return g.next.RetrieveTransfer(ctx, transferID)
	})
}

func (g *instrumented) CancelTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	return call(ctx, g, OpCancelTransfer, repeatable, func(ctx context.Context) (*Transfer, error) {
		return g.next.CancelTransfer(ctx, transferID)
	})
}

func (g *instrumented) ListCustomerTransfers(ctx context.Context, owner Owner) ([]Transfer, error) {
	return call(ctx, g, OpListCustomerTransfers, repeatable, func(ctx context.Context) ([]Transfer, error) {
		return g.next.ListCustomerTransfers(ctx, owner)
	})
}

func (g *instrumented) GetFeeOfTransaction(ctx context.Context, transferID string) (*FeeBreakdown, error) {
	return call(ctx, g, OpGetFeeOfTransaction, repeatable, func(ctx context.Context) (*FeeBreakdown, error) {
		return g.next.GetFeeOfTransaction(ctx, transferID)
	})
}

func (g *instrumented) InitiatePayment(ctx context.Context, in PaymentInput) (*Payment, error) {
	return call(ctx, g, OpInitiatePayment, once, func(ctx context.Context) (*Payment, error) {
		return g.next.InitiatePayment(ctx, in)
	})
}

func (g *instrumented) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	return call(ctx, g, OpRetrievePayment, repeatable, func(ctx context.Context) (*Payment, error) {
		return g.next.RetrievePayment(ctx, paymentID)
	})
}

func (g *instrumented) UpdatePayment(ctx context.Context, paymentID string, in PaymentUpdateInput) (*Payment, error) {
	return call(ctx, g, OpUpdatePayment, repeatable, func(ctx context.Context) (*Payment, error) {
		return g.next.UpdatePayment(ctx, paymentID, in)
	})
}

func (g *instrumented) CreateWebhook(ctx context.Context, in WebhookInput) (*Webhook, error) {
	return call(ctx, g, OpCreateWebhook, once, func(ctx context.Context) (*Webhook, error) {
		return g.next.CreateWebhook(ctx, in)
	})
}

func (g *instrumented) RetrieveWebhook(ctx context.Context, webhookID string) (*Webhook, error) {
	return call(ctx, g, OpRetrieveWebhook, repeatable, func(ctx context.Context) (*Webhook, error) {
		return g.next.RetrieveWebhook(ctx, webhookID)
	})
}

func (g *instrumented) UpdateWebhook(ctx context.Context, webhookID string, in WebhookUpdateInput) (*Webhook, error) {
	return call(ctx, g, OpUpdateWebhook, repeatable, func(ctx context.Context) (*Webhook, error) {
		return g.next.UpdateWebhook(ctx, webhookID, in)
	})
}

func (g *instrumented) DeleteWebhook(ctx context.Context, webhookID string) error {
	return callErr(ctx, g, OpDeleteWebhook, repeatable, func(ctx context.Context) error {
		return g.next.DeleteWebhook(ctx, webhookID)
	})
}

func (g *instrumented) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	return call(ctx, g, OpListWebhooks, repeatable, func(ctx context.Context) ([]Webhook, error) {
		return g.next.ListWebhooks(ctx)
	})
}

func (g *instrumented) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	return call(ctx, g, OpCreateProduct, once, func(ctx context.Context) (*Product, error) {
		return g.next.CreateProduct(ctx, in)
	})
}

func (g *instrumented) UpdateProduct(ctx context.Context, productID string, in ProductInput) (*Product, error) {
	return call(ctx, g, OpUpdateProduct, once, func(ctx context.Context) (*Product, error) {
		return g.next.UpdateProduct(ctx, productID, in)
	})
}

func (g *instrumented) CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error) {
	return call(ctx, g, OpCreateSubscription, once, func(ctx context.Context) (*Subscription, error) {
		return g.next.CreateSubscription(ctx, in)
	})
}

func (g *instrumented) CancelSubscription(ctx context.Context, subscriptionID, accountID string) error {
	return callErr(ctx, g, OpCancelSubscription, repeatable, func(ctx context.Context) error {
		return g.next.CancelSubscription(ctx, subscriptionID, accountID)
	})
}

func (g *instrumented) CreateSubscriptionSchedule(ctx context.Context, in ScheduleInput) (*SubscriptionSchedule, error) {
	return call(ctx, g, OpCreateSubscriptionSchedule, once, func(ctx context.Context) (*SubscriptionSchedule, error) {
		return g.next.CreateSubscriptionSchedule(ctx, in)
	})
}

func (g *instrumented) CancelSubscriptionSchedule(ctx context.Context, scheduleID, accountID string) error {
	return callErr(ctx, g, OpCancelSubscriptionSchedule, repeatable, func(ctx context.Context) error {
		return g.next.CancelSubscriptionSchedule(ctx, scheduleID, accountID)
	})
}
