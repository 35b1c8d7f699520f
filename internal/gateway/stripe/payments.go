package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/money"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v76"
)

const (
	metadataCorrelationID = "correlation_id"
	// statement descriptor suffixes are capped at 22 characters.
	maxDescriptorSuffix = 22
)

func intentStatus(pi *stripego.PaymentIntent) string {
	switch pi.Status {
	case stripego.PaymentIntentStatusSucceeded:
		return gateway.StatusProcessed
	case stripego.PaymentIntentStatusCanceled:
		return gateway.StatusCancelled
	case stripego.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return gateway.StatusFailed
		}
		return gateway.StatusPending
	default:
		return gateway.StatusPending
	}
}

func toTransfer(pi *stripego.PaymentIntent) *gateway.Transfer {
	currency := money.Normalize(string(pi.Currency))
	t := &gateway.Transfer{
		ID:            pi.ID,
		Status:        intentStatus(pi),
		Amount:        money.FromMinor(pi.Amount, currency),
		Currency:      currency,
		CorrelationID: pi.Metadata[metadataCorrelationID],
		CreatedAt:     time.Unix(pi.Created, 0).UTC(),
	}
	if t.Status == gateway.StatusFailed && pi.LastPaymentError != nil {
		t.FailureReason = pi.LastPaymentError.Msg
	}
	return t
}

func toPayment(pi *stripego.PaymentIntent) *gateway.Payment {
	currency := money.Normalize(string(pi.Currency))
	return &gateway.Payment{
		ID:           pi.ID,
		Status:       intentStatus(pi),
		Amount:       money.FromMinor(pi.Amount, currency),
		Currency:     currency,
		ClientSecret: pi.ClientSecret,
	}
}

func descriptorSuffix(descriptor string) *string {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil
	}
	if len(descriptor) > maxDescriptorSuffix {
		descriptor = descriptor[:maxDescriptorSuffix]
	}
	return stripego.String(descriptor)
}

// InitiateTransfer confirms an off-session PaymentIntent against the source
// payment method and routes the funds to the destination connected account.
// Fees become the platform's application fee.
func (g *Gateway) InitiateTransfer(ctx context.Context, in gateway.TransferInput) (*gateway.Transfer, error) {
	currency := strings.ToLower(money.Normalize(in.Currency))
	params := &stripego.PaymentIntentParams{
		Amount:                    stripego.Int64(money.ToMinor(in.Amount, currency)),
		Currency:                  stripego.String(currency),
		Customer:                  optional(in.Source.Owner.CustomerID),
		PaymentMethod:             stripego.String(in.Source.FundingID),
		PaymentMethodTypes:        stripego.StringSlice([]string{"card", "us_bank_account"}),
		Confirm:                   stripego.Bool(true),
		OffSession:                stripego.Bool(true),
		Description:               optional(in.Description),
		StatementDescriptorSuffix: descriptorSuffix(in.Descriptor),
		TransferGroup:             optional(in.CorrelationID),
	}
	if dest := in.Destination.Owner.AccountID; dest != "" {
		params.TransferData = &stripego.PaymentIntentTransferDataParams{Destination: stripego.String(dest)}
	}
	if len(in.Fees) > 0 {
		total := decimal.Zero
		for _, fee := range in.Fees {
			total = total.Add(fee.Amount)
		}
		params.ApplicationFeeAmount = stripego.Int64(money.ToMinor(total, currency))
	}
	params.Context = ctx
	addMetadata(params.AddMetadata, in.Metadata)
	if in.CorrelationID != "" {
		params.AddMetadata(metadataCorrelationID, in.CorrelationID)
		params.SetIdempotencyKey(in.CorrelationID)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpInitiateTransfer, err)
	}
	return toTransfer(pi), nil
}

func (g *Gateway) RetrieveTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(transferID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrieveTransfer, err)
	}
	return toTransfer(pi), nil
}

func (g *Gateway) CancelTransfer(ctx context.Context, transferID string) (*gateway.Transfer, error) {
	params := &stripego.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Cancel(transferID, params)
	if err != nil {
		return nil, providerErr(gateway.OpCancelTransfer, err)
	}
	return toTransfer(pi), nil
}

func (g *Gateway) ListCustomerTransfers(ctx context.Context, owner gateway.Owner) ([]gateway.Transfer, error) {
	params := &stripego.PaymentIntentListParams{Customer: stripego.String(owner.CustomerID)}
	params.Context = ctx
	it := g.api.PaymentIntents.List(params)
	var out []gateway.Transfer
	for it.Next() {
		out = append(out, *toTransfer(it.PaymentIntent()))
	}
	if err := it.Err(); err != nil {
		return nil, providerErr(gateway.OpListCustomerTransfers, err)
	}
	return out, nil
}

func (g *Gateway) GetFeeOfTransaction(context.Context, string) (*gateway.FeeBreakdown, error) {
	return nil, apperr.Unsupported(providerName, gateway.OpGetFeeOfTransaction)
}

// InitiatePayment creates a PaymentIntent. Without a funding id it is left
// unconfirmed and the client secret is returned for client-side confirmation.
func (g *Gateway) InitiatePayment(ctx context.Context, in gateway.PaymentInput) (*gateway.Payment, error) {
	currency := strings.ToLower(money.Normalize(in.Currency))
	params := &stripego.PaymentIntentParams{
		Amount:                    stripego.Int64(money.ToMinor(in.Amount, currency)),
		Currency:                  stripego.String(currency),
		Customer:                  optional(in.Customer.CustomerID),
		Description:               optional(in.Description),
		StatementDescriptorSuffix: descriptorSuffix(in.Descriptor),
	}
	if in.FundingID != "" {
		params.PaymentMethod = stripego.String(in.FundingID)
		params.Confirm = stripego.Bool(true)
		params.OffSession = stripego.Bool(true)
	} else {
		params.AutomaticPaymentMethods = &stripego.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripego.Bool(true)}
	}
	if in.Destination != "" {
		params.TransferData = &stripego.PaymentIntentTransferDataParams{Destination: stripego.String(in.Destination)}
	}
	params.Context = ctx
	addMetadata(params.AddMetadata, in.Metadata)
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, providerErr(gateway.OpInitiatePayment, err)
	}
	return toPayment(pi), nil
}

func (g *Gateway) RetrievePayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, providerErr(gateway.OpRetrievePayment, err)
	}
	return toPayment(pi), nil
}

func (g *Gateway) UpdatePayment(ctx context.Context, paymentID string, in gateway.PaymentUpdateInput) (*gateway.Payment, error) {
	params := &stripego.PaymentIntentParams{}
	if in.Amount != nil {
		currency := strings.ToLower(money.Normalize(in.Currency))
		params.Amount = stripego.Int64(money.ToMinor(*in.Amount, currency))
		if currency != "" {
			params.Currency = stripego.String(currency)
		}
	}
	if in.Description != nil {
		params.Description = stripego.String(*in.Description)
	}
	params.Context = ctx
	addMetadata(params.AddMetadata, in.Metadata)

	pi, err := g.api.PaymentIntents.Update(paymentID, params)
	if err != nil {
		return nil, providerErr(gateway.OpUpdatePayment, err)
	}
	return toPayment(pi), nil
}
