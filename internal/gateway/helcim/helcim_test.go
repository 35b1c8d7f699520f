package helcim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHelcim struct {
	body    map[string]any
	headers http.Header
}

func newFakeHelcim(t *testing.T) (*fakeHelcim, *Gateway) {
	t.Helper()
	f := &fakeHelcim{}
	mux := http.NewServeMux()
	mux.HandleFunc("/customers/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("api-token"))
		switch {
		case r.Method == http.MethodPost:
			f.body = map[string]any{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.body))
			fmt.Fprint(w, `{"id":77,"customerCode":"CST1001","contactName":"Ada Lovelace","billingAddress":{"email":"ada@example.com"}}`)
		case r.URL.Path == "/customers/" && r.URL.Query().Get("customerCode") == "CST1001":
			fmt.Fprint(w, `[{"id":77,"customerCode":"CST1001","contactName":"Ada Lovelace"}]`)
		case r.URL.Path == "/customers/":
			fmt.Fprint(w, `[]`)
		case r.URL.Path == "/customers/77/cards":
			fmt.Fprint(w, `[{"id":5,"cardToken":"ctok_1","cardF6L4":"4242424242","cardExpiry":"1230","isDefault":true}]`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/payment/purchase", func(w http.ResponseWriter, r *http.Request) {
		f.headers = r.Header.Clone()
		f.body = map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.body))
		if f.body["customerCode"] == "DECLINE" {
			fmt.Fprint(w, `{"transactionId":9002,"status":"DECLINED","type":"purchase","amount":10,"currency":"CAD"}`)
			return
		}
		fmt.Fprint(w, `{"transactionId":9001,"status":"APPROVED","type":"purchase","amount":25.5,"currency":"CAD","dateCreated":"2024-01-02 03:04:05","invoiceNumber":"corr-1"}`)
	})
	mux.HandleFunc("/card-transactions/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":{"cardTransactionId":"not found"}}`)
	})
	mux.HandleFunc("/card-transactions/500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"errors":"temporarily unavailable"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gw, err := NewFactory().New(config.PaymentConfig{
		Helcim: config.HelcimConfig{APIToken: "tok", BaseURL: srv.URL, ClientIP: "10.0.0.1"},
	})
	require.NoError(t, err)
	return f, gw.(*Gateway)
}

func TestCreateCustomerUsesCustomerCode(t *testing.T) {
	f, gw := newFakeHelcim(t)
	cus, err := gw.CreateCustomer(context.Background(), gateway.CustomerInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "CST1001", cus.ID)
	assert.Equal(t, "ada@example.com", cus.Email)
	assert.Equal(t, "Ada Lovelace", f.body["contactName"])
}

func TestRetrieveUnknownCustomerIsProviderNotFound(t *testing.T) {
	_, gw := newFakeHelcim(t)
	_, err := gw.RetrieveCustomer(context.Background(), "NOPE")
	assert.True(t, apperr.IsProviderNotFound(err))
}

func TestCreateFundingSourceConfirmsCardToken(t *testing.T) {
	_, gw := newFakeHelcim(t)
	owner := gateway.Owner{CustomerID: "CST1001"}

	fi, err := gw.CreateFundingSource(context.Background(), gateway.FundingSourceLinkInput{Owner: owner, Token: "ctok_1"})
	require.NoError(t, err)
	assert.Equal(t, "ctok_1", fi.ID)
	assert.Equal(t, "4242", fi.Last4)
	assert.True(t, fi.Verified)

	_, err = gw.CreateFundingSource(context.Background(), gateway.FundingSourceLinkInput{Owner: owner, Token: "ctok_x"})
	assert.True(t, apperr.IsProviderNotFound(err))
}

func TestInitiateTransferPurchases(t *testing.T) {
	f, gw := newFakeHelcim(t)
	tr, err := gw.InitiateTransfer(context.Background(), gateway.TransferInput{
		Source:        gateway.FundingParty{Owner: gateway.Owner{CustomerID: "CST1001"}, FundingID: "ctok_1"},
		Amount:        decimal.RequireFromString("25.5"),
		CorrelationID: "installment:0123456789012345678:0",
	})
	require.NoError(t, err)

	assert.Equal(t, "9001", tr.ID)
	assert.Equal(t, gateway.StatusProcessed, tr.Status)
	assert.True(t, decimal.RequireFromString("25.5").Equal(tr.Amount))
	assert.Equal(t, 2024, tr.CreatedAt.Year())

	assert.Equal(t, "10.0.0.1", f.body["ipAddress"])
	assert.Equal(t, "CAD", f.body["currency"])
	assert.Equal(t, 25.5, f.body["amount"])
	assert.Equal(t, "ctok_1", f.body["cardData"].(map[string]any)["cardToken"])
	assert.Len(t, f.headers.Get("idempotency-key"), idempotencyKeyLen)
}

func TestDeclinedPurchaseIsFailed(t *testing.T) {
	_, gw := newFakeHelcim(t)
	tr, err := gw.InitiateTransfer(context.Background(), gateway.TransferInput{
		Source: gateway.FundingParty{Owner: gateway.Owner{CustomerID: "DECLINE"}, FundingID: "ctok_1"},
		Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusFailed, tr.Status)
}

func TestErrorBodies(t *testing.T) {
	_, gw := newFakeHelcim(t)

	_, err := gw.RetrieveTransfer(context.Background(), "404")
	var pe *apperr.ProviderCallError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "cardTransactionId: not found", pe.Message)
	assert.False(t, apperr.IsTransient(err))

	_, err = gw.RetrieveTransfer(context.Background(), "500")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "temporarily unavailable", pe.Message)
	assert.True(t, apperr.IsRetryable(err))
}

func TestIdempotencyKeyLength(t *testing.T) {
	assert.Len(t, idempotencyKey(""), idempotencyKeyLen)
	assert.Equal(t, "short", idempotencyKey("short"))
	long := idempotencyKey("installment:0123456789012345678:3")
	assert.Len(t, long, idempotencyKeyLen)
	assert.NotEqual(t, long, idempotencyKey("installment:0123456789012345678:4"))
	assert.Equal(t, long, idempotencyKey("installment:0123456789012345678:3"))
}

func TestUnsupportedOperations(t *testing.T) {
	_, gw := newFakeHelcim(t)
	_, err := gw.CreateMerchant(context.Background(), gateway.MerchantInput{})
	assert.True(t, apperr.IsUnsupported(err))
	_, err = gw.CreateWebhook(context.Background(), gateway.WebhookInput{})
	assert.True(t, apperr.IsUnsupported(err))
	assert.False(t, gw.SupportsRecurring())
}
