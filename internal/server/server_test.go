package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	webhookdomain "github.com/railzwaylabs/paycore/internal/webhook/domain"
	"github.com/railzwaylabs/paycore/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type subscriptions struct {
	subscriptiondomain.Service
	mock.Mock
}

func (m *subscriptions) Create(_ context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	args := m.Called(req)
	sub, _ := args.Get(0).(*subscriptiondomain.Subscription)
	return sub, args.Error(1)
}

func (m *subscriptions) Get(_ context.Context, id string) (*subscriptiondomain.Subscription, error) {
	args := m.Called(id)
	sub, _ := args.Get(0).(*subscriptiondomain.Subscription)
	return sub, args.Error(1)
}

type ledger struct {
	ledgerdomain.Service
	mock.Mock
}

func (m *ledger) InitiateTransfer(_ context.Context, req ledgerdomain.TransferRequest) (*ledgerdomain.Transaction, error) {
	args := m.Called(req)
	txn, _ := args.Get(0).(*ledgerdomain.Transaction)
	return txn, args.Error(1)
}

type webhooks struct {
	webhookdomain.Service
	mock.Mock
}

func (m *webhooks) Ingest(_ context.Context, provider string, payload []byte, _ http.Header) (*webhookdomain.IngestResult, error) {
	args := m.Called(provider, string(payload))
	res, _ := args.Get(0).(*webhookdomain.IngestResult)
	return res, args.Error(1)
}

type fixture struct {
	srv   *Server
	subs  *subscriptions
	led   *ledger
	hooks *webhooks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{subs: &subscriptions{}, led: &ledger{}, hooks: &webhooks{}}
	f.srv = New(Params{
		Config: config.Config{
			AppVersion: "test",
			Database:   config.DatabaseConfig{Driver: "sqlite"},
		},
		Log:           zap.NewNop(),
		DB:            dbtest.Open(t),
		Ledger:        f.led,
		Subscriptions: f.subs,
		Webhooks:      f.hooks,
	})
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCreateSubscriptionPassesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.subs.On("Create", mock.MatchedBy(func(req subscriptiondomain.CreateRequest) bool {
		return req.IdempotencyKey == "key-1" && req.PayerPartyID == "user-1" && req.PlanCostID == "42"
	})).Return(&subscriptiondomain.Subscription{ID: 7}, nil).Once()

	rec := f.do(http.MethodPost, "/api/v1/subscriptions",
		`{"payer_party_id":"user-1","receiver_party_id":"shop-1","plan_cost_id":"42"}`,
		map[string]string{"Idempotency-Key": "key-1"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Data subscriptiondomain.Subscription `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 7, resp.Data.ID)
	f.subs.AssertExpectations(t)
}

func TestErrorsRenderTypedEnvelope(t *testing.T) {
	f := newFixture(t)
	f.subs.On("Get", "99").Return(nil, apperr.NotFound("subscription", "99")).Once()
	f.subs.On("Get", "abc").Return(nil, apperr.Invalid("id", "malformed")).Once()
	f.subs.On("Get", "500").Return(nil, errors.New("connection reset")).Once()

	rec := f.do(http.MethodGet, "/api/v1/subscriptions/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.TextNotFound, decodeError(t, rec).Code)

	rec = f.do(http.MethodGet, "/api/v1/subscriptions/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.TextValidation, decodeError(t, rec).Code)

	rec = f.do(http.MethodGet, "/api/v1/subscriptions/500", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperr.TextInternal, body.Code)
	assert.NotContains(t, body.Message, "connection reset")
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/v1/subscriptions", `{"payer_party_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.TextValidation, decodeError(t, rec).Code)
	f.subs.AssertNotCalled(t, "Create", mock.Anything)
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/v1/subscriptions", `{}`,
		map[string]string{"Idempotency-Key": strings.Repeat("k", maxIdempotencyKeyLen+1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateTransferFallsBackToIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.led.On("InitiateTransfer", mock.MatchedBy(func(req ledgerdomain.TransferRequest) bool {
		return req.CorrelationID == "idem-9" && req.Amount.Equal(decimal.RequireFromString("12.5"))
	})).Return(&ledgerdomain.Transaction{ID: 3, Status: gateway.StatusPending}, nil).Once()

	rec := f.do(http.MethodPost, "/api/v1/transfers",
		`{"source_funding_id":"1","destination_funding_id":"2","amount":"12.5","type":"pay"}`,
		map[string]string{"Idempotency-Key": "idem-9"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	f.led.AssertExpectations(t)
}

func TestProviderValidationErrorIsUnprocessable(t *testing.T) {
	f := newFixture(t)
	f.led.On("InitiateTransfer", mock.Anything).
		Return(nil, apperr.ProviderStatus("dwolla", gateway.OpInitiateTransfer, http.StatusBadRequest, "ValidationError", "bad amount", "req-1")).Once()

	rec := f.do(http.MethodPost, "/api/v1/transfers", `{"correlation_id":"c-1"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperr.TextProviderCall, body.Code)
	assert.Equal(t, "ValidationError", body.Metadata["provider_code"])
}

func TestReceiveWebhook(t *testing.T) {
	f := newFixture(t)
	f.hooks.On("Ingest", "dwolla", `{"id":"evt-1"}`).
		Return(&webhookdomain.IngestResult{EventID: "evt-1", Result: webhookdomain.ResultApplied}, nil).Once()
	f.hooks.On("Ingest", "dwolla", `{"id":"evt-2"}`).Return(nil, gateway.ErrInvalidSignature).Once()

	rec := f.do(http.MethodPost, "/webhooks/dwolla", `{"id":"evt-1"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/webhooks/dwolla", `{"id":"evt-2"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, textInvalidSignature, decodeError(t, rec).Code)
}

func TestRequestIDAndUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/v1/nope", "", map[string]string{headerRequestID: "req-abc"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-abc", rec.Header().Get(headerRequestID))

	rec = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(headerRequestID), 26)
}

func TestReadinessWithoutRedis(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ReadinessStateReady, resp.SystemState)
	assert.Equal(t, "test", resp.Version)
	require.Len(t, resp.Issues, 3)
	assert.Equal(t, ReadinessStateReady, resp.Issues[0].Status)
	assert.Equal(t, ReadinessStateOptional, resp.Issues[1].Status)
	assert.Equal(t, ReadinessStateOptional, resp.Issues[2].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/health", "", nil)
	rec := f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paycore_http_requests_total")
}
