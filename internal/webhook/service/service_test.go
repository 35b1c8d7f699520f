package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/dwolla"
	"github.com/railzwaylabs/paycore/internal/gateway/gatewaymock"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	ledgerrepo "github.com/railzwaylabs/paycore/internal/ledger/repository"
	ledgersvc "github.com/railzwaylabs/paycore/internal/ledger/service"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/internal/security/vault"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	"github.com/railzwaylabs/paycore/internal/webhook/domain"
	"github.com/railzwaylabs/paycore/internal/webhook/repository"
	"github.com/railzwaylabs/paycore/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec-0123456789abcdef"

// settler records installment settlements triggered by deliveries.
type settler struct {
	subscriptiondomain.Service
	mock.Mock
}

func (s *settler) SettleInstallment(ctx context.Context, installmentID string) (*installmentdomain.Installment, error) {
	args := s.Called(ctx, installmentID)
	return nil, args.Error(1)
}

type fixture struct {
	svc     domain.Service
	gw      *gatewaymock.Gateway
	settler *settler
	vault   vault.Provider
	db      *gorm.DB
	clock   *clock.Fixed
	node    *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&ledgerdomain.Transaction{},
		&domain.Subscription{},
		&domain.Event{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	v, err := vault.NewFactory(vault.Config{AESKey: "test-key"})
	require.NoError(t, err)

	gw := gatewaymock.New(gateway.ProviderDwolla)
	set, err := gateway.NewStaticSet(map[string]gateway.Gateway{gateway.ProviderDwolla: gw}, gateway.ProviderDwolla, "", "")
	require.NoError(t, err)
	ledger := ledgersvc.New(ledgersvc.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: ledgerrepo.Provide(), Gateways: set,
		Locker: locker.NewMemoryLocker(), Clock: clk,
		Config: config.Config{Payment: config.PaymentConfig{Provider: gateway.ProviderDwolla}},
	})
	st := &settler{}

	return &fixture{
		svc: New(Params{
			DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(),
			Gateways: set, Parsers: gateway.NewEventParsers(dwolla.NewEventParser()),
			Vault: v, Ledger: ledger, Subscriptions: st, Clock: clk,
		}),
		gw:      gw,
		settler: st,
		vault:   v,
		db:      db,
		clock:   clk,
		node:    node,
	}
}

func (f *fixture) register(t *testing.T) *domain.Subscription {
	t.Helper()
	f.gw.On("CreateWebhook", mock.Anything, mock.Anything).Return(&gateway.Webhook{ID: "wh-1"}, nil).Once()
	item, err := f.svc.CreateSubscription(context.Background(), domain.CreateRequest{
		URL: "https://hooks.example.com/dwolla", Secret: testSecret,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) addTransaction(t *testing.T, external string, installmentID snowflake.ID) *ledgerdomain.Transaction {
	t.Helper()
	now := f.clock.Now(context.Background())
	txn := &ledgerdomain.Transaction{
		ID: f.node.Generate(), CorrelationID: "c-" + external, Provider: gateway.ProviderDwolla,
		ExternalTransferID: external, Amount: decimal.NewFromInt(50), Currency: "USD",
		Status: gateway.StatusPending, Type: ledgerdomain.TypeInstallment,
		InstallmentID: installmentID, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(txn).Error)
	return txn
}

func signed(payload []byte, secret string) http.Header {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	headers := http.Header{}
	headers.Set("X-Request-Signature-SHA-256", hex.EncodeToString(mac.Sum(nil)))
	headers.Set("Content-Type", "application/json")
	return headers
}

func TestCreateSubscriptionSealsGeneratedSecret(t *testing.T) {
	f := newFixture(t)
	var sent string
	f.gw.On("CreateWebhook", mock.Anything, mock.MatchedBy(func(in gateway.WebhookInput) bool {
		return in.URL == "https://hooks.example.com/dwolla"
	})).Run(func(args mock.Arguments) {
		sent = args.Get(1).(gateway.WebhookInput).Secret
	}).Return(&gateway.Webhook{ID: "wh-1"}, nil).Once()

	item, err := f.svc.CreateSubscription(context.Background(), domain.CreateRequest{URL: "https://hooks.example.com/dwolla"})
	require.NoError(t, err)
	assert.Equal(t, "wh-1", item.ExternalWebhookID)
	assert.Equal(t, gateway.ProviderDwolla, item.Provider)
	assert.Len(t, sent, 2*secretBytes)
	assert.NotContains(t, item.SealedSecret, sent)

	opened, err := vault.OpenString(f.vault, item.SealedSecret)
	require.NoError(t, err)
	assert.Equal(t, sent, opened)
}

func TestCreateSubscriptionValidatesURL(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSubscription(context.Background(), domain.CreateRequest{URL: "not a url"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	f.gw.AssertNotCalled(t, "CreateWebhook", mock.Anything, mock.Anything)
}

func TestIngestAppliesTransferStatusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)
	installmentID := f.node.Generate()
	txn := f.addTransaction(t, "tr-1", installmentID)
	f.settler.On("SettleInstallment", mock.Anything, installmentID.String()).Return(nil, nil).Once()

	payload := []byte(`{"id":"evt-1","resourceId":"tr-1","topic":"customer_bank_transfer_completed","timestamp":"2024-03-01T12:00:00Z"}`)
	res, err := f.svc.Ingest(ctx, "dwolla", payload, signed(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultApplied, res.Result)
	assert.Equal(t, txn.ID.String(), res.TransactionID)
	assert.Equal(t, installmentID.String(), res.InstallmentID)

	var stored ledgerdomain.Transaction
	require.NoError(t, f.db.First(&stored, "id = ?", txn.ID).Error)
	assert.Equal(t, gateway.StatusProcessed, stored.Status)

	again, err := f.svc.Ingest(ctx, "dwolla", payload, signed(payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultDuplicate, again.Result)
	f.settler.AssertNumberOfCalls(t, "SettleInstallment", 1)

	events, err := f.svc.ListEvents(ctx, "dwolla", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, txn.ID, events[0].TransactionID)

	body, err := f.svc.EventPayload(ctx, events[0].ID.String())
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(body))
}

func TestIngestRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	payload := []byte(`{"id":"evt-1","resourceId":"tr-1","topic":"customer_bank_transfer_completed"}`)

	_, err := f.svc.Ingest(context.Background(), "dwolla", payload, signed(payload, "other-secret"))
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

	var count int64
	require.NoError(t, f.db.Model(&domain.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestUnmatchedAndIgnoredEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)

	unknown := []byte(`{"id":"evt-2","resourceId":"tr-404","topic":"customer_bank_transfer_failed"}`)
	res, err := f.svc.Ingest(ctx, "dwolla", unknown, signed(unknown, testSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultUnmatched, res.Result)

	other := []byte(`{"id":"evt-3","resourceId":"cus-1","topic":"customer_created"}`)
	res, err = f.svc.Ingest(ctx, "dwolla", other, signed(other, testSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultIgnored, res.Result)
	f.settler.AssertNotCalled(t, "SettleInstallment", mock.Anything, mock.Anything)
}

func TestIngestUnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ingest(context.Background(), "helcim", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPauseAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.register(t)

	f.gw.On("UpdateWebhook", mock.Anything, "wh-1", gateway.WebhookUpdateInput{Paused: true}).
		Return(&gateway.Webhook{ID: "wh-1", Paused: true}, nil).Once()
	paused, err := f.svc.SetPaused(ctx, item.ID.String(), true)
	require.NoError(t, err)
	assert.True(t, paused.Paused)

	_, err = f.svc.SetPaused(ctx, item.ID.String(), true)
	require.NoError(t, err)
	f.gw.AssertNumberOfCalls(t, "UpdateWebhook", 1)

	gone := apperr.ProviderStatus(gateway.ProviderDwolla, gateway.OpDeleteWebhook, http.StatusNotFound, "NotFound", "not found", "")
	f.gw.On("DeleteWebhook", mock.Anything, "wh-1").Return(gone).Once()
	require.NoError(t, f.svc.DeleteSubscription(ctx, item.ID.String()))

	list, err := f.svc.ListSubscriptions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.svc.DeleteSubscription(ctx, item.ID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMaskPayload(t *testing.T) {
	raw := []byte(`{"id":"evt","data":{"object":{"card":{"last4":"4242"},"items":[{"account_number":"123"}]}}}`)
	assert.JSONEq(t,
		`{"id":"evt","data":{"object":{"card":"***","items":[{"account_number":"***"}]}}}`,
		string(maskPayload(raw)),
	)
	assert.Equal(t, []byte("not json"), maskPayload([]byte("not json")))
}
