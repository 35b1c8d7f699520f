package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	identityrepo "github.com/railzwaylabs/paycore/internal/billingidentity/repository"
	identitysvc "github.com/railzwaylabs/paycore/internal/billingidentity/service"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/fee/domain"
	"github.com/railzwaylabs/paycore/internal/fee/repository"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	fundingrepo "github.com/railzwaylabs/paycore/internal/fundingsource/repository"
	fundingsvc "github.com/railzwaylabs/paycore/internal/fundingsource/service"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/gatewaymock"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	ledgerrepo "github.com/railzwaylabs/paycore/internal/ledger/repository"
	ledgersvc "github.com/railzwaylabs/paycore/internal/ledger/service"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	gw    *gatewaymock.Gateway
	db    *gorm.DB
	clock *clock.Fixed
	node  *snowflake.Node
	payer *identitydomain.BillingIdentity
	txn   *ledgerdomain.Transaction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&identitydomain.BillingIdentity{},
		&fundingdomain.FundingSource{},
		&ledgerdomain.Transaction{},
		&ledgerdomain.TransferAttempt{},
		&ledgerdomain.PaymentDescriptor{},
		&domain.FeeLog{},
		&domain.FeeProfile{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{Payment: config.PaymentConfig{Provider: gateway.ProviderDwolla}}

	gw := gatewaymock.New(gateway.ProviderDwolla)
	set, err := gateway.NewStaticSet(map[string]gateway.Gateway{gateway.ProviderDwolla: gw}, gateway.ProviderDwolla, "", "")
	require.NoError(t, err)

	identities := identitysvc.New(identitysvc.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: identityrepo.Provide(),
		Gateways: set, Config: cfg, Clock: clk,
	})
	sources := fundingsvc.New(fundingsvc.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: fundingrepo.Provide(),
		Identities: identities, Gateways: set, Clock: clk,
	})
	ledger := ledgersvc.New(ledgersvc.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: ledgerrepo.Provide(),
		Identities: identities, FundingSources: sources, Gateways: set,
		Locker: locker.NewMemoryLocker(), Clock: clk, Config: cfg,
	})

	f := &fixture{
		svc: New(Params{
			DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(),
			Ledger: ledger, Identities: identities, Gateways: set, Clock: clk,
		}),
		gw:    gw,
		db:    db,
		clock: clk,
		node:  node,
	}

	now := clk.Now(context.Background())
	f.payer = &identitydomain.BillingIdentity{
		ID: node.Generate(), PartyID: "shop-1", PartyType: identitydomain.PartyBusiness,
		Provider: gateway.ProviderDwolla, Role: identitydomain.RoleMerchant,
		ExternalCustomerID: "cus-9", ExternalAccountID: "cus-9", IsDefault: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(f.payer).Error)
	f.txn = f.addTransaction(t, "tr-1", gateway.StatusProcessed)
	return f
}

func (f *fixture) addTransaction(t *testing.T, external, status string) *ledgerdomain.Transaction {
	t.Helper()
	now := f.clock.Now(context.Background())
	txn := &ledgerdomain.Transaction{
		ID: f.node.Generate(), CorrelationID: "c-" + external, Provider: gateway.ProviderDwolla,
		ExternalTransferID: external, Amount: decimal.NewFromInt(100), Currency: "USD",
		Status: status, Type: ledgerdomain.TypeInstallment, Descriptor: ledgerdomain.DefaultDescriptor,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(txn).Error)
	return txn
}

func feeLine(link, chargedTo, status string) gateway.FeeLine {
	return gateway.FeeLine{
		Link:         link,
		ChargedTo:    chargedTo,
		TransferLink: "https://api.example.com/transfers/tr-1",
		Status:       status,
		Amount:       decimal.RequireFromString("0.25"),
		Currency:     "usd",
	}
}

func TestSyncFeesCreatesThenUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-1").Return(&gateway.FeeBreakdown{
		Total: 2,
		Lines: []gateway.FeeLine{feeLine("fee-1", "cus-9", gateway.StatusPending), feeLine("fee-2", "cus-unknown", gateway.StatusPending)},
	}, nil).Once()

	res, err := f.svc.SyncFeesForTransfer(ctx, f.txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Updated)

	logs, err := f.svc.ListLogs(ctx, f.txn.ID.String())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, f.payer.ID, logs[0].IdentityID)
	assert.Equal(t, snowflake.ID(0), logs[1].IdentityID)
	assert.Equal(t, "USD", logs[0].Currency)
	assert.Equal(t, f.txn.ID, logs[0].TransactionID)

	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-1").Return(&gateway.FeeBreakdown{
		Total: 1,
		Lines: []gateway.FeeLine{feeLine("fee-1", "cus-9", gateway.StatusProcessed)},
	}, nil).Once()

	res, err = f.svc.SyncFeesForTransfer(ctx, f.txn.ID.String())
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, res.Updated)

	logs, err = f.svc.ListLogs(ctx, f.txn.ID.String())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, gateway.StatusProcessed, logs[0].Status)
	assert.Equal(t, gateway.StatusPending, logs[1].Status)
}

func TestSyncFeesCountsUnlinkedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-1").Return(&gateway.FeeBreakdown{
		Total: 2,
		Lines: []gateway.FeeLine{feeLine("", "cus-9", gateway.StatusPending), feeLine("fee-1", "cus-9", gateway.StatusPending)},
	}, nil).Once()

	res, err := f.svc.SyncFeesForTransfer(ctx, f.txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)

	logs, err := f.svc.ListLogs(ctx, f.txn.ID.String())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "fee-1", logs[0].ExternalLink)
}

func TestSyncFeesWithNoFees(t *testing.T) {
	f := newFixture(t)
	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-1").Return(&gateway.FeeBreakdown{}, nil).Once()

	res, err := f.svc.SyncFeesForTransfer(context.Background(), f.txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncResult{}, *res)

	_, err = f.svc.SyncFeesForTransfer(context.Background(), "42")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSyncRecentSkipsUnsupportedProcessors(t *testing.T) {
	f := newFixture(t)
	f.addTransaction(t, "tr-2", gateway.StatusProcessed)
	f.addTransaction(t, "tr-3", gateway.StatusPending)
	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-1").Return(&gateway.FeeBreakdown{
		Total: 1, Lines: []gateway.FeeLine{feeLine("fee-1", "cus-9", gateway.StatusProcessed)},
	}, nil).Once()
	f.gw.On("GetFeeOfTransaction", mock.Anything, "tr-2").Return(nil, apperr.Unsupported(gateway.ProviderDwolla, gateway.OpGetFeeOfTransaction)).Once()

	res, err := f.svc.SyncRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Nil(t, res.Logs)
	f.gw.AssertNotCalled(t, "GetFeeOfTransaction", mock.Anything, "tr-3")
}

func TestFeesForPicksLatestEnabledProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProfile(ctx, domain.ProfileRequest{Service: "billing", FeeType: "setup", Amount: decimal.RequireFromString("1.00"), Enabled: true})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	latest, err := f.svc.CreateProfile(ctx, domain.ProfileRequest{Service: "billing", FeeType: "Setup", Amount: decimal.RequireFromString("2.50"), Enabled: true})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.CreateProfile(ctx, domain.ProfileRequest{Service: "billing", FeeType: "setup", Amount: decimal.RequireFromString("9.00")})
	require.NoError(t, err)

	fees, err := f.svc.FeesFor(ctx, "billing", []string{"setup"})
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, latest.ID, fees[0].ID)
	assert.Equal(t, "USD", fees[0].Currency)

	_, err = f.svc.FeesFor(ctx, "billing", []string{"setup", "late"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	charges, err := f.svc.Charges(ctx, gateway.Owner{CustomerID: "cus-9"}, []string{"setup"})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(charges[0].Amount))
	assert.Equal(t, "cus-9", charges[0].ChargeTo.CustomerID)

	f.clock.Advance(time.Minute)
	_, err = f.svc.SetProfileEnabled(ctx, latest.ID.String(), false)
	require.NoError(t, err)
	fees, err = f.svc.FeesFor(ctx, "", []string{"setup"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1").Equal(fees[0].Amount))

	profiles, err := f.svc.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}

func TestCreateProfileValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateProfile(context.Background(), domain.ProfileRequest{Service: "billing"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.CreateProfile(context.Background(), domain.ProfileRequest{Service: "billing", FeeType: "setup", Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
