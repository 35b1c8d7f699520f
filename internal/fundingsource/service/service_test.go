package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	identityrepo "github.com/railzwaylabs/paycore/internal/billingidentity/repository"
	identitysvc "github.com/railzwaylabs/paycore/internal/billingidentity/service"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	"github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	"github.com/railzwaylabs/paycore/internal/fundingsource/repository"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/gatewaymock"
	"github.com/railzwaylabs/paycore/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	gw       *gatewaymock.Gateway
	db       *gorm.DB
	identity *identitydomain.BillingIdentity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &identitydomain.BillingIdentity{}, &domain.FundingSource{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	gw := gatewaymock.New(gateway.ProviderDwolla)
	set, err := gateway.NewStaticSet(map[string]gateway.Gateway{gateway.ProviderDwolla: gw}, gateway.ProviderDwolla, "", "")
	require.NoError(t, err)

	identities := identitysvc.New(identitysvc.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     identityrepo.Provide(),
		Gateways: set,
		Config:   config.Config{Payment: config.PaymentConfig{Provider: gateway.ProviderDwolla}},
		Clock:    clk,
	})
	gw.On("CreateCustomer", mock.Anything, mock.Anything).Return(&gateway.Customer{ID: "cus-1"}, nil).Once()
	identity, err := identities.Resolve(context.Background(), identitydomain.ResolveRequest{
		PartyID: "user-1", Role: identitydomain.RoleCustomer, Create: true,
	})
	require.NoError(t, err)

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       repository.Provide(),
		Identities: identities,
		Gateways:   set,
		Clock:      clk,
	})
	return &fixture{svc: svc, gw: gw, db: db, identity: identity}
}

var owner = gateway.Owner{CustomerID: "cus-1"}

func TestIsValid(t *testing.T) {
	cases := []struct {
		name   string
		source domain.FundingSource
		want   bool
	}{
		{"verified bank", domain.FundingSource{Type: gateway.FundingTypeBank}, true},
		{"verified card", domain.FundingSource{Type: gateway.FundingTypeCard}, true},
		{"pending", domain.FundingSource{Type: gateway.FundingTypeBank, PendingMicrodeposit: true}, false},
		{"balance", domain.FundingSource{Type: gateway.FundingTypeBalance}, false},
		{"deleted", domain.FundingSource{Type: gateway.FundingTypeBank, Deleted: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.IsValid(&tc.source))
		})
	}
	assert.False(t, domain.IsValid(nil))
}

func TestMicrodepositLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("CreateFundingSource", mock.Anything, gateway.FundingSourceLinkInput{Owner: owner, Name: "Checking", Token: "plaid-tok"}).
		Return(&gateway.FundingInstrument{ID: "fs-1", Type: gateway.FundingTypeBank, Name: "Checking", Verified: false}, nil).Once()

	source, err := f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String(), Name: "Checking", Token: "plaid-tok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateUnverified, source.State())
	assert.False(t, domain.IsValid(source))

	f.gw.On("VerifyMicrodeposit", mock.Anything, mock.MatchedBy(func(in gateway.MicrodepositInput) bool {
		return in.Initiate() && in.FundingID == "fs-1"
	})).Return(nil).Once()
	source, err = f.svc.VerifyMicrodeposit(ctx, source.ID.String(), domain.MicrodepositRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StateUnverified, source.State())

	a1, a2 := decimal.RequireFromString("0.03"), decimal.RequireFromString("0.09")
	f.gw.On("VerifyMicrodeposit", mock.Anything, mock.MatchedBy(func(in gateway.MicrodepositInput) bool {
		return !in.Initiate() && in.Amount1.Equal(a1)
	})).Return(nil).Once()
	source, err = f.svc.VerifyMicrodeposit(ctx, source.ID.String(), domain.MicrodepositRequest{Amount1: &a1, Amount2: &a2})
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, source.State())

	again, err := f.svc.VerifyMicrodeposit(ctx, source.ID.String(), domain.MicrodepositRequest{Amount1: &a1, Amount2: &a2})
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, again.State())
	f.gw.AssertNumberOfCalls(t, "VerifyMicrodeposit", 2)
}

func TestVerifyRejectsHalfAmountsAndDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := decimal.RequireFromString("0.03")
	_, err := f.svc.VerifyMicrodeposit(ctx, "1", domain.MicrodepositRequest{Amount1: &a1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.gw.On("CreateFundingSource", mock.Anything, mock.Anything).
		Return(&gateway.FundingInstrument{ID: "fs-1", Type: gateway.FundingTypeBank}, nil).Once()
	source, err := f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String(), Token: "tok"})
	require.NoError(t, err)

	f.gw.On("UpdateFundingSource", mock.Anything, gateway.FundingSourceUpdateInput{Owner: owner, FundingID: "fs-1", Removed: true}).
		Return(&gateway.FundingInstrument{ID: "fs-1", Removed: true}, nil).Once()
	source, err = f.svc.Update(ctx, source.ID.String(), domain.UpdateRequest{Removed: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDeleted, source.State())

	_, err = f.svc.VerifyMicrodeposit(ctx, source.ID.String(), domain.MicrodepositRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Update(ctx, source.ID.String(), domain.UpdateRequest{Removed: true})
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
}

func TestCreateVerifiedInstrumentAndManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("CreateFundingSourceManually", mock.Anything, mock.MatchedBy(func(in gateway.FundingSourceManualInput) bool {
		return in.RoutingNumber == "222222226" && in.AccountType == "checking"
	})).Return(&gateway.FundingInstrument{ID: "fs-2", Type: gateway.FundingTypeBank, Verified: true}, nil).Once()

	source, err := f.svc.Create(ctx, domain.CreateRequest{
		IdentityID: f.identity.ID.String(),
		Name:       "Savings",
		Manual:     &domain.ManualDetails{RoutingNumber: "222222226", AccountNumber: "123456789", AccountType: "checking"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, source.State())
	assert.Equal(t, "Savings", source.Name)

	_, err = f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String()})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "token", ve.Field)
}

func TestCreateRemovesInstrumentWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("fail_create", func(tx *gorm.DB) {
		if tx.Statement.Table == "funding_sources" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
	f.gw.On("CreateFundingSource", mock.Anything, mock.Anything).
		Return(&gateway.FundingInstrument{ID: "fs-9", Type: gateway.FundingTypeBank}, nil).Once()
	f.gw.On("UpdateFundingSource", mock.Anything, gateway.FundingSourceUpdateInput{Owner: owner, FundingID: "fs-9", Removed: true}).
		Return(&gateway.FundingInstrument{ID: "fs-9", Removed: true}, nil).Once()

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{IdentityID: f.identity.ID.String(), Token: "tok"})
	require.Error(t, err)
	f.gw.AssertExpectations(t)
}

func TestListMergesProcessorState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("CreateFundingSource", mock.Anything, mock.Anything).
		Return(&gateway.FundingInstrument{ID: "fs-1", Type: gateway.FundingTypeBank, Name: "Old"}, nil).Once()
	f.gw.On("CreateFundingSource", mock.Anything, mock.Anything).
		Return(&gateway.FundingInstrument{ID: "fs-3", Type: gateway.FundingTypeBank, Name: "Gone"}, nil).Once()
	first, err := f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String(), Token: "a"})
	require.NoError(t, err)
	gone, err := f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String(), Token: "b"})
	require.NoError(t, err)

	f.gw.On("UpdateFundingSource", mock.Anything, mock.Anything).Return(&gateway.FundingInstrument{ID: "fs-3", Removed: true}, nil).Once()
	_, err = f.svc.Update(ctx, gone.ID.String(), domain.UpdateRequest{Removed: true})
	require.NoError(t, err)

	f.gw.On("ListFundingSources", mock.Anything, owner).Return([]gateway.FundingInstrument{
		{ID: "fs-1", Type: gateway.FundingTypeBank, Name: "Renamed", Verified: true},
		{ID: "fs-2", Type: gateway.FundingTypeBalance, Name: "Balance", Verified: true},
		{ID: "fs-3", Type: gateway.FundingTypeBank, Name: "Gone", Verified: true},
	}, nil).Once()

	list, err := f.svc.List(ctx, f.identity.ID.String())
	require.NoError(t, err)
	require.Len(t, list, 3)

	byExternal := map[string]domain.FundingSource{}
	for _, item := range list {
		byExternal[item.ExternalFundingID] = item
	}
	assert.Equal(t, first.ID, byExternal["fs-1"].ID)
	assert.Equal(t, "Renamed", byExternal["fs-1"].Name)
	assert.Equal(t, domain.StateVerified, ptr(byExternal["fs-1"]).State())
	assert.False(t, domain.IsValid(ptr(byExternal["fs-2"])))
	assert.Equal(t, domain.StateDeleted, ptr(byExternal["fs-3"]).State())
}

func TestListWithoutListingReturnsLocalRows(t *testing.T) {
	f := newFixture(t)
	f.gw.Listing = false
	list, err := f.svc.List(context.Background(), f.identity.ID.String())
	require.NoError(t, err)
	assert.Empty(t, list)
	f.gw.AssertNotCalled(t, "ListFundingSources", mock.Anything, mock.Anything)
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.On("CreateFundingSource", mock.Anything, mock.Anything).
		Return(&gateway.FundingInstrument{ID: "fs-1", Type: gateway.FundingTypeBalance, Verified: true}, nil).Once()
	f.gw.On("GetFundingSourceBalance", mock.Anything, owner, "fs-1").
		Return(&gateway.Balance{Value: decimal.RequireFromString("12.50"), Currency: "USD"}, nil).Once()

	source, err := f.svc.Create(ctx, domain.CreateRequest{IdentityID: f.identity.ID.String(), Token: "tok"})
	require.NoError(t, err)
	bal, err := f.svc.Balance(ctx, source.ID.String())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(bal.Value))
	assert.Equal(t, "USD", bal.Currency)
}

func ptr(f domain.FundingSource) *domain.FundingSource { return &f }
