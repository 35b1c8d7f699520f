package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	identityrepo "github.com/railzwaylabs/paycore/internal/billingidentity/repository"
	identitysvc "github.com/railzwaylabs/paycore/internal/billingidentity/service"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/config"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	fundingrepo "github.com/railzwaylabs/paycore/internal/fundingsource/repository"
	fundingsvc "github.com/railzwaylabs/paycore/internal/fundingsource/service"
	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/railzwaylabs/paycore/internal/gateway/gatewaymock"
	"github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/ledger/repository"
	"github.com/railzwaylabs/paycore/internal/locker"
	"github.com/railzwaylabs/paycore/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc    domain.Service
	gw     *gatewaymock.Gateway
	db     *gorm.DB
	clock  *clock.Fixed
	locker locker.Locker
	node   *snowflake.Node

	payer  *identitydomain.BillingIdentity
	payee  *identitydomain.BillingIdentity
	source *fundingdomain.FundingSource
	dest   *fundingdomain.FundingSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&identitydomain.BillingIdentity{},
		&fundingdomain.FundingSource{},
		&domain.Transaction{},
		&domain.TransferAttempt{},
		&domain.PaymentDescriptor{},
		&domain.Payment{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		Payment: config.PaymentConfig{Provider: gateway.ProviderDwolla},
		Ledger:  config.LedgerConfig{LockTTL: time.Minute, LockWait: 50 * time.Millisecond, ReconcileAfter: 15 * time.Minute},
	}

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
	lk := locker.NewMemoryLocker()

	f := &fixture{
		svc: New(Params{
			DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(),
			Identities: identities, FundingSources: sources, Gateways: set,
			Locker: lk, Clock: clk, Config: cfg,
		}),
		gw:     gw,
		db:     db,
		clock:  clk,
		locker: lk,
		node:   node,
	}

	now := clk.Now(context.Background())
	f.payer = &identitydomain.BillingIdentity{
		ID: node.Generate(), PartyID: "user-1", PartyType: identitydomain.PartyCustomer,
		Provider: gateway.ProviderDwolla, Role: identitydomain.RoleCustomer,
		ExternalCustomerID: "cus-1", IsDefault: true, CreatedAt: now, UpdatedAt: now,
	}
	f.payee = &identitydomain.BillingIdentity{
		ID: node.Generate(), PartyID: "shop-1", PartyType: identitydomain.PartyBusiness,
		Provider: gateway.ProviderDwolla, Role: identitydomain.RoleMerchant,
		ExternalAccountID: "acct-1", IsDefault: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(f.payer).Error)
	require.NoError(t, db.Create(f.payee).Error)

	f.source = f.addSource(t, f.payer, "fs-src", gateway.FundingTypeBank, false)
	f.dest = f.addSource(t, f.payee, "fs-dst", gateway.FundingTypeBank, false)
	return f
}

func (f *fixture) addSource(t *testing.T, owner *identitydomain.BillingIdentity, external, fundingType string, pending bool) *fundingdomain.FundingSource {
	t.Helper()
	now := f.clock.Now(context.Background())
	source := &fundingdomain.FundingSource{
		ID: f.node.Generate(), IdentityID: owner.ID, Provider: owner.Provider,
		ExternalFundingID: external, Type: fundingType, Name: external,
		PendingMicrodeposit: pending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(source).Error)
	return source
}
