package migration

import (
	"context"
	"fmt"

	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	plandomain "github.com/railzwaylabs/paycore/internal/plan/domain"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	webhookdomain "github.com/railzwaylabs/paycore/internal/webhook/domain"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&identitydomain.BillingIdentity{},
		&fundingdomain.FundingSource{},
		&ledgerdomain.Transaction{},
		&ledgerdomain.TransferAttempt{},
		&ledgerdomain.PaymentDescriptor{},
		&ledgerdomain.Payment{},
		&feedomain.FeeProfile{},
		&feedomain.FeeLog{},
		&plandomain.Plan{},
		&plandomain.PlanCost{},
		&subscriptiondomain.Subscription{},
		&installmentdomain.Installment{},
		&webhookdomain.Subscription{},
		&webhookdomain.Event{},
	}
}

// AutoMigrate builds the schema from the gorm models. SQL migrations only
// target postgres, so sqlite and mysql development databases use this.
func AutoMigrate(ctx context.Context, conn *gorm.DB) error {
	if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
