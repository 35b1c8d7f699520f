package domain

import (
	"context"

	"github.com/railzwaylabs/paycore/internal/gateway"
	"github.com/shopspring/decimal"
)

type Service interface {
	// SyncFeesForTransfer records the processor fees of a transaction. Known
	// lines only get their status refreshed; rows are never deleted.
	SyncFeesForTransfer(ctx context.Context, transactionID string) (*SyncResult, error)
	// SyncRecent refreshes fees for the most recent processed transactions.
	SyncRecent(ctx context.Context, limit int) (*SyncResult, error)
	ListLogs(ctx context.Context, transactionID string) ([]FeeLog, error)

	CreateProfile(ctx context.Context, req ProfileRequest) (*FeeProfile, error)
	SetProfileEnabled(ctx context.Context, id string, enabled bool) (*FeeProfile, error)
	ListProfiles(ctx context.Context) ([]FeeProfile, error)
	FeesFor(ctx context.Context, service string, types []string) ([]FeeProfile, error)
	// Charges resolves fee types into processor fee lines charged to owner.
	Charges(ctx context.Context, chargeTo gateway.Owner, types []string) ([]gateway.FeeCharge, error)
}

type ProfileRequest struct {
	Service     string          `json:"service" validate:"required,max=64"`
	FeeType     string          `json:"fee_type" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
}

// SyncResult counts fee log changes. Skipped covers transactions whose
// processor reports no fees and fee lines without a processor link.
type SyncResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Logs    []FeeLog `json:"logs,omitempty"`
}
