package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paycore/internal/apperr"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/clock"
	"github.com/railzwaylabs/paycore/internal/fee/domain"
	"github.com/railzwaylabs/paycore/internal/gateway"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCurrency  = "USD"
	defaultSyncLimit = 100
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Ledger     ledgerdomain.Service
	Identities identitydomain.Service
	Gateways   *gateway.Set
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	ledger     ledgerdomain.Service
	identities identitydomain.Service
	gateways   *gateway.Set
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fee.service"),
		repo:       p.Repo,
		genID:      p.GenID,
		ledger:     p.Ledger,
		identities: p.Identities,
		gateways:   p.Gateways,
		clock:      p.Clock,
	}
}

func (s *Service) SyncFeesForTransfer(ctx context.Context, transactionID string) (*domain.SyncResult, error) {
	txn, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	res := &domain.SyncResult{}
	if err := s.sync(ctx, txn, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SyncRecent skips transactions whose processor does not report fees.
func (s *Service) SyncRecent(ctx context.Context, limit int) (*domain.SyncResult, error) {
	if limit <= 0 {
		limit = defaultSyncLimit
	}
	txns, err := s.ledger.List(ctx, ledgerdomain.ListFilter{Status: gateway.StatusProcessed, Limit: limit})
	if err != nil {
		return nil, err
	}

	res := &domain.SyncResult{}
	var errs []error
	for i := range txns {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := s.sync(ctx, &txns[i], res)
		switch {
		case err == nil:
		case apperr.IsUnsupported(err):
			res.Skipped++
		default:
			errs = append(errs, err)
		}
	}
	res.Logs = nil
	return res, errors.Join(errs...)
}

func (s *Service) sync(ctx context.Context, txn *ledgerdomain.Transaction, res *domain.SyncResult) error {
	if txn.ExternalTransferID == "" {
		return apperr.Invalid("transaction_id", "transaction has no processor transfer")
	}
	gw, err := s.gateways.For(txn.Provider)
	if err != nil {
		return err
	}
	breakdown, err := gw.GetFeeOfTransaction(ctx, txn.ExternalTransferID)
	if err != nil {
		return err
	}
	if breakdown == nil || breakdown.Total == 0 {
		return nil
	}

	for _, line := range breakdown.Lines {
		if line.Link == "" {
			// Without a link the line cannot be matched on the next sync.
			res.Skipped++
			observability.FeeLogsSynced.WithLabelValues("skipped").Inc()
			s.log.Warn("fee line without processor link skipped",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("external_transfer_id", txn.ExternalTransferID),
				zap.String("amount", line.Amount.String()),
			)
			continue
		}
		item, created, err := s.apply(ctx, txn, line)
		if err != nil {
			return err
		}
		if item == nil {
			continue
		}
		if created {
			res.Created++
			observability.FeeLogsSynced.WithLabelValues("created").Inc()
		} else {
			res.Updated++
			observability.FeeLogsSynced.WithLabelValues("updated").Inc()
		}
		res.Logs = append(res.Logs, *item)
	}
	return nil
}

// apply creates the fee log for an unseen line or refreshes the status of a
// known one. A nil log means nothing changed.
func (s *Service) apply(ctx context.Context, txn *ledgerdomain.Transaction, line gateway.FeeLine) (*domain.FeeLog, bool, error) {
	now := s.clock.Now(ctx)
	existing, err := s.repo.FindLogByExternalLink(ctx, s.db, line.Link)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.refresh(ctx, existing, line.Status)
	}

	currency := strings.ToUpper(line.Currency)
	if currency == "" {
		currency = txn.Currency
	}
	if currency == "" {
		currency = defaultCurrency
	}
	item := &domain.FeeLog{
		ID:            s.genID.Generate(),
		TransactionID: txn.ID,
		Provider:      txn.Provider,
		ExternalLink:  line.Link,
		TransferLink:  line.TransferLink,
		ChargedTo:     line.ChargedTo,
		Amount:        line.Amount,
		Currency:      currency,
		Status:        line.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if line.ChargedTo != "" {
		payer, err := s.identities.GetByExternalCustomerID(ctx, txn.Provider, line.ChargedTo)
		switch {
		case err == nil:
			item.IdentityID = payer.ID
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return nil, false, err
		}
	}

	if err := s.repo.CreateLog(ctx, s.db, item); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}
		// A concurrent sync inserted the line first.
		existing, findErr := s.repo.FindLogByExternalLink(ctx, s.db, line.Link)
		if findErr != nil || existing == nil {
			return nil, false, err
		}
		return s.refresh(ctx, existing, line.Status)
	}
	return item, true, nil
}

func (s *Service) refresh(ctx context.Context, item *domain.FeeLog, status string) (*domain.FeeLog, bool, error) {
	if status == "" || status == item.Status {
		return nil, false, nil
	}
	item.Status = status
	item.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateLogStatus(ctx, s.db, item); err != nil {
		return nil, false, err
	}
	return item, false, nil
}

func (s *Service) ListLogs(ctx context.Context, transactionID string) ([]domain.FeeLog, error) {
	id, err := parseID("transaction_id", transactionID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLogsByTransaction(ctx, s.db, id)
}

func parseID(field, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.Invalid(field, "malformed")
	}
	return id, nil
}
