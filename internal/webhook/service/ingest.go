package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang/snappy"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/gateway"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	"github.com/railzwaylabs/paycore/internal/observability"
	"github.com/railzwaylabs/paycore/internal/security/vault"
	"github.com/railzwaylabs/paycore/internal/webhook/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ingest applies the event before archiving it, so a delivery that fails to
// apply is processed again when the processor retries.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*domain.IngestResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	parser, ok := s.parsers[provider]
	if !ok {
		return nil, apperr.Invalid("provider", "no webhook parser for "+provider)
	}
	secrets, err := s.secrets(ctx, provider)
	if err != nil {
		return nil, err
	}
	evt, err := parser.ParseEvent(payload, headers, secrets)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(provider, "rejected").Inc()
		return nil, err
	}

	existing, err := s.repo.FindEvent(ctx, s.db, provider, evt.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		observability.WebhookEvents.WithLabelValues(provider, domain.ResultDuplicate).Inc()
		return &domain.IngestResult{EventID: evt.ID, Result: domain.ResultDuplicate}, nil
	}

	result, txn, err := s.apply(ctx, provider, evt)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(provider, "failed").Inc()
		return nil, err
	}

	now := s.clock.Now(ctx)
	item := &domain.Event{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ExternalEventID: evt.ID,
		Topic:           evt.Topic,
		ResourceID:      evt.ResourceID,
		Status:          evt.Status,
		Result:          result.Result,
		Headers:         headerMap(headers),
		Payload:         snappy.Encode(nil, maskPayload(payload)),
		CreatedAt:       now,
	}
	if !evt.OccurredAt.IsZero() {
		occurred := evt.OccurredAt
		item.OccurredAt = &occurred
	}
	if txn != nil {
		item.TransactionID = txn.ID
	}
	if err := s.repo.CreateEvent(ctx, s.db, item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			result.Result = domain.ResultDuplicate
		} else {
			return nil, err
		}
	}
	observability.WebhookEvents.WithLabelValues(provider, result.Result).Inc()
	return result, nil
}

// apply moves the matching transaction to the reported status and settles
// the installment it pays for.
func (s *Service) apply(ctx context.Context, provider string, evt *gateway.Event) (*domain.IngestResult, *ledgerdomain.Transaction, error) {
	result := &domain.IngestResult{EventID: evt.ID, Result: domain.ResultIgnored}
	if evt.Status == "" || evt.ResourceID == "" {
		return result, nil, nil
	}

	txn, err := s.ledger.ApplyStatus(ctx, provider, evt.ResourceID, evt.Status, "")
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Info("webhook event has no matching transaction",
				zap.String("provider", provider),
				zap.String("event_id", evt.ID),
				zap.String("resource_id", evt.ResourceID),
			)
			result.Result = domain.ResultUnmatched
			return result, nil, nil
		}
		return nil, nil, err
	}
	result.Result = domain.ResultApplied
	result.TransactionID = txn.ID.String()

	if txn.InstallmentID != 0 {
		if _, err := s.subscriptions.SettleInstallment(ctx, txn.InstallmentID.String()); err != nil {
			return nil, nil, err
		}
		result.InstallmentID = txn.InstallmentID.String()
	}
	return result, txn, nil
}

// secrets opens every stored secret of the provider. Secrets that no longer
// open are skipped so one bad row cannot block deliveries.
func (s *Service) secrets(ctx context.Context, provider string) ([]string, error) {
	items, err := s.repo.ListSubscriptions(ctx, s.db, provider)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		secret, err := vault.OpenString(s.vault, item.SealedSecret)
		if err != nil {
			s.log.Warn("failed to open webhook secret",
				zap.String("webhook_subscription_id", item.ID.String()),
				zap.Error(err),
			)
			continue
		}
		out = append(out, secret)
	}
	return out, nil
}

// maskPayload blanks bank and card details before the body is archived.
func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return masked
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "us_bank_account", "billing_details", "payment_method_details", "accountnumber", "account_number", "routingnumber", "routing_number":
			m[k] = "***"
		default:
			switch nested := v.(type) {
			case map[string]any:
				maskMap(nested)
			case []any:
				for _, item := range nested {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
