package stripe

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/gateway"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const signatureHeader = "Stripe-Signature"

// EventParser verifies Stripe-Signature headers. The configured secret is
// always tried in addition to the secrets passed per call.
type EventParser struct {
	secret string
}

func NewEventParser(secret string) *EventParser {
	return &EventParser{secret: strings.TrimSpace(secret)}
}

func (p *EventParser) Provider() string { return providerName }

func (p *EventParser) ParseEvent(payload []byte, headers http.Header, secrets []string) (*gateway.Event, error) {
	header := headers.Get(signatureHeader)
	if header == "" {
		return nil, gateway.ErrInvalidSignature
	}

	candidates := secrets
	if p.secret != "" {
		candidates = append([]string{p.secret}, secrets...)
	}
	var (
		evt      stripego.Event
		verified bool
	)
	for _, secret := range candidates {
		if secret == "" {
			continue
		}
		var err error
		evt, err = webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err == nil {
			verified = true
			break
		}
	}
	if !verified {
		return nil, gateway.ErrInvalidSignature
	}
	if evt.ID == "" {
		return nil, gateway.ErrInvalidPayload
	}

	out := &gateway.Event{
		ID:         evt.ID,
		Topic:      string(evt.Type),
		Status:     eventStatus(string(evt.Type)),
		OccurredAt: time.Unix(evt.Created, 0).UTC(),
	}
	if evt.Data != nil && len(evt.Data.Raw) > 0 {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(evt.Data.Raw, &obj); err != nil {
			return nil, gateway.ErrInvalidPayload
		}
		out.ResourceID = obj.ID
	}
	return out, nil
}

func eventStatus(eventType string) string {
	switch eventType {
	case "payment_intent.succeeded":
		return gateway.StatusProcessed
	case "payment_intent.payment_failed":
		return gateway.StatusFailed
	case "payment_intent.canceled":
		return gateway.StatusCancelled
	case "payment_intent.processing":
		return gateway.StatusPending
	default:
		return ""
	}
}
