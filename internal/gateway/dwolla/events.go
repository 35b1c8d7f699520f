package dwolla

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/railzwaylabs/paycore/internal/gateway"
)

const signatureHeader = "X-Request-Signature-SHA-256"

type EventParser struct{}

func NewEventParser() *EventParser { return &EventParser{} }

func (EventParser) Provider() string { return providerName }

type event struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	Topic      string    `json:"topic"`
	Timestamp  time.Time `json:"timestamp"`
}

func (EventParser) ParseEvent(payload []byte, headers http.Header, secrets []string) (*gateway.Event, error) {
	signature := strings.TrimSpace(headers.Get(signatureHeader))
	if signature == "" || !validSignature(payload, signature, secrets) {
		return nil, gateway.ErrInvalidSignature
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		return nil, gateway.ErrInvalidPayload
	}
	return &gateway.Event{
		ID:         evt.ID,
		Topic:      evt.Topic,
		ResourceID: evt.ResourceID,
		Status:     topicStatus(evt.Topic),
		OccurredAt: evt.Timestamp,
	}, nil
}

func validSignature(payload []byte, signature string, secrets []string) bool {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return true
		}
	}
	return false
}

// topicStatus maps transfer topics such as customer_bank_transfer_completed
// to a transfer status.
func topicStatus(topic string) string {
	topic = strings.ToLower(topic)
	if !strings.Contains(topic, "transfer") {
		return ""
	}
	switch {
	case strings.HasSuffix(topic, "_completed"):
		return gateway.StatusProcessed
	case strings.HasSuffix(topic, "_failed"):
		return gateway.StatusFailed
	case strings.HasSuffix(topic, "_cancelled"):
		return gateway.StatusCancelled
	case strings.HasSuffix(topic, "_created"):
		return gateway.StatusPending
	default:
		return ""
	}
}
