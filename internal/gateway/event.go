package gateway

import (
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidSignature = errors.New("gateway: invalid webhook signature")
	ErrInvalidPayload   = errors.New("gateway: invalid webhook payload")
)

// Event is a verified processor notification.
type Event struct {
	ID         string
	Topic      string
	ResourceID string
	// Status is the normalized transfer status the event reports, empty when
	// the topic is not a transfer state change.
	Status     string
	OccurredAt time.Time
}

// EventParser verifies and decodes webhook deliveries for one processor.
type EventParser interface {
	Provider() string
	// ParseEvent accepts the payload if any of the secrets signed it.
	ParseEvent(payload []byte, headers http.Header, secrets []string) (*Event, error)
}

// EventParsers indexes parsers by provider name.
type EventParsers map[string]EventParser

func NewEventParsers(parsers ...EventParser) EventParsers {
	out := make(EventParsers, len(parsers))
	for _, p := range parsers {
		out[p.Provider()] = p
	}
	return out
}
