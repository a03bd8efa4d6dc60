package payment

import (
	"encoding/json"
	"fmt"

	"eventgo-saga/internal/status"
)

// Webhook event types emitted by the provider.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.failed"
)

// CheckoutSession is the object attached to a checkout.session.completed
// event. Metadata carries whatever the saga attached at link creation.
type CheckoutSession struct {
	SessionID       string            `json:"id"`
	PaymentIntentID string            `json:"payment_intent"`
	Metadata        map[string]string `json:"metadata"`
}

// Kind returns the saga discriminator set at link-creation time.
func (s *CheckoutSession) Kind() (EventKind, error) {
	kind, ok := s.Metadata[MetadataEventKind]
	if !ok {
		return "", status.ErrMissingMetadata
	}
	switch EventKind(kind) {
	case KindPartyBooking, KindTicketTransfer:
		return EventKind(kind), nil
	}
	return "", fmt.Errorf("%w: %q", status.ErrUnknownEventKind, kind)
}

// WebhookEvent is the provider's event envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent decodes the raw webhook payload once; callers branch on
// Type and decode Data.Object into the matching struct.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return &event, nil
}

// Session decodes the event object as a checkout session.
func (e *WebhookEvent) Session() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &session, nil
}
