package payment

import (
	"context"
)

// EventKind discriminates which saga a webhook event belongs to. It is set
// in the link metadata at creation time and decoded once at the top of the
// webhook handler.
type EventKind string

const (
	KindPartyBooking   EventKind = "party_booking"
	KindTicketTransfer EventKind = "ticket_transfer"

	// MetadataEventKind is the metadata key carrying the EventKind.
	MetadataEventKind = "event_kind"
)

// LinkRequest asks the provider for a hosted payment link. Metadata is
// round-tripped verbatim into the checkout.session.completed webhook.
type LinkRequest struct {
	AmountCents int64
	Currency    string
	Description string
	Email       string
	RedirectURL string
	Metadata    map[string]string
}

type Link struct {
	LinkID      string `json:"payment_link_id"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amount"`
	ExpiresAt   int64  `json:"expires_at"`
}

type RefundResult struct {
	RefundID        string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	AmountCents     int64  `json:"amount"`
	Status          string `json:"status"`
}

// Provider is the payment gateway contract the sagas depend on. The payment
// intent id is opaque: the sagas store and forward it, never interpret it.
type Provider interface {
	// CreatePaymentLink creates one hosted payment link.
	CreatePaymentLink(ctx context.Context, req *LinkRequest) (*Link, error)

	// Refund refunds a payment intent. amountCents == 0 means full refund.
	Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) (*RefundResult, error)
}
