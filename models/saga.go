package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SagaState tracks a saga instance through its lifecycle. Instances are
// persisted keyed by their correlation id (reservation id or transfer id)
// so that webhook deliveries arriving after a restart still find them.
type SagaState string

const (
	SagaInitiated         SagaState = "initiated"
	SagaAwaitingPayment   SagaState = "awaiting_payment"
	SagaAwaitingReconcile SagaState = "awaiting_reconciliation"
	SagaCompleted         SagaState = "completed"
	SagaPartiallyFailed   SagaState = "partially_failed"
	SagaFailed            SagaState = "failed"
)

// Participant is one member of a split-payment booking.
type Participant struct {
	UserID    int64           `json:"user_id"`
	Email     string          `json:"email"`
	TicketID  int64           `json:"ticket_id"`
	Amount    decimal.Decimal `json:"amount"`
	Leader    bool            `json:"leader"`
	LinkURL   string          `json:"link_url,omitempty"`
	Confirmed bool            `json:"confirmed"`
}

type BookingSaga struct {
	ReservationID int64         `json:"reservation_id"`
	EventID       int64         `json:"event_id"`
	State         SagaState     `json:"state"`
	Participants  []Participant `json:"participants"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TicketIDs returns the ticket set covered by this booking.
func (b *BookingSaga) TicketIDs() []int64 {
	ids := make([]int64, 0, len(b.Participants))
	for _, p := range b.Participants {
		ids = append(ids, p.TicketID)
	}
	return ids
}

type TransferSaga struct {
	TransferID  string    `json:"transfer_id"`
	TicketID    int64     `json:"ticket_id"`
	EventID     int64     `json:"event_id"`
	SellerID    int64     `json:"seller_id"`
	BuyerID     int64     `json:"buyer_id"`
	SellerEmail string    `json:"seller_email"`
	BuyerEmail  string    `json:"buyer_email"`
	AmountCents int64     `json:"amount_cents"`
	State       SagaState `json:"state"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefundOutcome is the per-group result of an event cancellation. A failed
// refund is reported as an error string in RefundStatus rather than aborting
// sibling groups.
type RefundOutcome struct {
	UserID          int64           `json:"user_id"`
	Email           string          `json:"email"`
	PaymentIntentID string          `json:"payment_intent_id"`
	RefundStatus    string          `json:"refund_status"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount"`
	TicketIDs       []int64         `json:"ticket_ids"`
}
