package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TicketStatus is the lifecycle state of a ticket. The status field is the
// sole concurrency guard between sagas: every transition is a conditional
// update checked against the table below.
type TicketStatus string

const (
	StatusAvailable    TicketStatus = "available"
	StatusReserved     TicketStatus = "reserved"
	StatusSold         TicketStatus = "sold"
	StatusTransferring TicketStatus = "transferring"
	StatusCancelled    TicketStatus = "cancelled"
)

var legalTransitions = map[TicketStatus][]TicketStatus{
	StatusAvailable:    {StatusReserved},
	StatusReserved:     {StatusSold, StatusAvailable, StatusCancelled},
	StatusSold:         {StatusTransferring, StatusCancelled},
	StatusTransferring: {StatusSold, StatusCancelled},
	StatusCancelled:    {},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseTicketStatus(s string) (TicketStatus, error) {
	switch TicketStatus(s) {
	case StatusAvailable, StatusReserved, StatusSold, StatusTransferring, StatusCancelled:
		return TicketStatus(s), nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

// Preference is the participant-level choice consulted by the reconciler:
// tickets marked "refund" are refunded and cancelled once the grace window
// for the group purchase lapses.
type Preference string

const (
	PreferenceKeep   Preference = "keep"
	PreferenceRefund Preference = "refund"
)

type Ticket struct {
	TicketID        int64           `json:"ticket_id"`
	EventID         int64           `json:"event_id"`
	SeatNumber      string          `json:"seat_number"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	Status          TicketStatus    `json:"status"`
	UserID          int64           `json:"user_id,omitempty"`
	ReservationID   int64           `json:"reservation_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Preference      Preference      `json:"preference,omitempty"`
}

// CancellationRecord is returned by the inventory for each ticket cancelled
// as part of an event cancellation. PaymentIntentID may be empty for tickets
// that were never paid for; those carry nothing to refund.
type CancellationRecord struct {
	TicketID        int64           `json:"ticket_id"`
	EventID         int64           `json:"event_id"`
	UserID          int64           `json:"user_id"`
	SeatNumber      string          `json:"seat"`
	Price           decimal.Decimal `json:"price"`
	PaymentIntentID string          `json:"payment_intent_id"`
	PreviousStatus  TicketStatus    `json:"previous_status"`
}
