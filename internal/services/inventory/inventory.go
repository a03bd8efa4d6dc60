// Package inventory defines the ticket-store contract the sagas depend on.
// The load-bearing part of the contract is that every status change is an
// atomic conditional update guarded by the expected current status, so that
// two sagas can never both win the same ticket.
package inventory

import (
	"context"

	"eventgo-saga/models"
)

type Inventory interface {
	GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error)
	GetTicketsByIds(ctx context.Context, ticketIDs []int64) ([]models.Ticket, error)

	// ReserveTickets conditionally moves every listed seat from available to
	// reserved under one reservation id. Any seat not available fails the
	// whole reservation with status.ErrSeatConflict.
	ReserveTickets(ctx context.Context, eventID int64, seatNumbers []string, userID int64) (reservationID int64, tickets []models.Ticket, err error)

	// ConfirmSplit moves one ticket of a reservation to sold and records its
	// payment reference. Confirming a ticket already sold with the same
	// reference returns status.ErrAlreadyConfirmed (webhook replay).
	ConfirmSplit(ctx context.Context, ticketID, reservationID int64, paymentIntentID string, userID int64) error

	// CancelTicketsForEvent cancels every non-cancelled ticket of the event
	// and returns one cancellation record per ticket.
	CancelTicketsForEvent(ctx context.Context, eventID int64) ([]models.CancellationRecord, error)

	// CancelTickets cancels the listed tickets. Already-cancelled tickets
	// are skipped, not errors (idempotent batch cancel).
	CancelTickets(ctx context.Context, ticketIDs []int64) error

	// TransferOwnership atomically moves a transferring ticket to its buyer:
	// owner and payment reference change together or not at all. A ticket
	// already sold to this buyer with the same reference returns
	// status.ErrAlreadyConfirmed (webhook replay).
	TransferOwnership(ctx context.Context, ticketID, sellerID, buyerID int64, paymentIntentID string) error

	// MarkTransferring locks a sold ticket for transfer.
	MarkTransferring(ctx context.Context, ticketID int64) error

	// ReleaseTransferring undoes MarkTransferring for a transfer that never
	// completed its payment phase.
	ReleaseTransferring(ctx context.Context, ticketID int64) error

	// UpdatePreference records the participant's keep/refund choice.
	UpdatePreference(ctx context.Context, ticketID int64, pref models.Preference) error
}
