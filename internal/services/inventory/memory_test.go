package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

func seatStore() *MemoryStore {
	m := NewMemoryStore()
	m.Seed(models.Ticket{EventID: 42, SeatNumber: "A1", Price: decimal.NewFromInt(50)})
	m.Seed(models.Ticket{EventID: 42, SeatNumber: "A2", Price: decimal.NewFromInt(50)})
	m.Seed(models.Ticket{EventID: 42, SeatNumber: "A3", Price: decimal.NewFromInt(75)})
	return m
}

func TestReserveTicketsAllOrNothing(t *testing.T) {
	m := seatStore()
	ctx := context.Background()

	_, _, err := m.ReserveTickets(ctx, 42, []string{"A1", "A2"}, 1)
	require.NoError(t, err)

	// A2 is taken, so the whole second reservation fails and A3 stays free.
	_, _, err = m.ReserveTickets(ctx, 42, []string{"A2", "A3"}, 2)
	assert.ErrorIs(t, err, status.ErrSeatConflict)

	_, _, err = m.ReserveTickets(ctx, 42, []string{"A3"}, 2)
	assert.NoError(t, err)
}

func TestReserveTicketsSingleWinner(t *testing.T) {
	m := seatStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = m.ReserveTickets(ctx, 42, []string{"A1"}, int64(i+1))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestConfirmSplitIdempotentReplay(t *testing.T) {
	m := seatStore()
	ctx := context.Background()

	reservationID, tickets, err := m.ReserveTickets(ctx, 42, []string{"A1"}, 1)
	require.NoError(t, err)
	ticketID := tickets[0].TicketID

	require.NoError(t, m.ConfirmSplit(ctx, ticketID, reservationID, "pi_1", 1))

	// Same payment reference again is a replay, not a conflict.
	err = m.ConfirmSplit(ctx, ticketID, reservationID, "pi_1", 1)
	assert.ErrorIs(t, err, status.ErrAlreadyConfirmed)

	// A different reference for a sold ticket is a real conflict.
	err = m.ConfirmSplit(ctx, ticketID, reservationID, "pi_2", 1)
	assert.ErrorIs(t, err, status.ErrSeatConflict)
}

func TestConfirmSplitWrongReservation(t *testing.T) {
	m := seatStore()
	ctx := context.Background()

	_, tickets, err := m.ReserveTickets(ctx, 42, []string{"A1"}, 1)
	require.NoError(t, err)

	err = m.ConfirmSplit(ctx, tickets[0].TicketID, 999999, "pi_1", 1)
	assert.ErrorIs(t, err, status.ErrSeatConflict)
}

func TestTransferLifecycle(t *testing.T) {
	m := NewMemoryStore()
	id := m.Seed(models.Ticket{EventID: 42, SeatNumber: "D4", Price: decimal.NewFromInt(120),
		Status: models.StatusSold, UserID: 10, PaymentIntentID: "pi_seller"})
	ctx := context.Background()

	require.NoError(t, m.MarkTransferring(ctx, id))

	// Double-lock loses.
	assert.ErrorIs(t, m.MarkTransferring(ctx, id), status.ErrSeatConflict)

	// Wrong seller cannot hand over.
	assert.Error(t, m.TransferOwnership(ctx, id, 99, 20, "pi_buyer"))

	require.NoError(t, m.TransferOwnership(ctx, id, 10, 20, "pi_buyer"))
	ticket, err := m.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, ticket.Status)
	assert.Equal(t, int64(20), ticket.UserID)
	assert.Equal(t, "pi_buyer", ticket.PaymentIntentID)

	// The exact same handoff again is a replay, not a conflict.
	assert.ErrorIs(t, m.TransferOwnership(ctx, id, 10, 20, "pi_buyer"), status.ErrAlreadyConfirmed)

	// A different reference for the sold ticket is a real conflict.
	assert.ErrorIs(t, m.TransferOwnership(ctx, id, 10, 20, "pi_buyer2"), status.ErrSeatConflict)
}

func TestReleaseTransferring(t *testing.T) {
	m := NewMemoryStore()
	id := m.Seed(models.Ticket{EventID: 42, SeatNumber: "D4", Price: decimal.NewFromInt(120),
		Status: models.StatusSold, UserID: 10})
	ctx := context.Background()

	require.NoError(t, m.MarkTransferring(ctx, id))
	require.NoError(t, m.ReleaseTransferring(ctx, id))

	ticket, err := m.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, ticket.Status)
	assert.Equal(t, int64(10), ticket.UserID)

	assert.ErrorIs(t, m.ReleaseTransferring(ctx, id), status.ErrSeatConflict)
}

func TestCancelTicketsSkipsAlreadyCancelled(t *testing.T) {
	m := NewMemoryStore()
	a := m.Seed(models.Ticket{EventID: 42, SeatNumber: "A1", Status: models.StatusSold, UserID: 1})
	b := m.Seed(models.Ticket{EventID: 42, SeatNumber: "A2", Status: models.StatusCancelled, UserID: 2})
	ctx := context.Background()

	require.NoError(t, m.CancelTickets(ctx, []int64{a, b}))
	require.NoError(t, m.CancelTickets(ctx, []int64{a, b}))

	ticket, err := m.GetTicket(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, ticket.Status)
}

func TestCancelTicketsForEventSkipsAvailable(t *testing.T) {
	m := NewMemoryStore()
	m.Seed(models.Ticket{EventID: 42, SeatNumber: "A1", Price: decimal.NewFromInt(50),
		Status: models.StatusSold, UserID: 1, PaymentIntentID: "pi_1"})
	m.Seed(models.Ticket{EventID: 42, SeatNumber: "A2"})
	m.Seed(models.Ticket{EventID: 7, SeatNumber: "Z1", Status: models.StatusSold, UserID: 3, PaymentIntentID: "pi_3"})
	ctx := context.Background()

	records, err := m.CancelTicketsForEvent(ctx, 42)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pi_1", records[0].PaymentIntentID)
	assert.Equal(t, models.StatusSold, records[0].PreviousStatus)

	// The other event's ticket is untouched.
	other, err := m.GetTicketsByIds(ctx, []int64{records[0].TicketID + 2})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, models.StatusSold, other[0].Status)
}

func TestUpdatePreference(t *testing.T) {
	m := NewMemoryStore()
	id := m.Seed(models.Ticket{EventID: 42, SeatNumber: "A1", Status: models.StatusSold, UserID: 1})
	ctx := context.Background()

	require.NoError(t, m.UpdatePreference(ctx, id, models.PreferenceRefund))
	ticket, err := m.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceRefund, ticket.Preference)

	assert.ErrorIs(t, m.UpdatePreference(ctx, 999, models.PreferenceKeep), status.ErrTicketNotFound)
}
