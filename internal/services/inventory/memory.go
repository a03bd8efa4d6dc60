package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

// MemoryStore is an in-process Inventory used in development mode and in
// tests. All transitions go through the models.CanTransition table under one
// mutex, which gives the same conditional-update guarantee a database row
// update with a status guard gives.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[int64]*models.Ticket
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[int64]*models.Ticket),
		nextID:  1,
	}
}

// Seed inserts a ticket, assigning an id when the ticket carries none.
func (m *MemoryStore) Seed(t models.Ticket) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.TicketID == 0 {
		t.TicketID = m.nextID
		m.nextID++
	} else if t.TicketID >= m.nextID {
		m.nextID = t.TicketID + 1
	}
	if t.Status == "" {
		t.Status = models.StatusAvailable
	}
	copied := t
	m.tickets[t.TicketID] = &copied
	return t.TicketID
}

func (m *MemoryStore) GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *MemoryStore) GetTicketsByIds(ctx context.Context, ticketIDs []int64) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.Ticket, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		if t, ok := m.tickets[id]; ok {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *MemoryStore) ReserveTickets(ctx context.Context, eventID int64, seatNumbers []string, userID int64) (int64, []models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var toReserve []*models.Ticket
	for _, seat := range seatNumbers {
		t := m.findSeat(eventID, seat)
		if t == nil {
			return 0, nil, fmt.Errorf("seat %s: %w", seat, status.ErrTicketNotFound)
		}
		if t.Status != models.StatusAvailable {
			return 0, nil, fmt.Errorf("seat %s is %s: %w", seat, t.Status, status.ErrSeatConflict)
		}
		toReserve = append(toReserve, t)
	}

	reservationID := time.Now().UnixNano()
	reserved := make([]models.Ticket, 0, len(toReserve))
	for _, t := range toReserve {
		t.Status = models.StatusReserved
		t.ReservationID = reservationID
		t.UserID = userID
		reserved = append(reserved, *t)
	}
	return reservationID, reserved, nil
}

func (m *MemoryStore) ConfirmSplit(ctx context.Context, ticketID, reservationID int64, paymentIntentID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	if t.Status == models.StatusSold && t.PaymentIntentID == paymentIntentID {
		return status.ErrAlreadyConfirmed
	}
	if t.Status != models.StatusReserved || t.ReservationID != reservationID {
		return fmt.Errorf("ticket %d is %s: %w", ticketID, t.Status, status.ErrSeatConflict)
	}

	t.Status = models.StatusSold
	t.UserID = userID
	t.PaymentIntentID = paymentIntentID
	return nil
}

func (m *MemoryStore) CancelTicketsForEvent(ctx context.Context, eventID int64) ([]models.CancellationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []models.CancellationRecord
	for _, t := range m.tickets {
		if t.EventID != eventID || t.Status == models.StatusCancelled || t.Status == models.StatusAvailable {
			continue
		}
		records = append(records, models.CancellationRecord{
			TicketID:        t.TicketID,
			EventID:         t.EventID,
			UserID:          t.UserID,
			SeatNumber:      t.SeatNumber,
			Price:           t.Price,
			PaymentIntentID: t.PaymentIntentID,
			PreviousStatus:  t.Status,
		})
		t.Status = models.StatusCancelled
	}
	return records, nil
}

func (m *MemoryStore) CancelTickets(ctx context.Context, ticketIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ticketIDs {
		t, ok := m.tickets[id]
		if !ok {
			return fmt.Errorf("ticket %d: %w", id, status.ErrTicketNotFound)
		}
		if t.Status == models.StatusCancelled {
			continue
		}
		if !models.CanTransition(t.Status, models.StatusCancelled) {
			return fmt.Errorf("ticket %d %s -> cancelled: %w", id, t.Status, status.ErrInvalidTransition)
		}
		t.Status = models.StatusCancelled
	}
	return nil
}

func (m *MemoryStore) TransferOwnership(ctx context.Context, ticketID, sellerID, buyerID int64, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	if t.Status == models.StatusSold && t.UserID == buyerID && t.PaymentIntentID == paymentIntentID {
		// Redelivered webhook: this exact handoff already happened.
		return status.ErrAlreadyConfirmed
	}
	if t.Status != models.StatusTransferring {
		return fmt.Errorf("ticket %d is %s: %w", ticketID, t.Status, status.ErrSeatConflict)
	}
	if t.UserID != sellerID {
		return fmt.Errorf("ticket %d not owned by %d: %w", ticketID, sellerID, status.ErrSeatConflict)
	}

	// Ownership and payment reference move together. The reference is
	// rewritten, never appended.
	t.Status = models.StatusSold
	t.UserID = buyerID
	t.PaymentIntentID = paymentIntentID
	return nil
}

func (m *MemoryStore) MarkTransferring(ctx context.Context, ticketID int64) error {
	return m.transition(ticketID, models.StatusSold, models.StatusTransferring)
}

func (m *MemoryStore) ReleaseTransferring(ctx context.Context, ticketID int64) error {
	return m.transition(ticketID, models.StatusTransferring, models.StatusSold)
}

func (m *MemoryStore) UpdatePreference(ctx context.Context, ticketID int64, pref models.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	t.Preference = pref
	return nil
}

func (m *MemoryStore) transition(ticketID int64, from, to models.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	if t.Status != from {
		return fmt.Errorf("ticket %d is %s, expected %s: %w", ticketID, t.Status, from, status.ErrSeatConflict)
	}
	if !models.CanTransition(from, to) {
		return fmt.Errorf("ticket %d %s -> %s: %w", ticketID, from, to, status.ErrInvalidTransition)
	}
	t.Status = to
	return nil
}

func (m *MemoryStore) findSeat(eventID int64, seatNumber string) *models.Ticket {
	for _, t := range m.tickets {
		if t.EventID == eventID && t.SeatNumber == seatNumber {
			return t
		}
	}
	return nil
}
