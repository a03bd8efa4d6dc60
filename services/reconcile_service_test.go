package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/models"
)

func newReconcileFixture() (*ReconcileService, *fakeProvider, *fakeStore, *inventory.MemoryStore) {
	provider := newFakeProvider()
	publisher := &fakePublisher{}
	store := newFakeStore()
	inv := inventory.NewMemoryStore()

	svc := NewReconcileService(provider, inv, publisher, store, 10*time.Millisecond, time.Hour)
	return svc, provider, store, inv
}

func seedGracePeriodLapsed(inv *inventory.MemoryStore, store *fakeStore) ReconcileJob {
	// 101 paid and wants out, 102 paid and keeps the ticket, 103 never paid.
	inv.Seed(models.Ticket{TicketID: 101, EventID: 42, SeatNumber: "A1", Price: decimal.NewFromInt(50),
		Status: models.StatusSold, UserID: 1, PaymentIntentID: "pi_alice", Preference: models.PreferenceRefund})
	inv.Seed(models.Ticket{TicketID: 102, EventID: 42, SeatNumber: "A2", Price: decimal.NewFromInt(50),
		Status: models.StatusSold, UserID: 2, PaymentIntentID: "pi_bob", Preference: models.PreferenceKeep})
	inv.Seed(models.Ticket{TicketID: 103, EventID: 42, SeatNumber: "A3", Price: decimal.NewFromInt(50),
		Status: models.StatusReserved, UserID: 3, ReservationID: 7001})

	store.SaveBookingSaga(context.Background(), &models.BookingSaga{
		ReservationID: 7001,
		EventID:       42,
		State:         models.SagaAwaitingPayment,
		Participants: []models.Participant{
			{UserID: 1, TicketID: 101}, {UserID: 2, TicketID: 102}, {UserID: 3, TicketID: 103},
		},
	})
	return ReconcileJob{ReservationID: 7001, TicketIDs: []int64{101, 102, 103}}
}

func TestReconcileRefundsAndCancelsOptOuts(t *testing.T) {
	svc, provider, store, inv := newReconcileFixture()
	job := seedGracePeriodLapsed(inv, store)

	require.NoError(t, svc.Reconcile(context.Background(), job))

	// Only the paid opt-out was refunded and cancelled.
	assert.Equal(t, []string{"pi_alice"}, provider.refundedIntents())

	ticket101, _ := inv.GetTicket(context.Background(), 101)
	assert.Equal(t, models.StatusCancelled, ticket101.Status)
	ticket102, _ := inv.GetTicket(context.Background(), 102)
	assert.Equal(t, models.StatusSold, ticket102.Status)
	ticket103, _ := inv.GetTicket(context.Background(), 103)
	assert.Equal(t, models.StatusReserved, ticket103.Status)

	saga, err := store.GetBookingSaga(context.Background(), 7001)
	require.NoError(t, err)
	assert.Equal(t, models.SagaCompleted, saga.State)
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, provider, store, inv := newReconcileFixture()
	job := seedGracePeriodLapsed(inv, store)

	require.NoError(t, svc.Reconcile(context.Background(), job))
	require.NoError(t, svc.Reconcile(context.Background(), job))

	// The second run found the ticket already cancelled and refunded nothing.
	assert.Equal(t, []string{"pi_alice"}, provider.refundedIntents())
}

func TestReconcileRefundFailureIsIsolated(t *testing.T) {
	svc, provider, store, inv := newReconcileFixture()
	inv.Seed(models.Ticket{TicketID: 201, EventID: 42, SeatNumber: "B1", Price: decimal.NewFromInt(50),
		Status: models.StatusSold, UserID: 1, PaymentIntentID: "pi_fail", Preference: models.PreferenceRefund})
	inv.Seed(models.Ticket{TicketID: 202, EventID: 42, SeatNumber: "B2", Price: decimal.NewFromInt(50),
		Status: models.StatusSold, UserID: 2, PaymentIntentID: "pi_ok", Preference: models.PreferenceRefund})
	store.SaveBookingSaga(context.Background(), &models.BookingSaga{ReservationID: 8001})
	provider.failRefundsFor["pi_fail"] = true

	job := ReconcileJob{ReservationID: 8001, TicketIDs: []int64{201, 202}}
	require.NoError(t, svc.Reconcile(context.Background(), job))

	// The failed refund kept its ticket sold so a later run can retry it.
	ticket201, _ := inv.GetTicket(context.Background(), 201)
	assert.Equal(t, models.StatusSold, ticket201.Status)
	ticket202, _ := inv.GetTicket(context.Background(), 202)
	assert.Equal(t, models.StatusCancelled, ticket202.Status)

	saga, err := store.GetBookingSaga(context.Background(), 8001)
	require.NoError(t, err)
	assert.Equal(t, models.SagaPartiallyFailed, saga.State)
}

func TestTickRunsDueJobs(t *testing.T) {
	svc, provider, store, inv := newReconcileFixture()
	job := seedGracePeriodLapsed(inv, store)
	require.NoError(t, store.ScheduleReconciliation(context.Background(), job, time.Now().Add(-time.Second)))

	svc.tick(context.Background())

	assert.Equal(t, []string{"pi_alice"}, provider.refundedIntents())
	jobs, _ := store.ClaimDueReconciliations(context.Background(), time.Now())
	assert.Empty(t, jobs)
}

func TestTickReleasesExpiredTransfers(t *testing.T) {
	svc, _, store, inv := newReconcileFixture()
	inv.Seed(models.Ticket{TicketID: 301, EventID: 42, SeatNumber: "D4", Price: decimal.NewFromInt(120),
		Status: models.StatusTransferring, UserID: 10, PaymentIntentID: "pi_original"})
	store.SaveTransferSaga(context.Background(), &models.TransferSaga{
		TransferID: "tr-1",
		TicketID:   301,
		SellerID:   10,
		State:      models.SagaAwaitingPayment,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	})

	svc.tick(context.Background())

	ticket, err := inv.GetTicket(context.Background(), 301)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, ticket.Status)
	assert.Equal(t, int64(10), ticket.UserID)

	saga, err := store.GetTransferSaga(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.SagaFailed, saga.State)
	assert.Equal(t, "payment window expired", saga.LastError)
}

func TestTickLeavesFreshTransfersAlone(t *testing.T) {
	svc, _, store, inv := newReconcileFixture()
	inv.Seed(models.Ticket{TicketID: 302, EventID: 42, SeatNumber: "D5", Price: decimal.NewFromInt(120),
		Status: models.StatusTransferring, UserID: 10})
	store.SaveTransferSaga(context.Background(), &models.TransferSaga{
		TransferID: "tr-2",
		TicketID:   302,
		State:      models.SagaAwaitingPayment,
		CreatedAt:  time.Now(),
	})

	svc.tick(context.Background())

	ticket, err := inv.GetTicket(context.Background(), 302)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTransferring, ticket.Status)
}
