package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventgo-saga/internal/services/payment"
	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

// fakeProvider records link and refund calls and fails on demand.
type fakeProvider struct {
	mu sync.Mutex

	linkRequests []*payment.LinkRequest
	failLinksFor map[string]bool // keyed by email

	refunds        []string // payment intent ids
	failRefundsFor map[string]bool
	refundStatus   string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failLinksFor:   map[string]bool{},
		failRefundsFor: map[string]bool{},
		refundStatus:   "succeeded",
	}
}

func (f *fakeProvider) CreatePaymentLink(ctx context.Context, req *payment.LinkRequest) (*payment.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failLinksFor[req.Email] {
		return nil, errors.New("provider unavailable")
	}
	f.linkRequests = append(f.linkRequests, req)
	return &payment.Link{
		LinkID:      fmt.Sprintf("plink_%d", len(f.linkRequests)),
		URL:         fmt.Sprintf("https://pay.example/%s", req.Email),
		AmountCents: req.AmountCents,
	}, nil
}

func (f *fakeProvider) Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) (*payment.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRefundsFor[paymentIntentID] {
		return nil, errors.New("refund rejected")
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return &payment.RefundResult{
		RefundID:        fmt.Sprintf("re_%d", len(f.refunds)),
		PaymentIntentID: paymentIntentID,
		AmountCents:     amountCents,
		Status:          f.refundStatus,
	}, nil
}

func (f *fakeProvider) refundedIntents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refunds...)
}

// fakePublisher collects notifications; failAll makes every publish error.
type fakePublisher struct {
	mu       sync.Mutex
	sent     []models.Notification
	failAll  bool
	failType models.NotificationType
}

func (f *fakePublisher) Publish(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll || (f.failType != "" && n.Type == f.failType) {
		return errors.New("queue unavailable")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakePublisher) byType(t models.NotificationType) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Notification
	for _, n := range f.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// fakeRealtime records per-user pushes.
type fakeRealtime struct {
	mu     sync.Mutex
	pushes map[int64][]map[string]any
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{pushes: map[int64][]map[string]any{}}
}

func (f *fakeRealtime) PushToUser(userID int64, message map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[userID] = append(f.pushes[userID], message)
}

// fakeStore is an in-memory SagaRepository.
type fakeStore struct {
	mu                   sync.Mutex
	bookings             map[int64]*models.BookingSaga
	transfers            map[string]*models.TransferSaga
	scheduled            map[int64]time.Time // reservation id -> due
	jobs                 []ReconcileJob
	failNextTransferSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:  map[int64]*models.BookingSaga{},
		transfers: map[string]*models.TransferSaga{},
		scheduled: map[int64]time.Time{},
	}
}

func (f *fakeStore) SaveBookingSaga(ctx context.Context, saga *models.BookingSaga) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *saga
	copied.Participants = append([]models.Participant(nil), saga.Participants...)
	f.bookings[saga.ReservationID] = &copied
	return nil
}

func (f *fakeStore) GetBookingSaga(ctx context.Context, reservationID int64) (*models.BookingSaga, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	saga, ok := f.bookings[reservationID]
	if !ok {
		return nil, status.ErrSagaNotFound
	}
	copied := *saga
	copied.Participants = append([]models.Participant(nil), saga.Participants...)
	return &copied, nil
}

func (f *fakeStore) SaveTransferSaga(ctx context.Context, saga *models.TransferSaga) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextTransferSave {
		f.failNextTransferSave = false
		return errors.New("redis unavailable")
	}
	copied := *saga
	f.transfers[saga.TransferID] = &copied
	return nil
}

func (f *fakeStore) GetTransferSaga(ctx context.Context, transferID string) (*models.TransferSaga, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	saga, ok := f.transfers[transferID]
	if !ok {
		return nil, status.ErrSagaNotFound
	}
	copied := *saga
	return &copied, nil
}

func (f *fakeStore) ExpiredPendingTransfers(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, saga := range f.transfers {
		if saga.State == models.SagaAwaitingPayment && now.Sub(saga.CreatedAt) > ttl {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) ScheduleReconciliation(ctx context.Context, job ReconcileJob, due time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[job.ReservationID] = due
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeStore) ClaimDueReconciliations(ctx context.Context, now time.Time) ([]ReconcileJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []ReconcileJob
	var remaining []ReconcileJob
	for _, job := range f.jobs {
		if !f.scheduled[job.ReservationID].After(now) {
			due = append(due, job)
		} else {
			remaining = append(remaining, job)
		}
	}
	f.jobs = remaining
	return due, nil
}

func (f *fakeStore) PendingReconciliations(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.jobs)), nil
}

// fakeUsers resolves profiles from a fixed map.
type fakeUsers struct {
	users map[int64]models.User
	err   error
}

func (f *fakeUsers) GetUsersByIds(ctx context.Context, ids []int64) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// fakeEvents serves one event and records cancellations.
type fakeEvents struct {
	event     *models.Event
	cancelled []int64
	cancelErr error
}

func (f *fakeEvents) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	if f.event == nil {
		return nil, errors.New("event not found")
	}
	copied := *f.event
	return &copied, nil
}

func (f *fakeEvents) MarkCancelled(ctx context.Context, eventID int64) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, eventID)
	return nil
}
