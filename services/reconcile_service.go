package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/services/notify"
	"eventgo-saga/internal/services/payment"
	"eventgo-saga/models"
	"eventgo-saga/monitoring"
)

// ReconcileService settles bookings whose grace period has lapsed: tickets
// that were paid for but whose owner asked for a refund are refunded and
// cancelled. It also releases transfer locks whose payment window expired.
type ReconcileService struct {
	provider     payment.Provider
	inventory    inventory.Inventory
	publisher    notify.Publisher
	store        SagaRepository
	pollInterval time.Duration
	transferTTL  time.Duration
}

func NewReconcileService(
	provider payment.Provider,
	inv inventory.Inventory,
	publisher notify.Publisher,
	store SagaRepository,
	pollInterval, transferTTL time.Duration,
) *ReconcileService {
	return &ReconcileService{
		provider:     provider,
		inventory:    inv,
		publisher:    publisher,
		store:        store,
		pollInterval: pollInterval,
		transferTTL:  transferTTL,
	}
}

// Run polls the durable schedule until ctx is cancelled. Jobs are claimed
// from redis, so a restart between scheduling and execution loses nothing
// and multiple instances never run the same job twice.
func (s *ReconcileService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	log.Printf("reconciler: polling every %s", s.pollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("reconciler: stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ReconcileService) tick(ctx context.Context) {
	now := time.Now()

	jobs, err := s.store.ClaimDueReconciliations(ctx, now)
	if err != nil {
		log.Printf("reconciler: claiming due jobs: %v", err)
	}
	for _, job := range jobs {
		if err := s.Reconcile(ctx, job); err != nil {
			log.Printf("reconciler: reservation %d: %v", job.ReservationID, err)
		}
	}

	s.releaseExpiredTransfers(ctx, now)

	if pending, err := s.store.PendingReconciliations(ctx); err == nil {
		monitoring.SetPendingReconciliations(float64(pending))
	}
}

// ReconcileAfter puts a booking's ticket set on the durable schedule. The
// poll loop picks it up once the delay lapses.
func (s *ReconcileService) ReconcileAfter(ctx context.Context, reservationID int64, ticketIDs []int64, delay time.Duration) error {
	job := ReconcileJob{ReservationID: reservationID, TicketIDs: ticketIDs}
	return s.store.ScheduleReconciliation(ctx, job, time.Now().Add(delay))
}

// Reconcile settles one booking's ticket set. Refunds are attempted per
// ticket so one provider failure does not block the rest; only successfully
// refunded tickets are cancelled. Re-running the job is safe: already
// cancelled tickets no longer match the sold filter.
func (s *ReconcileService) Reconcile(ctx context.Context, job ReconcileJob) error {
	tickets, err := s.inventory.GetTicketsByIds(ctx, job.TicketIDs)
	if err != nil {
		monitoring.TrackReconcileRun("error")
		return fmt.Errorf("load tickets: %w", err)
	}

	var toCancel []int64
	failures := 0
	for _, ticket := range tickets {
		if ticket.Status != models.StatusSold || ticket.Preference != models.PreferenceRefund {
			continue
		}
		if ticket.PaymentIntentID == "" {
			log.Printf("reconciler: ticket %d marked refund but has no payment reference", ticket.TicketID)
			continue
		}

		_, err := s.provider.Refund(ctx, ticket.PaymentIntentID, 0, "requested_by_customer")
		if err != nil {
			log.Printf("reconciler: refund for ticket %d (payment %s) failed: %v",
				ticket.TicketID, ticket.PaymentIntentID, err)
			monitoring.TrackRefund("reconciliation", "error")
			failures++
			continue
		}
		monitoring.TrackRefund("reconciliation", "refunded")
		toCancel = append(toCancel, ticket.TicketID)
	}

	if len(toCancel) > 0 {
		if err := s.inventory.CancelTickets(ctx, toCancel); err != nil {
			monitoring.TrackReconcileRun("error")
			return fmt.Errorf("cancel refunded tickets: %w", err)
		}
	}

	s.finishBookingSaga(ctx, job.ReservationID, failures)

	if failures > 0 {
		monitoring.TrackReconcileRun("partial")
	} else {
		monitoring.TrackReconcileRun("ok")
	}
	log.Printf("reconciler: reservation %d settled, %d refunded and cancelled, %d refund failures",
		job.ReservationID, len(toCancel), failures)
	return nil
}

func (s *ReconcileService) finishBookingSaga(ctx context.Context, reservationID int64, failures int) {
	saga, err := s.store.GetBookingSaga(ctx, reservationID)
	if err != nil {
		log.Printf("reconciler: saga lookup for reservation %d failed: %v", reservationID, err)
		return
	}
	if failures > 0 {
		saga.State = models.SagaPartiallyFailed
	} else {
		saga.State = models.SagaCompleted
	}
	if err := s.store.SaveBookingSaga(ctx, saga); err != nil {
		log.Printf("reconciler: saga update for reservation %d failed: %v", reservationID, err)
	}
}

// releaseExpiredTransfers unlocks tickets whose transfer never saw its
// payment webhook within the TTL, returning them to the seller as sold.
func (s *ReconcileService) releaseExpiredTransfers(ctx context.Context, now time.Time) {
	ids, err := s.store.ExpiredPendingTransfers(ctx, now, s.transferTTL)
	if err != nil {
		log.Printf("reconciler: listing expired transfers: %v", err)
		return
	}

	for _, transferID := range ids {
		saga, err := s.store.GetTransferSaga(ctx, transferID)
		if err != nil {
			log.Printf("reconciler: loading expired transfer %s: %v", transferID, err)
			continue
		}

		if err := s.inventory.ReleaseTransferring(ctx, saga.TicketID); err != nil {
			log.Printf("reconciler: releasing ticket %d for expired transfer %s: %v",
				saga.TicketID, transferID, err)
			continue
		}

		saga.State = models.SagaFailed
		saga.LastError = "payment window expired"
		if err := s.store.SaveTransferSaga(ctx, saga); err != nil {
			log.Printf("reconciler: persisting expired transfer %s: %v", transferID, err)
			continue
		}
		log.Printf("reconciler: transfer %s expired after %s, ticket %d released",
			transferID, s.transferTTL, saga.TicketID)
	}
}
