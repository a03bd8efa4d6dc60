package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/services/notify"
	"eventgo-saga/internal/services/payment"
	"eventgo-saga/internal/status"
	"eventgo-saga/models"
	"eventgo-saga/monitoring"
)

// leaderSentinel marks the leading participant of a party booking: the
// caller appends it to the leader's email. The leader's payment link is
// returned synchronously; everyone else gets theirs by notification.
const leaderSentinel = ";"

// UserDirectory is the batched profile lookup the sagas need.
type UserDirectory interface {
	GetUsersByIds(ctx context.Context, ids []int64) ([]models.User, error)
}

// EventDirectory is the slice of the events service the sagas need.
type EventDirectory interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	MarkCancelled(ctx context.Context, eventID int64) error
}

type BookingItem struct {
	UserEmail string          `json:"user_email"`
	UserID    int64           `json:"user_id"`
	TicketID  int64           `json:"ticket_id"`
	Price     decimal.Decimal `json:"price"`
}

type PartyBookingRequest struct {
	ReservationID int64         `json:"reservation_id"`
	EventID       int64         `json:"event_id"`
	Items         []BookingItem `json:"items"`
}

// BookingService orchestrates the split-payment booking saga: one payment
// link per participant, leader redirected synchronously, deferred
// reconciliation scheduled for participants who never pay.
type BookingService struct {
	provider    payment.Provider
	inventory   inventory.Inventory
	publisher   notify.Publisher
	realtime    notify.Realtime
	store       SagaRepository
	currency    string
	redirectURL string
	gracePeriod time.Duration
}

func NewBookingService(
	provider payment.Provider,
	inv inventory.Inventory,
	publisher notify.Publisher,
	realtime notify.Realtime,
	store SagaRepository,
	currency, redirectURL string,
	gracePeriod time.Duration,
) *BookingService {
	return &BookingService{
		provider:    provider,
		inventory:   inv,
		publisher:   publisher,
		realtime:    realtime,
		store:       store,
		currency:    currency,
		redirectURL: redirectURL,
		gracePeriod: gracePeriod,
	}
}

// InitiateBooking creates one payment link per participant and returns the
// leader's URL. If any link cannot be created the whole call fails and no
// participant is notified: partial link batches are never issued silently.
func (s *BookingService) InitiateBooking(ctx context.Context, req *PartyBookingRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", status.ErrNoParticipants
	}

	participants := make([]models.Participant, len(req.Items))
	leaderIdx := -1
	for i, item := range req.Items {
		email := item.UserEmail
		leader := strings.HasSuffix(email, leaderSentinel)
		if leader {
			email = strings.TrimSuffix(email, leaderSentinel)
			leaderIdx = i
		}
		participants[i] = models.Participant{
			UserID:   item.UserID,
			Email:    email,
			TicketID: item.TicketID,
			Amount:   item.Price,
			Leader:   leader,
		}
	}
	if leaderIdx < 0 {
		return "", status.ErrNoLeader
	}

	// One link per participant, created concurrently; the batch fails as a
	// whole if any single link fails.
	links := make([]*payment.Link, len(participants))
	errs := make([]error, len(participants))
	var wg sync.WaitGroup
	for i := range participants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := participants[i]
			links[i], errs[i] = s.provider.CreatePaymentLink(ctx, &payment.LinkRequest{
				AmountCents: p.Amount.Shift(2).IntPart(),
				Currency:    s.currency,
				Description: fmt.Sprintf("Party booking - reservation %d, ticket %d", req.ReservationID, p.TicketID),
				Email:       p.Email,
				RedirectURL: s.redirectURL,
				Metadata: map[string]string{
					payment.MetadataEventKind: string(payment.KindPartyBooking),
					"reservation_id":          strconv.FormatInt(req.ReservationID, 10),
					"ticket_id":               strconv.FormatInt(p.TicketID, 10),
					"user_id":                 strconv.FormatInt(p.UserID, 10),
					"participant_email":       p.Email,
				},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			monitoring.TrackPaymentLink(string(payment.KindPartyBooking), "error")
			return "", fmt.Errorf("payment link for %s: %w", participants[i].Email, err)
		}
	}

	var leaderURL string
	for i := range participants {
		participants[i].LinkURL = links[i].URL
		monitoring.TrackPaymentLink(string(payment.KindPartyBooking), "created")

		if i == leaderIdx {
			leaderURL = links[i].URL
			continue
		}

		// Non-leader links go out by mail; a publish failure must not fail
		// the booking.
		amount := decimal.NewFromInt(links[i].AmountCents).Shift(-2)
		err := s.publisher.Publish(ctx, models.Notification{
			Subject: "Payment Link",
			Message: fmt.Sprintf(
				"Please complete your payment using this link: %s. Amount: $%s",
				links[i].URL, amount.StringFixed(2),
			),
			RecipientEmail: participants[i].Email,
			Type:           models.NotifyPaymentLink,
		})
		if err != nil {
			log.Printf("booking: payment link notification for %s failed: %v", participants[i].Email, err)
			monitoring.TrackNotification(string(models.NotifyPaymentLink), "error")
		} else {
			monitoring.TrackNotification(string(models.NotifyPaymentLink), "published")
		}
	}

	saga := &models.BookingSaga{
		ReservationID: req.ReservationID,
		EventID:       req.EventID,
		State:         models.SagaAwaitingPayment,
		Participants:  participants,
		CreatedAt:     time.Now(),
	}
	if err := s.store.SaveBookingSaga(ctx, saga); err != nil {
		return "", err
	}

	job := ReconcileJob{ReservationID: req.ReservationID, TicketIDs: saga.TicketIDs()}
	if err := s.store.ScheduleReconciliation(ctx, job, time.Now().Add(s.gracePeriod)); err != nil {
		return "", err
	}

	log.Printf("booking: initiated reservation %d with %d participants, reconcile in %s",
		req.ReservationID, len(participants), s.gracePeriod)
	return leaderURL, nil
}

// OnCheckoutCompleted handles the provider's checkout.session.completed
// webhook for a party booking. The provider redelivers webhooks, so the
// confirmation must be a no-op when the ticket is already sold with this
// payment reference; the inventory state is the source of truth, not a
// local processed-event flag.
func (s *BookingService) OnCheckoutCompleted(ctx context.Context, session *payment.CheckoutSession) error {
	reservationID, err := metadataInt(session.Metadata, "reservation_id")
	if err != nil {
		return err
	}
	ticketID, err := metadataInt(session.Metadata, "ticket_id")
	if err != nil {
		return err
	}
	userID, err := metadataInt(session.Metadata, "user_id")
	if err != nil {
		return err
	}
	email := session.Metadata["participant_email"]

	err = s.inventory.ConfirmSplit(ctx, ticketID, reservationID, session.PaymentIntentID, userID)
	if errors.Is(err, status.ErrAlreadyConfirmed) {
		log.Printf("booking: replayed webhook for ticket %d (reservation %d), already confirmed", ticketID, reservationID)
		monitoring.TrackWebhookEvent(payment.EventCheckoutCompleted, "replay")
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm ticket %d for reservation %d: %w", ticketID, reservationID, err)
	}

	notifyErr := s.publisher.Publish(ctx, models.Notification{
		Subject: "Payment Completed",
		Message: fmt.Sprintf(
			"Your payment %s has been completed for reservation %d.",
			session.PaymentIntentID, reservationID,
		),
		RecipientEmail: email,
		Type:           models.NotifyPaymentConfirmation,
	})
	if notifyErr != nil {
		log.Printf("booking: confirmation notification for %s failed: %v", email, notifyErr)
	}

	s.realtime.PushToUser(userID, map[string]any{
		"type":           "payment_success",
		"reservation_id": reservationID,
		"ticket_id":      ticketID,
	})

	s.markParticipantConfirmed(ctx, reservationID)
	return nil
}

// markParticipantConfirmed advances the persisted saga. Confirmation flags
// are re-derived from the inventory rather than toggled in place, so two
// webhook deliveries racing on the same saga record cannot overwrite each
// other's progress. The confirmation itself is already durable in the
// inventory, so a failed lookup or save here is logged, not returned.
func (s *BookingService) markParticipantConfirmed(ctx context.Context, reservationID int64) {
	saga, err := s.store.GetBookingSaga(ctx, reservationID)
	if err != nil {
		log.Printf("booking: saga lookup for reservation %d failed: %v", reservationID, err)
		return
	}

	tickets, err := s.inventory.GetTicketsByIds(ctx, saga.TicketIDs())
	if err != nil {
		log.Printf("booking: ticket lookup for reservation %d failed: %v", reservationID, err)
		return
	}
	sold := make(map[int64]bool, len(tickets))
	for _, t := range tickets {
		if t.Status == models.StatusSold && t.PaymentIntentID != "" {
			sold[t.TicketID] = true
		}
	}

	allConfirmed := true
	for i := range saga.Participants {
		if sold[saga.Participants[i].TicketID] {
			saga.Participants[i].Confirmed = true
		}
		if !saga.Participants[i].Confirmed {
			allConfirmed = false
		}
	}
	if allConfirmed {
		saga.State = models.SagaCompleted
	}

	if err := s.store.SaveBookingSaga(ctx, saga); err != nil {
		log.Printf("booking: saga update for reservation %d failed: %v", reservationID, err)
	}
}

func metadataInt(metadata map[string]string, key string) (int64, error) {
	raw, ok := metadata[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", status.ErrMissingMetadata, key)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", status.ErrMissingMetadata, key, raw)
	}
	return value, nil
}
