package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/services/notify"
	"eventgo-saga/internal/services/payment"
	"eventgo-saga/internal/status"
	"eventgo-saga/models"
	"eventgo-saga/monitoring"
)

// CancellationService runs the event cancellation saga: mark the event
// cancelled, bulk-cancel its tickets, then refund each purchase group.
type CancellationService struct {
	provider  payment.Provider
	inventory inventory.Inventory
	events    EventDirectory
	users     UserDirectory
	publisher notify.Publisher
}

func NewCancellationService(
	provider payment.Provider,
	inv inventory.Inventory,
	events EventDirectory,
	users UserDirectory,
	publisher notify.Publisher,
) *CancellationService {
	return &CancellationService{
		provider:  provider,
		inventory: inv,
		events:    events,
		users:     users,
		publisher: publisher,
	}
}

// refundGroup is one payment intent's worth of cancelled tickets. A party
// booking produces one group per participant because each participant paid
// through their own link.
type refundGroup struct {
	paymentIntentID string
	userID          int64
	amount          decimal.Decimal
	ticketIDs       []int64
}

// CancelEvent cancels the event and refunds every paid ticket, grouped by
// payment intent. Refund groups run concurrently and independently: one
// group's failure is recorded in its outcome and never aborts the siblings.
func (s *CancellationService) CancelEvent(ctx context.Context, eventID int64) ([]models.RefundOutcome, error) {
	err := s.events.MarkCancelled(ctx, eventID)
	if errors.Is(err, status.ErrAlreadyCancelled) {
		// A re-run after a crash mid-saga. The ticket cancellation and
		// refunds below are idempotent, so keep going.
		log.Printf("cancellation: event %d already cancelled, resuming refunds", eventID)
	} else if err != nil {
		return nil, fmt.Errorf("mark event %d cancelled: %w", eventID, err)
	}

	records, err := s.inventory.CancelTicketsForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("cancel tickets for event %d: %w", eventID, err)
	}
	log.Printf("cancellation: event %d cancelled, %d tickets affected", eventID, len(records))

	groups := groupByPaymentIntent(records)
	if len(groups) == 0 {
		return []models.RefundOutcome{}, nil
	}

	users, err := s.lookupUsers(ctx, groups)
	if err != nil {
		return nil, err
	}

	outcomes := make([]models.RefundOutcome, len(groups))
	var wg sync.WaitGroup
	for i, group := range groups {
		user, ok := users[group.userID]
		if !ok {
			// No profile means no refund destination to report and no email
			// address. The tickets are already cancelled; flag and move on.
			log.Printf("cancellation: no user profile for user %d (payment %s), skipping refund",
				group.userID, group.paymentIntentID)
			outcomes[i] = models.RefundOutcome{
				UserID:          group.userID,
				PaymentIntentID: group.paymentIntentID,
				RefundStatus:    "error: user profile not found",
				TicketIDs:       group.ticketIDs,
			}
			continue
		}

		wg.Add(1)
		go func(i int, group refundGroup, user models.User) {
			defer wg.Done()
			outcomes[i] = s.refundGroup(ctx, eventID, group, user)
		}(i, group, user)
	}
	wg.Wait()

	return outcomes, nil
}

// refundGroup refunds one payment intent in full and notifies its owner.
func (s *CancellationService) refundGroup(ctx context.Context, eventID int64, group refundGroup, user models.User) models.RefundOutcome {
	outcome := models.RefundOutcome{
		UserID:          group.userID,
		Email:           user.Email,
		PaymentIntentID: group.paymentIntentID,
		TicketIDs:       group.ticketIDs,
	}

	result, err := s.provider.Refund(ctx, group.paymentIntentID, 0, "event_cancelled")
	if err != nil {
		log.Printf("cancellation: refund for payment %s failed: %v", group.paymentIntentID, err)
		monitoring.TrackRefund("event_cancellation", "error")
		outcome.RefundStatus = fmt.Sprintf("error: %v", err)
		return outcome
	}
	monitoring.TrackRefund("event_cancellation", "refunded")
	outcome.RefundStatus = result.Status
	outcome.RefundedAmount = group.amount

	err = s.publisher.Publish(ctx, models.Notification{
		Subject: "Event Cancelled - Refund Issued",
		Message: fmt.Sprintf(
			"Event %d has been cancelled. A refund of $%s for your %d ticket(s) has been issued to your original payment method. "+
				"Refunds typically take 5-10 business days to appear.\n\nEventGo Customer Support",
			eventID, group.amount.StringFixed(2), len(group.ticketIDs),
		),
		RecipientEmail: user.Email,
		Type:           models.NotifyEventCancellation,
	})
	if err != nil {
		log.Printf("cancellation: notification for %s failed: %v", user.Email, err)
		monitoring.TrackNotification(string(models.NotifyEventCancellation), "error")
	} else {
		monitoring.TrackNotification(string(models.NotifyEventCancellation), "published")
	}

	return outcome
}

func (s *CancellationService) lookupUsers(ctx context.Context, groups []refundGroup) (map[int64]models.User, error) {
	ids := make([]int64, 0, len(groups))
	seen := make(map[int64]bool)
	for _, g := range groups {
		if !seen[g.userID] {
			seen[g.userID] = true
			ids = append(ids, g.userID)
		}
	}

	users, err := s.users.GetUsersByIds(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("look up %d users: %w", len(ids), err)
	}

	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// groupByPaymentIntent buckets cancellation records by payment intent and
// sums their prices. Records without a payment reference were never paid for
// and are dropped: there is nothing to refund.
func groupByPaymentIntent(records []models.CancellationRecord) []refundGroup {
	byIntent := make(map[string]*refundGroup)
	for _, rec := range records {
		if rec.PaymentIntentID == "" {
			continue
		}
		group, ok := byIntent[rec.PaymentIntentID]
		if !ok {
			group = &refundGroup{
				paymentIntentID: rec.PaymentIntentID,
				userID:          rec.UserID,
				amount:          decimal.Zero,
			}
			byIntent[rec.PaymentIntentID] = group
		}
		group.amount = group.amount.Add(rec.Price)
		group.ticketIDs = append(group.ticketIDs, rec.TicketID)
	}

	groups := make([]refundGroup, 0, len(byIntent))
	for _, group := range byIntent {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].paymentIntentID < groups[j].paymentIntentID
	})
	return groups
}
