package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/services/notify"
	"eventgo-saga/internal/services/payment"
	"eventgo-saga/internal/status"
	"eventgo-saga/models"
	"eventgo-saga/monitoring"
)

type TransferRequest struct {
	TicketID   int64  `json:"ticket_id"`
	BuyerID    int64  `json:"buyer_id"`
	BuyerEmail string `json:"buyer_email"`
}

// TransferService runs the ticket transfer saga. Phase one locks the ticket
// in transferring and hands the buyer a payment link; phase two, driven by
// the checkout webhook, swaps the owner and payment reference atomically.
// The seller is paid out by a separate settlement process, not refunded
// inline here.
type TransferService struct {
	provider    payment.Provider
	inventory   inventory.Inventory
	events      EventDirectory
	users       UserDirectory
	publisher   notify.Publisher
	realtime    notify.Realtime
	store       SagaRepository
	currency    string
	redirectURL string
}

func NewTransferService(
	provider payment.Provider,
	inv inventory.Inventory,
	events EventDirectory,
	users UserDirectory,
	publisher notify.Publisher,
	realtime notify.Realtime,
	store SagaRepository,
	currency, redirectURL string,
) *TransferService {
	return &TransferService{
		provider:    provider,
		inventory:   inv,
		events:      events,
		users:       users,
		publisher:   publisher,
		realtime:    realtime,
		store:       store,
		currency:    currency,
		redirectURL: redirectURL,
	}
}

// GenerateTransferLink locks the ticket and returns the buyer's payment
// link. The transferring lock is released immediately if the link cannot be
// created, so a provider outage does not strand the seller's ticket.
func (s *TransferService) GenerateTransferLink(ctx context.Context, req *TransferRequest) (string, error) {
	ticket, err := s.inventory.GetTicket(ctx, req.TicketID)
	if err != nil {
		return "", fmt.Errorf("look up ticket %d: %w", req.TicketID, err)
	}
	sellerID := ticket.UserID
	amountCents := ticket.Price.Shift(2).IntPart()

	sellers, err := s.users.GetUsersByIds(ctx, []int64{sellerID})
	if err != nil || len(sellers) == 0 {
		return "", fmt.Errorf("look up seller %d: %w", sellerID, err)
	}
	seller := sellers[0]

	if err := s.inventory.MarkTransferring(ctx, req.TicketID); err != nil {
		return "", fmt.Errorf("lock ticket %d for transfer: %w", req.TicketID, err)
	}

	transferID := uuid.NewString()
	link, err := s.provider.CreatePaymentLink(ctx, &payment.LinkRequest{
		AmountCents: amountCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("Ticket transfer - seat %s", ticket.SeatNumber),
		Email:       req.BuyerEmail,
		RedirectURL: s.redirectURL,
		Metadata: map[string]string{
			payment.MetadataEventKind: string(payment.KindTicketTransfer),
			"transfer_id":             transferID,
			"ticket_id":               strconv.FormatInt(req.TicketID, 10),
			"event_id":                strconv.FormatInt(ticket.EventID, 10),
			"seller_id":               strconv.FormatInt(sellerID, 10),
			"buyer_id":                strconv.FormatInt(req.BuyerID, 10),
			"amount_in_cents":         strconv.FormatInt(amountCents, 10),
		},
	})
	if err != nil {
		monitoring.TrackPaymentLink(string(payment.KindTicketTransfer), "error")
		if relErr := s.inventory.ReleaseTransferring(ctx, req.TicketID); relErr != nil {
			log.Printf("transfer: releasing ticket %d after link failure also failed: %v", req.TicketID, relErr)
		}
		return "", fmt.Errorf("payment link for transfer %s: %w", transferID, err)
	}
	monitoring.TrackPaymentLink(string(payment.KindTicketTransfer), "created")

	saga := &models.TransferSaga{
		TransferID:  transferID,
		TicketID:    req.TicketID,
		EventID:     ticket.EventID,
		SellerID:    sellerID,
		BuyerID:     req.BuyerID,
		SellerEmail: seller.Email,
		BuyerEmail:  req.BuyerEmail,
		AmountCents: amountCents,
		State:       models.SagaAwaitingPayment,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveTransferSaga(ctx, saga); err != nil {
		return "", err
	}

	s.notifyBuyerLink(ctx, ticket, saga, link.URL)

	log.Printf("transfer: %s initiated for ticket %d (seller %d -> buyer %d)",
		transferID, req.TicketID, sellerID, req.BuyerID)
	return link.URL, nil
}

func (s *TransferService) notifyBuyerLink(ctx context.Context, ticket *models.Ticket, saga *models.TransferSaga, linkURL string) {
	eventDetails := fmt.Sprintf("event %d", saga.EventID)
	if event, err := s.events.GetEvent(ctx, saga.EventID); err == nil {
		eventDetails = fmt.Sprintf("%s at %s on %s", event.Title, event.Venue, event.Date.Format("Mon, 2 Jan 2006"))
	}

	err := s.publisher.Publish(ctx, models.Notification{
		Subject: "Ticket Transfer Payment Link",
		Message: fmt.Sprintf(
			"A ticket for %s (seat %s) is being transferred to you. "+
				"Complete your payment of $%s using this link: %s\n\nEventGo Customer Support",
			eventDetails, ticket.SeatNumber, ticket.Price.StringFixed(2), linkURL,
		),
		RecipientEmail: saga.BuyerEmail,
		Type:           models.NotifyPaymentLink,
	})
	if err != nil {
		log.Printf("transfer: link notification for %s failed: %v", saga.BuyerEmail, err)
		monitoring.TrackNotification(string(models.NotifyPaymentLink), "error")
	} else {
		monitoring.TrackNotification(string(models.NotifyPaymentLink), "published")
	}
}

// OnCheckoutCompleted handles the buyer's completed checkout: ownership and
// payment reference move to the buyer in one conditional update. A failed
// handoff marks the saga failed with the error preserved, so the ticket is
// never silently left in transferring with the buyer's money taken.
func (s *TransferService) OnCheckoutCompleted(ctx context.Context, session *payment.CheckoutSession) error {
	transferID, ok := session.Metadata["transfer_id"]
	if !ok {
		return fmt.Errorf("%w: transfer_id", status.ErrMissingMetadata)
	}

	saga, err := s.store.GetTransferSaga(ctx, transferID)
	if err != nil {
		return fmt.Errorf("load transfer saga %s: %w", transferID, err)
	}

	// Replay detection rests on the inventory, not on the saga record: a
	// redelivery after a failed saga save must still read as done.
	err = s.inventory.TransferOwnership(ctx, saga.TicketID, saga.SellerID, saga.BuyerID, session.PaymentIntentID)
	if errors.Is(err, status.ErrAlreadyConfirmed) {
		log.Printf("transfer: replayed webhook for %s, ticket %d already with buyer", transferID, saga.TicketID)
		monitoring.TrackWebhookEvent(payment.EventCheckoutCompleted, "replay")
		if saga.State != models.SagaCompleted {
			saga.State = models.SagaCompleted
			saga.LastError = ""
			if saveErr := s.store.SaveTransferSaga(ctx, saga); saveErr != nil {
				log.Printf("transfer: persisting completed saga %s: %v", transferID, saveErr)
			}
		}
		return nil
	}
	if err != nil {
		saga.State = models.SagaFailed
		saga.LastError = err.Error()
		if saveErr := s.store.SaveTransferSaga(ctx, saga); saveErr != nil {
			log.Printf("transfer: persisting failed saga %s: %v", transferID, saveErr)
		}
		return fmt.Errorf("hand over ticket %d for transfer %s: %w", saga.TicketID, transferID, err)
	}

	amount := fmt.Sprintf("%.2f", float64(saga.AmountCents)/100)
	s.publishTransferNotice(ctx, saga.BuyerEmail, "Ticket Transfer Complete",
		fmt.Sprintf("Your payment of $%s was received and ticket %d is now yours. See you at the event!\n\nEventGo Customer Support",
			amount, saga.TicketID))
	s.publishTransferNotice(ctx, saga.SellerEmail, "Your Ticket Has Been Transferred",
		fmt.Sprintf("Ticket %d has been transferred to its new owner. Your payout of $%s will be settled to your account.\n\nEventGo Customer Support",
			saga.TicketID, amount))

	s.realtime.PushToUser(saga.BuyerID, map[string]any{
		"type":        "transfer_complete",
		"transfer_id": saga.TransferID,
		"ticket_id":   saga.TicketID,
	})

	saga.State = models.SagaCompleted
	saga.LastError = ""
	if err := s.store.SaveTransferSaga(ctx, saga); err != nil {
		log.Printf("transfer: persisting completed saga %s: %v", transferID, err)
	}
	log.Printf("transfer: %s completed, ticket %d now owned by user %d", transferID, saga.TicketID, saga.BuyerID)
	return nil
}

func (s *TransferService) publishTransferNotice(ctx context.Context, email, subject, message string) {
	err := s.publisher.Publish(ctx, models.Notification{
		Subject:        subject,
		Message:        message,
		RecipientEmail: email,
		Type:           models.NotifyTransferConfirmed,
	})
	if err != nil {
		log.Printf("transfer: notification for %s failed: %v", email, err)
		monitoring.TrackNotification(string(models.NotifyTransferConfirmed), "error")
	} else {
		monitoring.TrackNotification(string(models.NotifyTransferConfirmed), "published")
	}
}
