package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventgo-saga/internal/services/payment"
	"eventgo-saga/internal/status"
	"eventgo-saga/monitoring"
	"eventgo-saga/services"
)

type WebhookHandler struct {
	bookingService  *services.BookingService
	transferService *services.TransferService
	webhookSecret   string
}

func NewWebhookHandler(
	bookingService *services.BookingService,
	transferService *services.TransferService,
	webhookSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		bookingService:  bookingService,
		transferService: transferService,
		webhookSecret:   webhookSecret,
	}
}

// HandleStripeWebhook - Receive and dispatch provider webhook events.
//
// Internal failures are logged and acknowledged with 200 anyway: a non-2xx
// makes the provider redeliver, and redelivery cannot fix a bug on our side.
// Only a bad signature is rejected, since that payload cannot be trusted.
func (h *WebhookHandler) HandleStripeWebhook(e *core.RequestEvent) error {
	payload, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Unreadable payload", err)
	}

	sigHeader := e.Request.Header.Get("Stripe-Signature")
	if err := payment.VerifySignature(payload, sigHeader, h.webhookSecret); err != nil {
		monitoring.TrackWebhookEvent("unknown", "bad_signature")
		return apis.NewBadRequestError("Invalid signature", err)
	}

	event, err := payment.ParseWebhookEvent(payload)
	if err != nil {
		log.Printf("webhook: undecodable payload: %v", err)
		monitoring.TrackWebhookEvent("unknown", "bad_payload")
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	h.dispatch(e, event)
	return e.JSON(http.StatusOK, map[string]any{"received": true})
}

func (h *WebhookHandler) dispatch(e *core.RequestEvent, event *payment.WebhookEvent) {
	ctx := e.Request.Context()

	switch event.Type {
	case payment.EventCheckoutCompleted:
		session, err := event.Session()
		if err != nil {
			log.Printf("webhook: %s: %v", event.Type, err)
			monitoring.TrackWebhookEvent(event.Type, "bad_payload")
			return
		}

		kind, err := session.Kind()
		if err != nil {
			log.Printf("webhook: %s session %s: %v", event.Type, session.SessionID, err)
			monitoring.TrackWebhookEvent(event.Type, "unknown_kind")
			return
		}

		switch kind {
		case payment.KindPartyBooking:
			err = h.bookingService.OnCheckoutCompleted(ctx, session)
		case payment.KindTicketTransfer:
			err = h.transferService.OnCheckoutCompleted(ctx, session)
		}
		if err != nil {
			log.Printf("webhook: %s (%s): %v", event.Type, kind, err)
			monitoring.TrackWebhookEvent(event.Type, "error")
			return
		}
		monitoring.TrackWebhookEvent(event.Type, "ok")

	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
		// Informational only. Checkout completion is the event that moves
		// sagas forward.
		monitoring.TrackWebhookEvent(event.Type, "ignored")

	default:
		monitoring.TrackWebhookEvent(event.Type, "ignored")
	}
}

// SimulateCheckout - Inject a checkout.session.completed event (for testing)
//
// Only wired up in development: it bypasses signature verification and lets
// the saga flows be exercised without a live provider.
func (h *WebhookHandler) SimulateCheckout(e *core.RequestEvent) error {
	var req struct {
		PaymentIntentID string            `json:"payment_intent"`
		Metadata        map[string]string `json:"metadata"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session := &payment.CheckoutSession{
		SessionID:       "cs_simulated",
		PaymentIntentID: req.PaymentIntentID,
		Metadata:        req.Metadata,
	}

	kind, err := session.Kind()
	if err != nil {
		if errors.Is(err, status.ErrMissingMetadata) || errors.Is(err, status.ErrUnknownEventKind) {
			return apis.NewBadRequestError("Missing or unknown event_kind metadata", err)
		}
		return apis.NewBadRequestError("Invalid metadata", err)
	}

	ctx := e.Request.Context()
	switch kind {
	case payment.KindPartyBooking:
		err = h.bookingService.OnCheckoutCompleted(ctx, session)
	case payment.KindTicketTransfer:
		err = h.transferService.OnCheckoutCompleted(ctx, session)
	}
	if err != nil {
		return apis.NewInternalServerError("Simulated checkout failed", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Checkout simulation processed"})
}
