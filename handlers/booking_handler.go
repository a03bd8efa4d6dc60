package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventgo-saga/internal/status"
	"eventgo-saga/services"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// InitiatePartyBooking - Create split payment links for a group booking
func (h *BookingHandler) InitiatePartyBooking(e *core.RequestEvent) error {
	var req services.PartyBookingRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	leaderURL, err := h.bookingService.InitiateBooking(e.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrNoParticipants):
			return apis.NewBadRequestError("Booking has no participants", err)
		case errors.Is(err, status.ErrNoLeader):
			return apis.NewBadRequestError("Booking has no leading participant", err)
		}
		return apis.NewInternalServerError("Failed to initiate party booking", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"reservation_id": req.ReservationID,
		"payment_url":    leaderURL,
	})
}
