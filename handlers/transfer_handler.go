package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventgo-saga/internal/status"
	"eventgo-saga/services"
)

type TransferHandler struct {
	transferService *services.TransferService
}

func NewTransferHandler(transferService *services.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// GenerateTransferPaymentLink - Lock a ticket and create the buyer's payment link
func (h *TransferHandler) GenerateTransferPaymentLink(e *core.RequestEvent) error {
	var req services.TransferRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketID == 0 || req.BuyerID == 0 || req.BuyerEmail == "" {
		return apis.NewBadRequestError("ticket_id, buyer_id and buyer_email are required", nil)
	}

	linkURL, err := h.transferService.GenerateTransferLink(e.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrTicketNotFound):
			return apis.NewNotFoundError("Ticket not found", err)
		case errors.Is(err, status.ErrInvalidTransition):
			return apis.NewBadRequestError("Ticket is not eligible for transfer", err)
		}
		return apis.NewInternalServerError("Failed to generate transfer payment link", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_id":   req.TicketID,
		"payment_url": linkURL,
	})
}
