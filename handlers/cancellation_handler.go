package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventgo-saga/services"
)

type CancellationHandler struct {
	cancellationService *services.CancellationService
}

func NewCancellationHandler(cancellationService *services.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancellationService: cancellationService}
}

// CancelEvent - Cancel an event and refund all paid tickets
func (h *CancellationHandler) CancelEvent(e *core.RequestEvent) error {
	eventID, err := strconv.ParseInt(e.Request.PathValue("eventId"), 10, 64)
	if err != nil {
		return apis.NewBadRequestError("Invalid event id", err)
	}

	outcomes, err := h.cancellationService.CancelEvent(e.Request.Context(), eventID)
	if err != nil {
		return apis.NewInternalServerError("Failed to cancel event", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"refunds":  outcomes,
	})
}
