package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

type TicketHandler struct {
	inventory inventory.Inventory
}

func NewTicketHandler(inv inventory.Inventory) *TicketHandler {
	return &TicketHandler{inventory: inv}
}

// UpdatePreference - Record a participant's keep/refund choice
func (h *TicketHandler) UpdatePreference(e *core.RequestEvent) error {
	var req struct {
		TicketID   int64  `json:"ticket_id"`
		Preference string `json:"preference"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	pref := models.Preference(req.Preference)
	if pref != models.PreferenceKeep && pref != models.PreferenceRefund {
		return apis.NewBadRequestError("preference must be keep or refund", nil)
	}

	err := h.inventory.UpdatePreference(e.Request.Context(), req.TicketID, pref)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", err)
		}
		return apis.NewInternalServerError("Failed to update preference", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_id":  req.TicketID,
		"preference": string(pref),
	})
}
