package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

// Client talks to the ticket-inventory service over HTTP. The service
// performs every status change as a conditional row update, which is what
// makes ticket status usable as the cross-saga concurrency guard.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// errorCodes maps the inventory service's machine-readable error codes to
// the sentinels the sagas branch on. The code field is part of the service
// contract; the human-readable message is free to change.
var errorCodes = map[string]error{
	"already_confirmed":  status.ErrAlreadyConfirmed,
	"already_cancelled":  status.ErrAlreadyCancelled,
	"ticket_not_found":   status.ErrTicketNotFound,
	"seat_conflict":      status.ErrSeatConflict,
	"invalid_transition": status.ErrInvalidTransition,
}

func (c *Client) GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	var tickets []models.Ticket
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/id/%d", ticketID), nil, &tickets)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, status.ErrTicketNotFound
	}
	return &tickets[0], nil
}

func (c *Client) GetTicketsByIds(ctx context.Context, ticketIDs []int64) ([]models.Ticket, error) {
	req := map[string]any{"ticket_ids": ticketIDs}
	var tickets []models.Ticket
	if err := c.do(ctx, http.MethodPost, "/tickets/query", req, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) ReserveTickets(ctx context.Context, eventID int64, seatNumbers []string, userID int64) (int64, []models.Ticket, error) {
	req := map[string]any{
		"event_id": eventID,
		"seats":    seatNumbers,
		"user_id":  userID,
	}
	var data struct {
		ReservationID int64           `json:"reservation_id"`
		Tickets       []models.Ticket `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodPost, "/tickets/reserve", req, &data); err != nil {
		return 0, nil, err
	}
	return data.ReservationID, data.Tickets, nil
}

func (c *Client) ConfirmSplit(ctx context.Context, ticketID, reservationID int64, paymentIntentID string, userID int64) error {
	req := map[string]any{
		"ticketId":        ticketID,
		"reservationId":   reservationID,
		"paymentIntentId": paymentIntentID,
		"userId":          userID,
	}
	return c.do(ctx, http.MethodPatch, "/tickets/confirm-split", req, nil)
}

func (c *Client) CancelTicketsForEvent(ctx context.Context, eventID int64) ([]models.CancellationRecord, error) {
	var data struct {
		Cancellations []models.CancellationRecord `json:"cancellations"`
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tickets/%d/cancel", eventID), nil, &data); err != nil {
		return nil, err
	}
	return data.Cancellations, nil
}

func (c *Client) CancelTickets(ctx context.Context, ticketIDs []int64) error {
	req := map[string]any{"ticket_ids": ticketIDs}
	return c.do(ctx, http.MethodPatch, "/tickets/cancel", req, nil)
}

func (c *Client) TransferOwnership(ctx context.Context, ticketID, sellerID, buyerID int64, paymentIntentID string) error {
	req := map[string]any{
		"ticket_id":         ticketID,
		"current_user_id":   sellerID,
		"new_user_id":       buyerID,
		"payment_intent_id": paymentIntentID,
	}
	return c.do(ctx, http.MethodPatch, "/tickets/transfer", req, nil)
}

func (c *Client) MarkTransferring(ctx context.Context, ticketID int64) error {
	req := map[string]any{"ticket_id": ticketID}
	return c.do(ctx, http.MethodPatch, "/tickets/mark-transferring", req, nil)
}

func (c *Client) ReleaseTransferring(ctx context.Context, ticketID int64) error {
	req := map[string]any{"ticket_id": ticketID}
	return c.do(ctx, http.MethodPatch, "/tickets/release-transferring", req, nil)
}

func (c *Client) UpdatePreference(ctx context.Context, ticketID int64, pref models.Preference) error {
	req := map[string]any{
		"ticketId":   ticketID,
		"preference": string(pref),
	}
	return c.do(ctx, http.MethodPatch, "/tickets/preference", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if decodeErr := json.Unmarshal(raw, &env); decodeErr != nil {
		if resp.StatusCode == http.StatusOK {
			return fmt.Errorf("inventory %s %s: decode: %w", method, path, decodeErr)
		}
		env = envelope{}
	}

	// An error code wins over the transport status, on every status.
	if sentinel, ok := errorCodes[env.Code]; ok {
		return fmt.Errorf("inventory %s %s: %s: %w", method, path, env.Message, sentinel)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return status.ErrTicketNotFound
	case http.StatusConflict:
		return status.ErrSeatConflict
	default:
		return fmt.Errorf("inventory %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if env.Status != "success" {
		return fmt.Errorf("inventory %s %s: %s", method, path, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
