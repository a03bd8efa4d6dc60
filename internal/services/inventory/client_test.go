package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventgo-saga/internal/status"
)

func stubInventory(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second)
}

func TestClientMapsErrorCodes(t *testing.T) {
	cases := []struct {
		code       string
		httpStatus int
		want       error
	}{
		{"already_confirmed", http.StatusConflict, status.ErrAlreadyConfirmed},
		{"seat_conflict", http.StatusConflict, status.ErrSeatConflict},
		{"invalid_transition", http.StatusBadRequest, status.ErrInvalidTransition},
		{"ticket_not_found", http.StatusNotFound, status.ErrTicketNotFound},
		{"already_cancelled", http.StatusConflict, status.ErrAlreadyCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c := stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.httpStatus)
				w.Write([]byte(`{"status":"error","code":"` + tc.code + `","message":"details vary"}`))
			})
			err := c.TransferOwnership(context.Background(), 301, 10, 20, "pi_buyer")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClientReplayCodeOnTransfer(t *testing.T) {
	c := stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tickets/transfer", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":"error","code":"already_confirmed","message":"ticket 301 already confirmed"}`))
	})

	err := c.TransferOwnership(context.Background(), 301, 10, 20, "pi_buyer")
	assert.ErrorIs(t, err, status.ErrAlreadyConfirmed)
}

func TestClientFallsBackToHTTPStatus(t *testing.T) {
	// Older inventory builds answer with a bare status code and no envelope.
	c := stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetTicket(context.Background(), 999)
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	c = stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("conflict"))
	})
	err = c.MarkTransferring(context.Background(), 301)
	assert.ErrorIs(t, err, status.ErrSeatConflict)
}

func TestClientUnknownCodeKeepsMessage(t *testing.T) {
	c := stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","code":"quota_exceeded","message":"too many reservations"}`))
	})

	err := c.CancelTickets(context.Background(), []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many reservations")
	assert.NotErrorIs(t, err, status.ErrSeatConflict)
}

func TestClientDecodesData(t *testing.T) {
	c := stubInventory(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tickets/query", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":[{"ticket_id":101,"status":"sold"},{"ticket_id":102,"status":"reserved"}]}`))
	})

	tickets, err := c.GetTicketsByIds(context.Background(), []int64{101, 102})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(101), tickets[0].TicketID)
}
