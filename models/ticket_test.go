package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to TicketStatus }{
		{StatusAvailable, StatusReserved},
		{StatusReserved, StatusSold},
		{StatusReserved, StatusAvailable},
		{StatusReserved, StatusCancelled},
		{StatusSold, StatusTransferring},
		{StatusSold, StatusCancelled},
		{StatusTransferring, StatusSold},
		{StatusTransferring, StatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to TicketStatus }{
		{StatusAvailable, StatusSold},
		{StatusAvailable, StatusTransferring},
		{StatusSold, StatusReserved},
		{StatusSold, StatusAvailable},
		{StatusCancelled, StatusAvailable},
		{StatusCancelled, StatusSold},
		{StatusTransferring, StatusReserved},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	for _, to := range []TicketStatus{StatusAvailable, StatusReserved, StatusSold, StatusTransferring, StatusCancelled} {
		assert.False(t, CanTransition(StatusCancelled, to))
	}
}

func TestParseTicketStatus(t *testing.T) {
	status, err := ParseTicketStatus("transferring")
	assert.NoError(t, err)
	assert.Equal(t, StatusTransferring, status)

	_, err = ParseTicketStatus("pending")
	assert.Error(t, err)

	_, err = ParseTicketStatus("")
	assert.Error(t, err)
}
