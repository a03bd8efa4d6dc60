package status

import "errors"

var (
	ErrTicketNotFound    = errors.New("inventory: ticket not found")
	ErrSeatConflict      = errors.New("inventory: seat not in expected state")
	ErrInvalidTransition = errors.New("inventory: illegal status transition")
	ErrAlreadyConfirmed  = errors.New("inventory: ticket already confirmed for this payment")
	ErrAlreadyCancelled  = errors.New("inventory: ticket already cancelled")
	ErrSagaNotFound      = errors.New("saga: state not found for correlation id")
	ErrNoParticipants    = errors.New("booking: no participants in request")
	ErrNoLeader          = errors.New("booking: no leader participant designated")
	ErrMissingMetadata   = errors.New("webhook: required metadata missing")
	ErrUnknownEventKind  = errors.New("webhook: unknown event kind")
	ErrBadSignature      = errors.New("webhook: signature verification failed")
)
