package utils

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker guards an outbound dependency. Closed passes requests
// through and counts failures; Open rejects immediately until the cooldown
// lapses; HalfOpen lets a limited number of probes through and closes again
// on the first success.
type CircuitBreaker struct {
	name          string
	maxHalfOpen   uint32
	window        time.Duration
	cooldown      time.Duration
	tripThreshold uint32

	mutex      sync.Mutex
	state      State
	failures   uint32
	probes     uint32
	generation uint64
	expiry     time.Time
}

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// NewCircuitBreaker returns a breaker tuned for the payment provider:
// trip after 5 consecutive failures, cool down for 30s, allow 3 probes
// while half open.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:          name,
		maxHalfOpen:   3,
		window:        60 * time.Second,
		cooldown:      30 * time.Second,
		tripThreshold: 5,
		state:         StateClosed,
	}
}

// Execute runs req through the breaker. A cancelled context counts as the
// caller's failure, not the dependency's, and is returned without touching
// the breaker state.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	result, err := req()
	cb.afterRequest(generation, err == nil)
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	cb.advance(now)

	switch cb.state {
	case StateOpen:
		return cb.generation, fmt.Errorf("%s: circuit breaker open", cb.name)
	case StateHalfOpen:
		if cb.probes >= cb.maxHalfOpen {
			return cb.generation, fmt.Errorf("%s: circuit breaker probing", cb.name)
		}
		cb.probes++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) afterRequest(generation uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	// The breaker moved on (tripped or reset) while this request was in
	// flight; its outcome belongs to the old generation.
	if generation != cb.generation {
		return
	}

	if success {
		if cb.state == StateHalfOpen {
			cb.reset(time.Now())
		} else {
			cb.failures = 0
		}
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.tripThreshold {
		cb.trip(time.Now())
	}
}

// advance applies time-based transitions: open -> half open after the
// cooldown, and a fresh failure window while closed.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.state = StateHalfOpen
			cb.probes = 0
			cb.generation++
		}
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.failures = 0
			cb.expiry = now.Add(cb.window)
			cb.generation++
		} else if cb.expiry.IsZero() {
			cb.expiry = now.Add(cb.window)
		}
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = StateOpen
	cb.expiry = now.Add(cb.cooldown)
	cb.failures = 0
	cb.probes = 0
	cb.generation++
}

func (cb *CircuitBreaker) reset(now time.Time) {
	cb.state = StateClosed
	cb.expiry = now.Add(cb.window)
	cb.failures = 0
	cb.probes = 0
	cb.generation++
}
