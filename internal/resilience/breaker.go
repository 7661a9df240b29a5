// SPDX-License-Identifier: MIT

// Package resilience protects callers from a failing dependency.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is a breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned by Execute while calls are being refused.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// TransitionFunc observes state changes. It runs with the breaker locked
// and must not call back into it.
type TransitionFunc func(name string, from, to State)

// CircuitBreaker refuses calls for a cooldown once threshold consecutive
// calls have failed. After the cooldown one probe call decides whether it
// closes again.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  TransitionFunc

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	probing  bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithTransitionFunc registers fn for state changes, the initial closed
// state included.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to 5 failures and 30 seconds.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     StateClosed,
	}
	if cb.threshold <= 0 {
		cb.threshold = defaultThreshold
	}
	if cb.cooldown <= 0 {
		cb.cooldown = defaultCooldown
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.onChange != nil {
		cb.onChange(cb.name, "", StateClosed)
	}
	return cb
}

// Execute calls fn unless the breaker refuses it. A returned error or a
// panic counts as a failure; the panic is re-raised.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}
	ok := false
	defer func() { cb.settle(ok) }()
	err := fn()
	ok = err == nil
	return err
}

// State returns the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.move(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probing {
			return false
		}
		cb.probing = true
	}
	return true
}

func (cb *CircuitBreaker) settle(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if ok {
		cb.streak = 0
		cb.move(StateClosed)
		return
	}
	cb.streak++
	if cb.state == StateHalfOpen || cb.streak >= cb.threshold {
		cb.openedAt = cb.now()
		cb.move(StateOpen)
	}
}

func (cb *CircuitBreaker) move(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}
