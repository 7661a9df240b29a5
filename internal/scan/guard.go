// SPDX-License-Identifier: MIT

package scan

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDebounce is how long an identical decoded QR payload is ignored.
const DefaultDebounce = 3 * time.Second

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Guard is the per-console session guard: a single-flight flag for backend
// calls plus the camera debounce memory. At most one Do body runs at a time;
// concurrent attempts are dropped, never queued.
type Guard struct {
	busy atomic.Bool

	mu        sync.Mutex
	window    time.Duration
	lastToken string
	lastAt    time.Time
	clock     clock
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock injects the time source used by the camera debounce.
func WithClock(c clock) GuardOption {
	return func(g *Guard) { g.clock = c }
}

// WithDebounce overrides DefaultDebounce. Non-positive values keep the default.
func WithDebounce(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// NewGuard returns an idle guard.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		window: DefaultDebounce,
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn if the guard is idle and reports whether it ran. The guard
// returns to idle when fn returns or panics.
func (g *Guard) Do(fn func()) bool {
	if !g.busy.CompareAndSwap(false, true) {
		return false
	}
	defer g.busy.Store(false)
	fn()
	return true
}

// Busy reports whether a call is in flight.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// AcceptDecoded applies the camera debounce. A payload equal to the previous
// accepted one is rejected until the debounce window has elapsed since that
// acceptance.
func (g *Guard) AcceptDecoded(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if token == g.lastToken && !g.lastAt.IsZero() && now.Sub(g.lastAt) < g.window {
		return false
	}
	g.lastToken = token
	g.lastAt = now
	return true
}

// ForgetLastToken clears the debounce memory so the next detection of the
// same code is submitted.
func (g *Guard) ForgetLastToken() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastToken = ""
	g.lastAt = time.Time{}
}

// LastToken returns the last accepted decoded payload.
func (g *Guard) LastToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastToken
}
