// SPDX-License-Identifier: MIT

package console

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/cache"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/metrics"
)

// Factory builds the console for a new session.
type Factory func(sessionID string) *Console

// Registry owns one Console per operator session. A console is created on
// first Acquire and lives until its session has been idle for the TTL.
type Registry struct {
	mu       sync.Mutex
	consoles cache.Cache
	ttl      time.Duration
	build    Factory
	logger   zerolog.Logger
}

// NewRegistry starts a registry whose idle consoles expire after ttl.
func NewRegistry(ttl time.Duration, build Factory) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	r := &Registry{
		ttl:    ttl,
		build:  build,
		logger: xglog.WithComponent("console"),
	}
	interval := min(ttl/4, time.Minute)
	consoles := cache.NewMemoryCache(interval, cache.WithEvictFunc(r.evicted))
	r.mu.Lock()
	r.consoles = consoles
	r.mu.Unlock()
	return r
}

// Acquire returns the console of sessionID, creating it exactly once, and
// extends its lifetime.
func (r *Registry) Acquire(sessionID string) *Console {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.consoles.Get(sessionID); ok {
		c := v.(*Console)
		r.consoles.Set(sessionID, c, r.ttl)
		return c
	}

	c := r.build(sessionID)
	r.consoles.Set(sessionID, c, r.ttl)
	r.publish()
	r.logger.Debug().
		Str(xglog.FieldEvent, "console.created").
		Str(xglog.FieldSessionID, sessionID).
		Msg("scan console created")
	return c
}

// Lookup returns the console of sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*Console, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.consoles.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Console), true
}

// Release forgets the console of sessionID.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consoles.Delete(sessionID)
	r.publish()
}

// Len returns the number of held consoles, including expired ones the
// janitor has not swept yet.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consoles.Stats().CurrentSize
}

// Close stops the expiry janitor and drops every console.
func (r *Registry) Close() error {
	r.mu.Lock()
	consoles := r.consoles
	r.mu.Unlock()

	// Not under r.mu: Close waits for the janitor, which may be blocked in
	// evicted on that lock.
	err := consoles.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.consoles.Clear()
	r.publish()
	return err
}

// evicted runs on the janitor goroutine, outside the cache lock.
func (r *Registry) evicted(sessionID string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publish()
	r.logger.Debug().
		Str(xglog.FieldEvent, "console.expired").
		Str(xglog.FieldSessionID, sessionID).
		Msg("idle scan console expired")
}

// publish must be called with r.mu held.
func (r *Registry) publish() {
	metrics.SetConsolesActive(r.consoles.Stats().CurrentSize)
}
