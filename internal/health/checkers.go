// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/resilience"
)

// PingChecker adapts any "ping" style probe (journal database, Redis) to a
// Checker. A failing optional component only degrades readiness.
type PingChecker struct {
	name     string
	ping     func(context.Context) error
	optional bool
}

// NewPingChecker reports unhealthy when ping fails.
func NewPingChecker(name string, ping func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// NewOptionalPingChecker reports degraded when ping fails.
func NewOptionalPingChecker(name string, ping func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: true}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// BreakerSource exposes the state of a circuit breaker guarding a dependency.
type BreakerSource interface {
	BreakerState() resilience.State
}

// BreakerChecker reflects the backend circuit breaker. The console keeps
// serving pages while the backend is down (every scan renders the network
// error), so an open breaker degrades readiness instead of failing it.
type BreakerChecker struct {
	name   string
	source BreakerSource
}

// NewBreakerChecker creates a checker over source.
func NewBreakerChecker(name string, source BreakerSource) *BreakerChecker {
	return &BreakerChecker{name: name, source: source}
}

func (c *BreakerChecker) Name() string {
	return c.name
}

func (c *BreakerChecker) Check(_ context.Context) CheckResult {
	switch state := c.source.BreakerState(); state {
	case resilience.StateClosed:
		return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open, probing backend"}
	default:
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("circuit %s", state), Error: "backend unavailable"}
	}
}

// LastRunChecker checks that a periodic job (journal pruning) keeps running.
type LastRunChecker struct {
	name       string
	maxAge     time.Duration
	getLastRun func() (time.Time, string)
	now        func() time.Time
}

// NewLastRunChecker creates a checker for last job run status. Runs older
// than maxAge degrade readiness.
func NewLastRunChecker(name string, maxAge time.Duration, getLastRun func() (time.Time, string)) *LastRunChecker {
	return &LastRunChecker{
		name:       name,
		maxAge:     maxAge,
		getLastRun: getLastRun,
		now:        time.Now,
	}
}

func (c *LastRunChecker) Name() string {
	return c.name
}

func (c *LastRunChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.getLastRun()

	if lastRun.IsZero() {
		// The first run happens one interval after start.
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no run yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last run failed",
		}
	}

	if c.maxAge > 0 && c.now().Sub(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last successful run over %s ago", c.maxAge),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last run successful",
	}
}
