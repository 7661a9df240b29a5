// SPDX-License-Identifier: MIT

// Package audit writes security-relevant events to a dedicated log stream,
// separate from operational logs: who did what to which resource, and with
// what result. Ticket outcomes are audited by the scan journal instead.
package audit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventConfigReload      EventType = "config.reload"
	EventConfigReloadError EventType = "config.reload.error"

	EventAuthDenied EventType = "auth.denied"

	EventAPIForbidden EventType = "api.forbidden"
	EventAPIRateLimit EventType = "api.ratelimit"
)

// Results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Actor      string // remote address, "signal", "watcher" or "system"
	Action     string
	Resource   string
	Result     string
	RemoteAddr string
	UserAgent  string
	RequestID  string
	Details    map[string]string
}

// Logger writes audit events.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger returns an audit logger on the global log configuration.
func NewLogger() *Logger {
	return New(xglog.WithComponent("audit"))
}

// New returns an audit logger writing through base.
func New(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Log writes e. A zero timestamp is set to now.
func (l *Logger) Log(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	ev := l.logger.Info().
		Time("timestamp", e.Timestamp).
		Str("event_type", string(e.Type)).
		Str("actor", e.Actor).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("result", e.Result)
	if e.RemoteAddr != "" {
		ev.Str("remote_addr", e.RemoteAddr)
	}
	if e.UserAgent != "" {
		ev.Str("user_agent", e.UserAgent)
	}
	if e.RequestID != "" {
		ev.Str(xglog.FieldRequestID, e.RequestID)
	}
	for k, v := range e.Details {
		ev.Str(k, v)
	}
	ev.Msg("audit event")
}

// LogRequest fills the request metadata of e from r, then logs it.
func (l *Logger) LogRequest(r *http.Request, e Event) {
	if r != nil {
		if e.RemoteAddr == "" {
			e.RemoteAddr = r.RemoteAddr
		}
		if e.Actor == "" {
			e.Actor = e.RemoteAddr
		}
		if e.UserAgent == "" {
			e.UserAgent = r.UserAgent()
		}
		if e.RequestID == "" {
			e.RequestID = xglog.RequestIDFromContext(r.Context())
		}
		if e.Resource == "" {
			e.Resource = r.Method + " " + r.URL.Path
		}
	}
	l.Log(e)
}

// ConfigReload records a configuration reload and its outcome.
func (l *Logger) ConfigReload(actor string, err error, details map[string]string) {
	e := Event{
		Type:     EventConfigReload,
		Actor:    actor,
		Action:   "reload configuration",
		Resource: "config",
		Result:   ResultSuccess,
		Details:  details,
	}
	if err != nil {
		e.Type = EventConfigReloadError
		e.Result = ResultFailure
		if e.Details == nil {
			e.Details = map[string]string{}
		}
		e.Details["error"] = err.Error()
	}
	l.Log(e)
}

// AuthDenied records a request to a guarded endpoint without a valid token.
func (l *Logger) AuthDenied(r *http.Request, reason string) {
	l.LogRequest(r, Event{
		Type:    EventAuthDenied,
		Action:  "access ops endpoint",
		Result:  ResultDenied,
		Details: map[string]string{"reason": reason},
	})
}

// Forbidden records a state-changing request refused by the origin check.
func (l *Logger) Forbidden(r *http.Request, reason string) {
	l.LogRequest(r, Event{
		Type:    EventAPIForbidden,
		Action:  "submit scan",
		Result:  ResultDenied,
		Details: map[string]string{"reason": reason},
	})
}

// RateLimited records a request rejected by the rate limiter.
func (l *Logger) RateLimited(r *http.Request) {
	l.LogRequest(r, Event{
		Type:   EventAPIRateLimit,
		Action: "submit scan",
		Result: ResultDenied,
	})
}
