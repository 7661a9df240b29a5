// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	// AllowedOrigins are trusted for state-changing requests besides the
	// console's own origin.
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool
}

// layers lists the middleware outermost first. Recovery and request IDs
// always run; the CSRF check is always last so it sees a logged request.
func (c StackConfig) layers() []func(http.Handler) http.Handler {
	ls := []func(http.Handler) http.Handler{Recoverer, RequestID}
	if c.EnableSecurityHeaders {
		ls = append(ls, SecurityHeaders(c.CSP))
	}
	if c.EnableMetrics {
		ls = append(ls, Metrics())
	}
	if c.TracingService != "" {
		ls = append(ls, OTelHTTP(c.TracingService))
	}
	if c.EnableLogging {
		ls = append(ls, xglog.Middleware())
	}
	return append(ls, CSRFProtection(c.AllowedOrigins))
}

// NewRouter returns a chi router with the stack for cfg installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cfg.layers()...)
	return r
}
