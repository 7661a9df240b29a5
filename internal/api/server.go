// SPDX-License-Identifier: MIT

// Package api serves the admin scan console over HTTP: the scan page, its
// result fragments, the camera endpoint, the scan history and the ops
// endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/api/middleware"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/auth"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/console"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/health"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
)

// Route paths.
const (
	PathScan     = render.DefaultScanAction
	PathSearch   = render.DefaultSearchAction
	PathValidate = render.DefaultValidateAction
	PathHistory  = render.DefaultHistoryAction
	PathCamera   = "/admin/scan/camera"
	PathStats    = "/admin/scan/stats"
	PathHealth   = "/healthz"
	PathReady    = "/readyz"
	PathMetrics  = "/metrics"
)

// ConfigSource yields the live configuration. *config.ConfigHolder
// implements it.
type ConfigSource interface {
	Get() config.AppConfig
}

// History is the read side of the scan journal. *journal.Store implements
// it.
type History interface {
	Recent(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
	Stats(ctx context.Context, window time.Duration) (journal.Stats, error)
}

// Deps are the collaborators of the server. Health may be nil.
type Deps struct {
	Config   ConfigSource
	Consoles *console.Registry
	Renderer *render.Renderer
	History  History
	Health   *health.Manager
	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// Server is the HTTP front of the scan console.
type Server struct {
	cfg      ConfigSource
	consoles *console.Registry
	renderer *render.Renderer
	history  History
	health   *health.Manager
	metrics  http.Handler
}

// New validates deps and builds a server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config source is required")
	case deps.Consoles == nil:
		return nil, errors.New("api: console registry is required")
	case deps.Renderer == nil:
		return nil, errors.New("api: renderer is required")
	case deps.History == nil:
		return nil, errors.New("api: history store is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Config.Get().Version)
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	return &Server{
		cfg:      deps.Config,
		consoles: deps.Consoles,
		renderer: deps.Renderer,
		history:  deps.History,
		health:   deps.Health,
		metrics:  deps.Metrics,
	}, nil
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
// Middleware options are read once; changing them needs a restart.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	cfg := s.cfg.Get()

	stack := middleware.StackConfig{
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		EnableLogging:         true,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(stack)

	r.Get(PathHealth, verboseNeedsToken(cfg.Server.OpsToken, s.health.ServeHealth))
	r.Get(PathReady, verboseNeedsToken(cfg.Server.OpsToken, s.health.ServeReady))
	r.With(auth.RequireToken(cfg.Server.OpsToken)).Method(http.MethodGet, PathMetrics, s.metrics)

	r.Route(PathScan, func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Get("/", s.withConsole(s.handlePage))
		r.Get("/history", s.handleHistory)
		statsCORS := middleware.CORS(cfg.Server.AllowedOrigins)
		r.With(statsCORS).Get("/stats", s.handleStats)
		// Preflight is answered by the CORS middleware.
		r.With(statsCORS).Options("/stats", func(http.ResponseWriter, *http.Request) {})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ScanRateLimit(cfg.Server.RateLimit))
			r.Post("/search", s.withConsole(s.handleSearch))
			r.Post("/validate", s.withConsole(s.handleValidate))
			r.Post("/camera", s.withConsole(s.handleCamera))
		})
	})

	return r
}

// verboseNeedsToken lets anyone probe liveness but keeps the per-check
// detail behind the ops token.
func verboseNeedsToken(token string, next http.HandlerFunc) http.HandlerFunc {
	guarded := auth.RequireToken(token)(next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("verbose") == "true" {
			guarded.ServeHTTP(w, r)
			return
		}
		next(w, r)
	}
}

// NewHTTPServer wraps handler with the configured timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          xglog.StdLogger("http"),
	}
}
