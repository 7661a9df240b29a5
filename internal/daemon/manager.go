// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/api"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingHandler    = errors.New("daemon: HTTP handler is required")
	ErrMissingManager    = errors.New("daemon: manager is required")
	ErrManagerNotStarted = errors.New("daemon: manager not started")

	// ErrJournalCorrupt is returned when the start-up integrity check finds issues.
	ErrJournalCorrupt = errors.New("journal integrity check failed")
)

// failureShutdownTimeout bounds the shutdown that follows a serve error.
const failureShutdownTimeout = 30 * time.Second

// Deps are what a Manager needs besides its server settings.
type Deps struct {
	Logger  zerolog.Logger
	Handler http.Handler
}

func (d Deps) check() error {
	var errs []error
	if d.Logger.GetLevel() == zerolog.Disabled {
		errs = append(errs, ErrMissingLogger)
	}
	if d.Handler == nil {
		errs = append(errs, ErrMissingHandler)
	}
	return errors.Join(errs...)
}

// ShutdownHook releases a resource. Hooks run last-registered first, after
// the HTTP server has drained.
type ShutdownHook func(ctx context.Context) error

// Manager runs the HTTP server and the shutdown sequence.
type Manager interface {
	// Start binds, serves and blocks until ctx ends or serving fails.
	Start(ctx context.Context) error
	// Shutdown drains the server and runs the hooks. Only the first call
	// does any work.
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr is the bound listen address, empty before Start.
	Addr() string
}

type hookEntry struct {
	name string
	fn   ShutdownHook
}

type manager struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	state    managerState
	srv      *http.Server
	addr     string
	hookList []hookEntry
}

type managerState int

const (
	stateIdle managerState = iota
	stateRunning
	stateStopping
)

// NewManager validates deps and returns a Manager for cfg.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.check(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:     cfg,
		handler: deps.Handler,
		logger:  deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: start context is nil")
	}
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return errors.New("daemon: manager already started")
	}
	m.state = stateRunning
	m.mu.Unlock()

	ln, err := net.Listen("tcp", m.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	srv := api.NewHTTPServer(m.cfg, m.handler)
	m.mu.Lock()
	m.srv = srv
	m.addr = ln.Addr().String()
	m.mu.Unlock()

	m.logger.Info().
		Str(xglog.FieldEvent, "api.server.listening").
		Str("addr", ln.Addr().String()).
		Bool("tls", m.cfg.TLS.Enabled()).
		Dur("read_timeout", m.cfg.ReadTimeout).
		Dur("write_timeout", m.cfg.WriteTimeout).
		Msg("API server listening")

	serveErr := make(chan error, 1)
	go func() {
		if err := m.serve(srv, ln); err != nil {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		m.logger.Error().Err(err).Str(xglog.FieldEvent, "api.server.failed").Msg("API server failed, shutting down")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureShutdownTimeout)
		defer cancel()
		return errors.Join(err, m.Shutdown(stopCtx))
	case <-ctx.Done():
		m.logger.Info().Str(xglog.FieldEvent, "daemon.stopping").Msg("shutdown requested")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureShutdownTimeout)
		defer cancel()
		return m.Shutdown(stopCtx)
	}
}

// serve blocks until srv stops. A clean close returns nil.
func (m *manager) serve(srv *http.Server, ln net.Listener) error {
	var err error
	if m.cfg.TLS.Enabled() {
		err = srv.ServeTLS(ln, m.cfg.TLS.Cert, m.cfg.TLS.Key)
	} else {
		err = srv.Serve(ln)
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("API server: %w", err)
}

func (m *manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("daemon: shutdown context is nil")
	}
	m.mu.Lock()
	switch m.state {
	case stateIdle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case stateStopping:
		m.mu.Unlock()
		return nil
	}
	m.state = stateStopping
	srv := m.srv
	hooks := append([]hookEntry(nil), m.hookList...)
	m.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}
	errs = append(errs, m.runHooks(stopCtx, hooks)...)

	if len(errs) > 0 {
		m.logger.Error().Int("error_count", len(errs)).Str(xglog.FieldEvent, "daemon.stopped").Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}

func (m *manager) runHooks(ctx context.Context, hooks []hookEntry) []error {
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		err := h.fn(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook finished")
	}
	return errs
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hookList = append(m.hookList, hookEntry{name: name, fn: hook})
}
