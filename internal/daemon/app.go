// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/audit"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// App runs everything around the HTTP server: the config watcher, live
// settings, SIGHUP reloads and the periodic jobs.
type App struct {
	logger  zerolog.Logger
	manager Manager
	holder  *config.ConfigHolder
	jobs    []*Job
	hup     os.Signal
}

// NewApp returns an App. holder may be nil, which disables reloads.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.ConfigHolder, jobs ...*Job) *App {
	return &App{logger: logger, manager: manager, holder: holder, jobs: jobs, hup: syscall.SIGHUP}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run blocks until ctx ends or the server fails. Every background loop
// stops with it.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		// A watcher that cannot start only costs automatic reloads.
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		updates := make(chan config.AppConfig, 1)
		a.holder.RegisterListener(updates)
		g.Go(func() error { a.followConfig(ctx, updates); return nil })
		if a.hup != nil {
			g.Go(func() error { a.reloadOnSignal(ctx); return nil })
		}
	}

	for _, job := range a.jobs {
		g.Go(func() error { job.Run(ctx); return nil })
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})
	return g.Wait()
}

func (a *App) followConfig(ctx context.Context, updates <-chan config.AppConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			a.applyLive(cfg)
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.hup)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
		}
		a.logger.Info().
			Str(xglog.FieldEvent, "config.reload_signal").
			Str("signal", a.hup.String()).
			Msg("reloading configuration")
		err := a.holder.Reload(context.WithoutCancel(ctx))
		audit.NewLogger().ConfigReload("signal", err, nil)
		if err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
		}
	}
}

// applyLive applies the settings that need no restart. Consoles read the
// composite requirement from the holder on every submit, so only the log
// level is left.
func (a *App) applyLive(cfg config.AppConfig) {
	if xglog.SetLevel(cfg.Log.Level) {
		a.logger.Info().
			Str(xglog.FieldEvent, "log.level_applied").
			Str("level", cfg.Log.Level).
			Msg("log level applied from configuration")
	}
}
