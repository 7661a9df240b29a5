// SPDX-License-Identifier: MIT

// Package daemon wires the scan console together and runs it: configuration,
// stores, the backend gateway, the HTTP server and the periodic jobs.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/api"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/backend"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/cache"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/console"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/health"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/persistence/sqlite"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/telemetry"
	xgtls "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/tls"
)

// statsCacheSweep is how often the in-memory stats cache drops expired
// entries.
const statsCacheSweep = time.Minute

// cleanup collects closers for resources built so far, so a failed
// bootstrap releases them and a successful one hands them to the manager.
type cleanup struct {
	names []string
	hooks []ShutdownHook
}

func (c *cleanup) add(name string, hook ShutdownHook) {
	c.names = append(c.names, name)
	c.hooks = append(c.hooks, hook)
}

func (c *cleanup) run(ctx context.Context) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		_ = c.hooks[i](ctx)
	}
}

func (c *cleanup) registerWith(m Manager) {
	for i := range c.hooks {
		m.RegisterShutdownHook(c.names[i], c.hooks[i])
	}
}

// Bootstrap builds the whole runtime from the holder's configuration. The
// returned App owns every resource; they are released when Run returns.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (_ *App, err error) {
	cfg := holder.Get()
	xglog.Configure(cfg.LogOptions())
	logger := xglog.WithComponent("daemon")

	logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrap").
		Str("version", cfg.Version).
		Str("listen", cfg.Server.Listen).
		Str("backend", config.MaskURL(cfg.Backend.BaseURL)).
		Msg("starting joscan")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	var closers cleanup
	defer func() {
		if err != nil {
			closers.run(context.Background())
		}
	}()
	closers.add("config-watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})

	tp, err := telemetry.NewProvider(ctx, cfg.TelemetryOptions())
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	} else {
		closers.add("telemetry", tp.Shutdown)
		if cfg.Telemetry.Enabled {
			logger.Info().
				Str("service", cfg.Telemetry.ServiceName).
				Str("endpoint", cfg.Telemetry.Endpoint).
				Float64("sampling_rate", cfg.Telemetry.SamplingRate).
				Msg("telemetry initialized")
		}
	}

	statsCache, redisCache, err := newStatsCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers.add("stats-cache", func(context.Context) error { return statsCache.Close() })

	if err := verifyJournal(ctx, cfg, logger); err != nil {
		return nil, err
	}
	store, err := journal.Open(ctx, cfg.Journal.Path, cfg.JournalOptions(statsCache))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	closers.add("journal", func(context.Context) error { return store.Close() })

	client, err := backend.NewClient(cfg.Backend.BaseURL, backend.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(render.Options{Location: cfg.Location()})
	if err != nil {
		return nil, err
	}

	registry := console.NewRegistry(cfg.Scan.SessionTTL, consoleFactory(holder, client, store, renderer))
	closers.add("consoles", func(context.Context) error { return registry.Close() })

	pruneJob := NewJob("journal_prune", cfg.Journal.PruneInterval, func(ctx context.Context) error {
		n, err := store.Prune(ctx)
		if err == nil && n > 0 {
			logger.Info().Str(xglog.FieldEvent, "journal.pruned").Int64("removed", n).Msg("pruned old scan journal entries")
		}
		return err
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("journal", store.Ping))
	hm.RegisterChecker(health.NewBreakerChecker("backend", client))
	if redisCache != nil {
		hm.RegisterChecker(health.NewOptionalPingChecker("redis", redisCache.HealthCheck))
	}
	if cfg.Journal.PruneInterval > 0 && cfg.Journal.Retention > 0 {
		hm.RegisterChecker(health.NewLastRunChecker(pruneJob.Name(), 3*cfg.Journal.PruneInterval, pruneJob.LastRun))
	}
	hm.RegisterDetail("consoles_active", func() any { return registry.Len() })

	srv, err := api.New(api.Deps{
		Config:   holder,
		Consoles: registry,
		Renderer: renderer,
		History:  store,
		Health:   hm,
	})
	if err != nil {
		return nil, err
	}

	serverCfg := cfg.Server
	if serverCfg.TLS.Enabled() {
		cert, key, err := xgtls.Ensure(xgtls.Config{
			CertPath:   serverCfg.TLS.Cert,
			KeyPath:    serverCfg.TLS.Key,
			SelfSigned: serverCfg.TLS.SelfSigned,
			Hosts:      serverCfg.TLS.Hosts,
			Logger:     xglog.WithComponent("tls"),
		})
		if err != nil {
			return nil, err
		}
		serverCfg.TLS.Cert, serverCfg.TLS.Key = cert, key
	}

	mgr, err := NewManager(serverCfg, Deps{Logger: logger, Handler: srv.Handler()})
	if err != nil {
		return nil, err
	}
	closers.registerWith(mgr)

	return NewApp(logger, mgr, holder, pruneJob), nil
}

// consoleFactory builds the console of a new operator session. Each console
// gets its own cookie jar on the shared client.
func consoleFactory(holder *config.ConfigHolder, client *backend.Client, store *journal.Store, renderer *render.Renderer) console.Factory {
	return func(sessionID string) *console.Console {
		cfg := holder.Get()
		return console.New(sessionID, client.WithJar(backend.NewJar()), console.Options{
			Journal:          store,
			Renderer:         renderer,
			RequireComposite: func() bool { return holder.Get().Scan.RequireComposite },
			GuardOptions:     []scan.GuardOption{scan.WithDebounce(cfg.Scan.Debounce)},
		})
	}
}

// newStatsCache returns the journal statistics cache and, when Redis backs
// it, the Redis handle for health checks.
func newStatsCache(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (cache.Cache, *cache.RedisCache, error) {
	if cfg.Cache.Backend != config.CacheRedis {
		return cache.NewMemoryCache(statsCacheSweep), nil, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisOptions(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("stats cache: %w", err)
	}
	return rc, rc, nil
}

// verifyJournal runs a quick integrity check on an existing journal when
// configured to.
func verifyJournal(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	if !cfg.Journal.VerifyOnStart {
		return nil
	}
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	issues, err := sqlite.VerifyIntegrity(ctx, cfg.Journal.Path, sqlite.VerifyQuick)
	if err != nil {
		return fmt.Errorf("verify journal: %w", err)
	}
	if len(issues) > 0 {
		logger.Error().
			Str(xglog.FieldEvent, "journal.corrupt").
			Strs("issues", issues).
			Msg("journal integrity check failed")
		return fmt.Errorf("%w: %s", ErrJournalCorrupt, issues[0])
	}
	logger.Info().Str(xglog.FieldEvent, "journal.verified").Msg("journal integrity verified")
	return nil
}

// WaitForShutdown returns a context cancelled on interrupt/termination signals.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
