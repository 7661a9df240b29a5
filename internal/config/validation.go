// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/validate"
)

// Validate validates an AppConfig, reporting every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	// Server
	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.DurationRange("server.readTimeout", cfg.Server.ReadTimeout, time.Second, 5*time.Minute)
	v.DurationRange("server.writeTimeout", cfg.Server.WriteTimeout, time.Second, 5*time.Minute)
	v.DurationRange("server.shutdownTimeout", cfg.Server.ShutdownTimeout, time.Second, 5*time.Minute)
	v.NonNegative("server.rateLimit", cfg.Server.RateLimit)
	if name := strings.TrimSpace(cfg.Server.SessionCookie); name == "" {
		v.AddError("server.sessionCookie", "cookie name cannot be empty", name)
	} else if !validCookieName(name) {
		v.AddError("server.sessionCookie", "invalid cookie name", name)
	}
	for _, origin := range cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			v.AddError("server.allowedOrigins", "must be scheme://host[:port]", origin)
		}
	}

	if !cfg.Server.TLS.SelfSigned && (cfg.Server.TLS.Cert == "") != (cfg.Server.TLS.Key == "") {
		v.AddError("server.tls", "cert and key must be set together", nil)
	}
	if tok := cfg.Server.OpsToken; tok != "" && len(tok) < 16 {
		v.AddError("server.opsToken", "must be at least 16 characters", "***")
	}

	// Backend
	v.URL("backend.baseUrl", cfg.Backend.BaseURL, []string{"http", "https"})
	v.DurationRange("backend.timeout", cfg.Backend.Timeout, 100*time.Millisecond, 2*time.Minute)
	if cfg.Backend.RateLimit < 0 {
		v.AddError("backend.rateLimit", "value cannot be negative", cfg.Backend.RateLimit)
	}
	v.Range("backend.rateBurst", cfg.Backend.RateBurst, 1, 1000)
	v.Range("backend.breakerThreshold", cfg.Backend.BreakerThreshold, 1, 100)
	v.DurationRange("backend.breakerReset", cfg.Backend.BreakerReset, time.Second, 10*time.Minute)
	for _, name := range cfg.Backend.ForwardCookies {
		if !validCookieName(name) {
			v.AddError("backend.forwardCookies", "invalid cookie name", name)
		}
	}

	// Scan
	v.DurationRange("scan.debounce", cfg.Scan.Debounce, 0, time.Minute)
	v.DurationRange("scan.sessionTTL", cfg.Scan.SessionTTL, time.Minute, 7*24*time.Hour)
	v.Custom("scan.timezone", cfg.Scan.Timezone, func(val any) error {
		_, err := time.LoadLocation(val.(string))
		return err
	})

	// Journal
	v.FilePath("journal.path", cfg.Journal.Path)
	if cfg.Journal.Retention < 0 {
		v.AddError("journal.retention", "value cannot be negative", cfg.Journal.Retention.String())
	}
	v.DurationRange("journal.statsTTL", cfg.Journal.StatsTTL, 0, time.Hour)
	v.Range("journal.historyLimit", cfg.Journal.HistoryLimit, 1, 10000)
	if cfg.Journal.Retention > 0 {
		v.DurationRange("journal.pruneInterval", cfg.Journal.PruneInterval, time.Minute, 24*time.Hour)
	}

	// Cache
	v.OneOf("cache.backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis})
	if cfg.Cache.Backend == CacheRedis {
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
		v.Range("cache.redis.db", cfg.Cache.Redis.DB, 0, 15)
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate",
				fmt.Sprintf("value must be between 0.0 and 1.0, got %g", cfg.Telemetry.SamplingRate),
				cfg.Telemetry.SamplingRate)
		}
	}

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}

	return v.Err()
}

// validCookieName reports whether name survives net/http's cookie
// serialisation unchanged.
func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	c := &http.Cookie{Name: name, Value: "x"}
	return c.Valid() == nil
}
