// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path means
// defaults plus environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, possibly empty.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv()

	cfg.Version = l.version
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	// Server
	cfg.Server.Listen = l.envString("JOSCAN_LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = l.envDuration("JOSCAN_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("JOSCAN_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("JOSCAN_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimit = l.envInt("JOSCAN_HTTP_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.AllowedOrigins = l.envList("JOSCAN_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.SessionCookie = l.envString("JOSCAN_SESSION_COOKIE", cfg.Server.SessionCookie)
	cfg.Server.SecureCookies = l.envBool("JOSCAN_SECURE_COOKIES", cfg.Server.SecureCookies)
	cfg.Server.TLS.Cert = l.envString("JOSCAN_TLS_CERT", cfg.Server.TLS.Cert)
	cfg.Server.TLS.Key = l.envString("JOSCAN_TLS_KEY", cfg.Server.TLS.Key)
	cfg.Server.TLS.SelfSigned = l.envBool("JOSCAN_TLS_SELF_SIGNED", cfg.Server.TLS.SelfSigned)
	cfg.Server.TLS.Hosts = l.envList("JOSCAN_TLS_HOSTS", cfg.Server.TLS.Hosts)
	cfg.Server.OpsToken = l.envString("JOSCAN_OPS_TOKEN", cfg.Server.OpsToken)

	// Backend
	cfg.Backend.BaseURL = l.envString("JOSCAN_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = l.envDuration("JOSCAN_BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.RateLimit = l.envFloat("JOSCAN_BACKEND_RATE_LIMIT", cfg.Backend.RateLimit)
	cfg.Backend.RateBurst = l.envInt("JOSCAN_BACKEND_RATE_BURST", cfg.Backend.RateBurst)
	cfg.Backend.BreakerThreshold = l.envInt("JOSCAN_BREAKER_THRESHOLD", cfg.Backend.BreakerThreshold)
	cfg.Backend.BreakerReset = l.envDuration("JOSCAN_BREAKER_RESET", cfg.Backend.BreakerReset)
	cfg.Backend.ForwardCookies = l.envList("JOSCAN_FORWARD_COOKIES", cfg.Backend.ForwardCookies)

	// Scan
	cfg.Scan.RequireComposite = l.envBool("JOSCAN_REQUIRE_COMPOSITE", cfg.Scan.RequireComposite)
	cfg.Scan.Debounce = l.envDuration("JOSCAN_SCAN_DEBOUNCE", cfg.Scan.Debounce)
	cfg.Scan.SessionTTL = l.envDuration("JOSCAN_SESSION_TTL", cfg.Scan.SessionTTL)
	cfg.Scan.Timezone = l.envString("JOSCAN_TIMEZONE", cfg.Scan.Timezone)

	// Journal
	cfg.Journal.Path = l.envString("JOSCAN_JOURNAL_PATH", cfg.Journal.Path)
	cfg.Journal.Retention = l.envDuration("JOSCAN_JOURNAL_RETENTION", cfg.Journal.Retention)
	cfg.Journal.StatsTTL = l.envDuration("JOSCAN_STATS_TTL", cfg.Journal.StatsTTL)
	cfg.Journal.HistoryLimit = l.envInt("JOSCAN_HISTORY_LIMIT", cfg.Journal.HistoryLimit)
	cfg.Journal.VerifyOnStart = l.envBool("JOSCAN_JOURNAL_VERIFY", cfg.Journal.VerifyOnStart)

	// Cache
	cfg.Cache.Backend = strings.ToLower(l.envString("JOSCAN_CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.Redis.Addr = l.envString("JOSCAN_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("JOSCAN_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt("JOSCAN_REDIS_DB", cfg.Cache.Redis.DB)

	// Telemetry
	cfg.Telemetry.Enabled = l.envBool("JOSCAN_TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("JOSCAN_OTLP_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("JOSCAN_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("JOSCAN_TRACING_SAMPLE_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("JOSCAN_ENVIRONMENT", cfg.Telemetry.Environment)

	cfg.Log.Level = strings.ToLower(l.envString("JOSCAN_LOG_LEVEL", cfg.Log.Level))
}

// warnUnknownEnv flags JOSCAN_* variables nothing consumed, usually typos.
func (l *Loader) warnUnknownEnv() {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return
	}
	slices.Sort(unknown)
	logger := xglog.WithComponent("config")
	logger.Warn().
		Str("event", "config.unknown_env").
		Strs("keys", unknown).
		Msg("ignoring unknown environment variables")
}
