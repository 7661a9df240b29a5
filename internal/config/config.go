// SPDX-License-Identifier: MIT

package config

import (
	"time"
	_ "time/tzdata" // display timezone must resolve on minimal images

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/cache"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/telemetry"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Scan      ScanConfig      `yaml:"scan"`
	Journal   JournalConfig   `yaml:"journal"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the operator-facing HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of scan requests per minute and client IP.
	// Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
	// AllowedOrigins are accepted on POST routes in addition to the
	// request's own host.
	AllowedOrigins []string  `yaml:"allowedOrigins"`
	SessionCookie  string    `yaml:"sessionCookie"`
	SecureCookies  bool      `yaml:"secureCookies"`
	TLS            TLSConfig `yaml:"tls"`
	// OpsToken, when set, is required as a bearer token on /metrics and
	// verbose health output.
	OpsToken string `yaml:"opsToken"`
}

// TLSConfig serves the console over HTTPS, which browsers require for
// camera access off localhost.
type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
	// SelfSigned generates (and renews) a certificate when none is usable.
	SelfSigned bool `yaml:"selfSigned"`
	// Hosts are extra names or IPs for the generated certificate.
	Hosts []string `yaml:"hosts"`
}

// Enabled reports whether the listener serves HTTPS.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || t.Cert != "" || t.Key != ""
}

// BackendConfig configures the ticketing REST backend.
type BackendConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
	UserAgent        string        `yaml:"userAgent"`
	// ForwardCookies names the operator cookies copied from the inbound
	// request into the console's jar.
	ForwardCookies []string `yaml:"forwardCookies"`
}

// ScanConfig configures the scan workflow.
type ScanConfig struct {
	RequireComposite bool          `yaml:"requireComposite"`
	Debounce         time.Duration `yaml:"debounce"`
	SessionTTL       time.Duration `yaml:"sessionTTL"`
	Timezone         string        `yaml:"timezone"`
}

type JournalConfig struct {
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`
	StatsTTL      time.Duration `yaml:"statsTTL"`
	HistoryLimit  int           `yaml:"historyLimit"`
	VerifyOnStart bool          `yaml:"verifyOnStart"`
	PruneInterval time.Duration `yaml:"pruneInterval"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       120,
			SessionCookie:   "joscan_session",
		},
		Backend: BackendConfig{
			BaseURL:          "http://127.0.0.1:8000",
			Timeout:          10 * time.Second,
			RateLimit:        20,
			RateBurst:        10,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			UserAgent:        "joscan",
			ForwardCookies:   []string{"sb_access", "csrf_token", "csrftoken"},
		},
		Scan: ScanConfig{
			Debounce:   scan.DefaultDebounce,
			SessionTTL: 8 * time.Hour,
			Timezone:   "Europe/Paris",
		},
		Journal: JournalConfig{
			Path:          "data/journal.db",
			Retention:     30 * 24 * time.Hour,
			StatsTTL:      10 * time.Second,
			HistoryLimit:  100,
			PruneInterval: time.Hour,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: cache.DefaultRedisPrefix,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "joscan",
			Environment:  "production",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SamplingRate: 1.0,
		},
		Log: LogConfig{Level: "info"},
	}
}

// UserAgent is the User-Agent sent to the ticketing backend.
func (c AppConfig) UserAgent() string {
	return c.Backend.UserAgent + "/" + versionOrDev(c.Version)
}

func (c AppConfig) RedisOptions() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Cache.Redis.Addr,
		Password: c.Cache.Redis.Password,
		DB:       c.Cache.Redis.DB,
		Prefix:   c.Cache.Redis.Prefix,
	}
}

// JournalOptions maps the journal section. The cache is supplied by the caller.
func (c AppConfig) JournalOptions(statsCache cache.Cache) journal.Options {
	return journal.Options{
		Cache:     statsCache,
		StatsTTL:  c.Journal.StatsTTL,
		Retention: c.Journal.Retention,
	}
}

func (c AppConfig) TelemetryOptions() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: versionOrDev(c.Version),
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

func (c AppConfig) LogOptions() xglog.Config {
	return xglog.Config{
		Level:   c.Log.Level,
		Service: c.Telemetry.ServiceName,
		Version: versionOrDev(c.Version),
	}
}

// Location resolves the display timezone. Validate guarantees it loads.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func versionOrDev(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
