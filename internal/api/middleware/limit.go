// SPDX-License-Identifier: MIT

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/audit"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// RequestLimit per WindowSize; non-positive disables limiting.
	RequestLimit int
	WindowSize   time.Duration // default one minute
	// KeyFunc defaults to the client IP.
	KeyFunc httprate.KeyFunc
}

func passThrough(next http.Handler) http.Handler { return next }

// RateLimit applies an httprate sliding window per key. Refused requests
// are audited and get a 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return passThrough
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = time.Minute
	}
	key := cfg.KeyFunc
	if key == nil {
		key = httprate.KeyByIP
	}
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))

	refuse := func(w http.ResponseWriter, r *http.Request) {
		audit.NewLogger().RateLimited(r)
		w.Header().Set("Retry-After", retryAfter)
		writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Trop de requêtes. Réessayez dans un instant.")
	}
	return httprate.Limit(cfg.RequestLimit, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(refuse),
	)
}

// ScanRateLimit limits scan submits to perMinute requests per client IP.
func ScanRateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{RequestLimit: perMinute})
}
