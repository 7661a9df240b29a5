// SPDX-License-Identifier: MIT

package backend

import (
	"golang.org/x/time/rate"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
)

// OptionsFromConfig maps the backend section of cfg onto client options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		Timeout:          cfg.Backend.Timeout,
		RateLimit:        rate.Limit(cfg.Backend.RateLimit),
		RateLimitBurst:   cfg.Backend.RateBurst,
		BreakerThreshold: cfg.Backend.BreakerThreshold,
		BreakerReset:     cfg.Backend.BreakerReset,
		UserAgent:        cfg.UserAgent(),
	}
}
