// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/config"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/console"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// operatorSession returns the operator session ID carried by the session
// cookie, issuing a new one when it is missing or malformed. The cookie only
// identifies the console; it grants nothing on its own.
func operatorSession(w http.ResponseWriter, r *http.Request, cfg config.ServerConfig, ttlSeconds int) string {
	if c, err := r.Cookie(cfg.SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.SessionCookie,
		Value:    id,
		Path:     "/admin/scan",
		HttpOnly: true,
		Secure:   cfg.SecureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   ttlSeconds,
	})

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "session.create").
		Str(xglog.FieldSessionID, id).
		Str("remote_addr", r.RemoteAddr).
		Msg("issuing operator session cookie")
	return id
}

// withConsole resolves the operator's console and hands it to fn with a
// request context carrying the session ID. The operator's backend cookies
// are copied into the console jar on every request so a refreshed login
// reaches the backend.
func (s *Server) withConsole(fn func(http.ResponseWriter, *http.Request, *console.Console)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := s.cfg.Get()
		id := operatorSession(w, r, cfg.Server, int(cfg.Scan.SessionTTL.Seconds()))
		c := s.consoles.Acquire(id)
		c.SeedCookies(r.Cookies(), cfg.Backend.ForwardCookies)

		ctx := xglog.ContextWithSessionID(r.Context(), id)
		fn(w, r.WithContext(ctx), c)
	}
}
