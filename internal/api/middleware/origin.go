// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/audit"
)

// originSet holds scheme://host[:port] values without a trailing slash.
type originSet map[string]struct{}

func newOriginSet(origins []string) originSet {
	s := make(originSet, len(origins))
	for _, o := range origins {
		s[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return s
}

func (s originSet) has(origin string) bool {
	_, ok := s[origin]
	return ok
}

// requestOrigin is the Origin header, or the scheme and host of the Referer
// when Origin is absent or "null".
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" && o != "null" {
		return strings.TrimSuffix(o, "/")
	}
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Scheme == "" || ref.Host == "" {
		return ""
	}
	return ref.Scheme + "://" + ref.Host
}

// selfOrigin is the origin the request was addressed to. A TLS-terminating
// proxy is trusted through X-Forwarded-Proto.
func selfOrigin(r *http.Request) string {
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		scheme = strings.ToLower(strings.TrimSpace(first))
	}
	return scheme + "://" + r.Host
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// CSRFProtection rejects state-changing requests whose Origin (or Referer)
// is neither the console itself nor one of trusted.
func CSRFProtection(trusted []string) func(http.Handler) http.Handler {
	allowed := newOriginSet(trusted)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			origin := requestOrigin(r)
			var reason, detail string
			switch {
			case origin == "":
				reason, detail = "missing origin", "missing origin information"
			case !allowed.has(origin) && !strings.EqualFold(origin, selfOrigin(r)):
				reason, detail = "cross-origin: "+origin, "cross-origin request not allowed"
			default:
				next.ServeHTTP(w, r)
				return
			}
			audit.NewLogger().Forbidden(r, reason)
			writeJSONError(w, http.StatusForbidden, "forbidden", detail)
		})
	}
}

// CORS lets the listed origins read JSON endpoints such as the scan
// statistics. Other origins get no CORS headers. Preflights are answered
// here and never reach next.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := newOriginSet(origins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			if o := r.Header.Get("Origin"); o != "" && allowed.has(o) {
				h.Set("Access-Control-Allow-Origin", o)
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
				h.Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				h.Set("Allow", "GET, OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
