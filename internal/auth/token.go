// SPDX-License-Identifier: MIT

// Package auth guards the operations endpoints with a static bearer token.
// Operators of the scan console itself are authenticated by the ticketing
// backend, not here.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/audit"
)

// HeaderOpsToken is accepted for scrapers that cannot send Authorization.
const HeaderOpsToken = "X-Ops-Token"

// ExtractToken returns the bearer token of r, falling back to the
// X-Ops-Token header. Query parameters are never read: they end up in
// proxy logs.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get(HeaderOpsToken))
}

// AuthorizeToken compares in constant time. An empty expected token never
// authorizes.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest reports whether r carries the expected token.
func AuthorizeRequest(r *http.Request, expected string) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r), expected)
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "t_" + hex.EncodeToString(sum[:])[:12]
}

// RequireToken rejects requests without the expected token with 401. An
// empty expected token disables the check.
func RequireToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if strings.TrimSpace(expected) == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizeRequest(r, expected) {
				next.ServeHTTP(w, r)
				return
			}
			reason := "missing token"
			if got := ExtractToken(r); got != "" {
				reason = "invalid token " + Fingerprint(got)
			}
			audit.NewLogger().AuthDenied(r, reason)
			w.Header().Set("WWW-Authenticate", `Bearer realm="joscan-ops"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		})
	}
}
