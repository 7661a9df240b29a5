// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
)

// Error codes of the JSON error envelope.
const (
	codeBadRequest  = "bad_request"
	codeBusy        = "busy"
	codeRejected    = "rejected"
	codeUnavailable = "unavailable"
	codeInternal    = "internal_error"
)

// fragmentMediaType asks for the result container only.
const fragmentMediaType = "text/html-fragment"

// apiError is the JSON error envelope.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, code int, errCode, detail string) {
	writeJSON(w, code, apiError{Error: errCode, Detail: detail})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, codeBadRequest, detail)
}

func writeServiceUnavailable(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusServiceUnavailable, codeUnavailable, detail)
}

func writeHTML(w http.ResponseWriter, code int, body template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// wantsFragment reports whether the client asked for the result container
// instead of the full page.
func wantsFragment(r *http.Request) bool {
	if v := r.URL.Query().Get("fragment"); v == "1" || v == "true" {
		return true
	}
	return acceptsMedia(r, fragmentMediaType)
}

// wantsJSON reports whether the client prefers a JSON body (kiosk scanners).
func wantsJSON(r *http.Request) bool {
	return acceptsMedia(r, "application/json")
}

func acceptsMedia(r *http.Request, media string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mt), media) {
			return true
		}
	}
	return false
}
