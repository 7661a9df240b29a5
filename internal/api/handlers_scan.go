// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/console"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
)

// maxFormBytes bounds scan form and camera bodies.
const maxFormBytes = 64 << 10

// scanResponse is the JSON body returned to clients that ask for JSON.
type scanResponse struct {
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
	Summary  string `json:"summary"`
	Notice   string `json:"notice,omitempty"`
	Input    string `json:"input"`
	Fallback bool   `json:"fallback,omitempty"`
}

type cameraRequest struct {
	Payload string `json:"payload"`
	UserKey string `json:"user_key"`
}

// handlePage serves GET /admin/scan. A token query parameter is looked up
// at once.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request, c *console.Console) {
	s.respond(w, r, c, c.Open(r.Context(), r.URL.Query()), false)
}

// handleSearch serves the token form.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, c *console.Console) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "Formulaire invalide.")
		return
	}
	res := c.Search(r.Context(), r.PostForm.Get("token"), r.PostForm.Get("user_key"))
	s.respond(w, r, c, res, false)
}

// handleValidate validates the token the console currently holds. The form
// carries no token on purpose. A console whose last outcome is not Ready
// answers 422.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request, c *console.Console) {
	s.respond(w, r, c, c.Validate(r.Context()), false)
}

// handleCamera accepts a decoded QR payload, as form fields or JSON.
// Debounced duplicates answer 204.
func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request, c *console.Console) {
	req, err := decodeCamera(w, r)
	if err != nil {
		writeBadRequest(w, "Données de caméra invalides.")
		return
	}
	res := c.Decoded(r.Context(), req.Payload, req.UserKey)
	if res.Suppressed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respond(w, r, c, res, true)
}

func decodeCamera(w http.ResponseWriter, r *http.Request) (cameraRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var req cameraRequest
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return cameraRequest{}, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return cameraRequest{}, err
	}
	return cameraRequest{Payload: r.PostForm.Get("payload"), UserKey: r.PostForm.Get("user_key")}, nil
}

// respond writes res as JSON, as a result fragment or as the full page,
// depending on what the client asked for.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, c *console.Console, res console.Result, fragment bool) {
	status := statusFor(res)

	switch {
	case wantsJSON(r):
		s.respondJSON(w, status, res)
	case fragment || wantsFragment(r):
		body := res.Rendered
		if body == "" {
			body = noticeFragment(res.Notice)
		}
		writeHTML(w, status, body)
	default:
		s.respondPage(w, r, c, status, res)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, res console.Result) {
	switch {
	case res.Dropped:
		writeError(w, status, codeBusy, res.Notice)
	case res.Rejected:
		writeError(w, status, codeRejected, res.Notice)
	case res.Outcome == nil:
		writeJSON(w, status, scanResponse{State: "idle", Input: res.Input})
	default:
		writeJSON(w, status, scanResponse{
			State:    res.Outcome.State.String(),
			Message:  res.Outcome.Message,
			Summary:  render.Summary(*res.Outcome),
			Notice:   res.Notice,
			Input:    res.Input,
			Fallback: res.Outcome.Fallback,
		})
	}
}

func (s *Server) respondPage(w http.ResponseWriter, r *http.Request, c *console.Console, status int, res console.Result) {
	view := render.PageView{
		Input:            res.Input,
		UserKey:          res.UserKey,
		RequireComposite: s.cfg.Get().Scan.RequireComposite,
		Busy:             res.Dropped || c.Busy(),
		Notice:           res.Notice,
		Outcome:          res.Outcome,
	}
	if res.Dropped {
		// Keep showing the previous result while the other call runs.
		view.Outcome = c.View().Outcome
	}

	var buf bytes.Buffer
	if err := s.renderer.Page(&buf, view); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(xglog.FieldEvent, "render.page_failed").Msg("failed to render scan page")
		writeError(w, http.StatusInternalServerError, codeInternal, "Erreur interne.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// statusFor maps a console result onto the HTTP status. Backend failures
// still answer 200: the page shows the outcome, not an error.
func statusFor(res console.Result) int {
	switch {
	case res.Dropped:
		return http.StatusConflict
	case res.Rejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

func noticeFragment(notice string) template.HTML {
	if notice == "" {
		// #nosec G203 -- constant markup
		return template.HTML(`<div id="validation-result" aria-live="polite"></div>`)
	}
	// #nosec G203 -- notice is escaped
	return template.HTML(`<div id="validation-result" aria-live="polite"><p class="scan-notice" role="status">` +
		template.HTMLEscapeString(notice) + `</p></div>`)
}
