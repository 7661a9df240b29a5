// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

const (
	maxHistoryLimit    = 1000
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
)

var knownStates = map[string]scan.State{
	"invalid":           scan.StateInvalid,
	"ready":             scan.StateReady,
	"validated":         scan.StateValidated,
	"already_validated": scan.StateAlreadyValidated,
}

// statsResponse adds live console data to the journal counts.
type statsResponse struct {
	journal.Stats
	ConsolesActive int `json:"consoles_active"`
}

// handleHistory serves the journal, newest first. Supported query
// parameters: token, state, since (RFC 3339 or a duration such as 2h),
// limit and format=csv.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f, err := s.historyFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	entries, err := s.history.Recent(r.Context(), f)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "history.query_failed").Msg("failed to read scan journal")
		writeServiceUnavailable(w, "Historique indisponible.")
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		var buf bytes.Buffer
		if err := journal.WriteCSV(&buf, entries); err != nil {
			logger.Error().Err(err).Str(xglog.FieldEvent, "history.export_failed").Msg("failed to encode scan journal")
			writeError(w, http.StatusInternalServerError, codeInternal, "Erreur interne.")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="scan-journal.csv"`)
		_, _ = buf.WriteTo(w)
		return
	}

	rows := make([]render.HistoryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, historyRow(e))
	}
	var buf bytes.Buffer
	if err := s.renderer.History(&buf, rows); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "render.history_failed").Msg("failed to render scan history")
		writeError(w, http.StatusInternalServerError, codeInternal, "Erreur interne.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) historyFilter(r *http.Request) (journal.Filter, error) {
	q := r.URL.Query()
	f := journal.Filter{
		Token: strings.TrimSpace(q.Get("token")),
		Limit: s.cfg.Get().Journal.HistoryLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return journal.Filter{}, errBadParam("limit")
		}
		f.Limit = min(n, maxHistoryLimit)
	}

	if raw := strings.ToLower(strings.TrimSpace(q.Get("state"))); raw != "" {
		st, ok := knownStates[raw]
		if !ok {
			return journal.Filter{}, errBadParam("state")
		}
		f.State = &st
	}

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := parseSince(raw, time.Now())
		if err != nil {
			return journal.Filter{}, errBadParam("since")
		}
		f.Since = since
	}
	return f, nil
}

// parseSince accepts an RFC 3339 instant or a positive look-back duration.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return time.Time{}, errBadParam("since")
		}
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func historyRow(e journal.Entry) render.HistoryRow {
	o := scan.Outcome{State: e.State, Message: e.Message, Fallback: e.Fallback}
	if e.Title != "" || e.Purchaser != "" {
		o.Ticket = &scan.TicketDetail{Token: e.Token, Title: e.Title, Purchaser: e.Purchaser}
	}
	return render.HistoryRow{
		At:        e.At,
		Operation: string(e.Operation),
		Token:     e.Token,
		State:     e.State,
		Message:   e.Message,
		Summary:   render.Summary(o),
	}
}

// handleStats serves outcome counts over ?window= (default 24h).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxStatsWindow {
			writeBadRequest(w, errBadParam("window").Error())
			return
		}
		window = d
	}

	st, err := s.history.Stats(r.Context(), window)
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(xglog.FieldEvent, "stats.query_failed").Msg("failed to compute scan stats")
		writeServiceUnavailable(w, "Statistiques indisponibles.")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: st, ConsolesActive: s.consoles.Len()})
}

type errBadParam string

func (e errBadParam) Error() string {
	return "paramètre invalide : " + string(e)
}
