// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

func capture(t *testing.T) (*Logger, func() map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))
	return l, func() map[string]any {
		var m map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
		buf.Reset()
		return m
	}
}

func TestLog_Fields(t *testing.T) {
	l, last := capture(t)
	ts := time.Date(2024, 8, 4, 21, 0, 0, 0, time.UTC)
	l.Log(Event{
		Timestamp:  ts,
		Type:       EventConfigReload,
		Actor:      "signal",
		Action:     "reload configuration",
		Resource:   "config",
		Result:     ResultSuccess,
		RemoteAddr: "10.0.0.1:5555",
		RequestID:  "req-1",
		Details:    map[string]string{"changes": "2"},
	})

	got := last()
	assert.Equal(t, "audit", got["log_type"])
	assert.Equal(t, "config.reload", got["event_type"])
	assert.Equal(t, "signal", got["actor"])
	assert.Equal(t, "req-1", got[xglog.FieldRequestID])
	assert.Equal(t, "2", got["changes"])
	assert.Equal(t, "audit event", got["message"])
}

func TestLog_SetsTimestamp(t *testing.T) {
	l, last := capture(t)
	l.Log(Event{Type: EventAuthDenied})
	assert.NotEmpty(t, last()["timestamp"])
}

func TestLogRequest_FillsMetadata(t *testing.T) {
	l, last := capture(t)
	r := httptest.NewRequest(http.MethodPost, "/admin/scan/validate", nil)
	r.RemoteAddr = "192.168.1.10:40000"
	r.Header.Set("User-Agent", "scanner/1.0")
	r = r.WithContext(xglog.ContextWithRequestID(r.Context(), "req-9"))

	l.RateLimited(r)
	got := last()
	assert.Equal(t, "api.ratelimit", got["event_type"])
	assert.Equal(t, "192.168.1.10:40000", got["actor"])
	assert.Equal(t, "scanner/1.0", got["user_agent"])
	assert.Equal(t, "POST /admin/scan/validate", got["resource"])
	assert.Equal(t, "req-9", got[xglog.FieldRequestID])
	assert.Equal(t, ResultDenied, got["result"])
}

func TestHelpers(t *testing.T) {
	l, last := capture(t)
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	l.AuthDenied(r, "missing token")
	got := last()
	assert.Equal(t, "auth.denied", got["event_type"])
	assert.Equal(t, "missing token", got["reason"])

	l.Forbidden(r, "cross-origin request not allowed")
	assert.Equal(t, "api.forbidden", last()["event_type"])

	l.ConfigReload("watcher", nil, nil)
	got = last()
	assert.Equal(t, "config.reload", got["event_type"])
	assert.Equal(t, ResultSuccess, got["result"])

	l.ConfigReload("signal", errors.New("invalid scan.debounce"), nil)
	got = last()
	assert.Equal(t, "config.reload.error", got["event_type"])
	assert.Equal(t, ResultFailure, got["result"])
	assert.Equal(t, "invalid scan.debounce", got["error"])
}
