// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

type captured struct {
	method  string
	path    string
	header  http.Header
	body    string
	cookies []*http.Cookie
}

func newTestBackend(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		*got = captured{
			method:  r.Method,
			path:    r.URL.EscapedPath(),
			header:  r.Header.Clone(),
			body:    string(raw),
			cookies: r.Cookies(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, Options{Timeout: 2 * time.Second, RateLimit: 1000, RateLimitBurst: 100})
	require.NoError(t, err)
	return c
}

func TestLookup_SendsGetWithEscapedToken(t *testing.T) {
	srv, got := newTestBackend(t, http.StatusOK, `{"ticket":{"token":"u42.abc"}}`)
	c := newTestClient(t, srv.URL)

	res := c.Lookup(context.Background(), "u42.a/b c")

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/v1/validation/ticket/u42.a%2Fb%20c", got.path)
	assert.Equal(t, "application/json", got.header.Get("Accept"))
	assert.Empty(t, got.header.Get("Content-Type"))
	assert.Empty(t, got.header.Get(CSRFHeader), "read-only requests never carry the CSRF header")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.False(t, res.NetworkError)
	assert.Equal(t, "u42.abc", res.Body["ticket"].(map[string]any)["token"])
}

func TestScan_PostsJSONWithCSRFFromJar(t *testing.T) {
	srv, got := newTestBackend(t, http.StatusOK, `{"status":"ok"}`)
	c := newTestClient(t, srv.URL)

	jar := NewJar()
	base, _ := url.Parse(srv.URL)
	n := SeedCookies(jar, base, []*http.Cookie{
		{Name: "csrftoken", Value: "legacy"},
		{Name: "csrf_token", Value: "current"},
		{Name: "access_token", Value: "jwt"},
		{Name: "tracking", Value: "nope"},
	}, []string{"csrf_token", "csrftoken", "access_token"})
	require.Equal(t, 3, n)

	res := c.WithJar(jar).Scan(context.Background(), "u42.abc")

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, ScanPath, got.path)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "current", got.header.Get(CSRFHeader))
	assert.JSONEq(t, `{"token":"u42.abc"}`, got.body)

	names := map[string]string{}
	for _, ck := range got.cookies {
		names[ck.Name] = ck.Value
	}
	assert.Equal(t, map[string]string{"csrf_token": "current", "csrftoken": "legacy", "access_token": "jwt"}, names)
	assert.Equal(t, "ok", res.Body["status"])
}

func TestSend_LegacyCSRFCookie(t *testing.T) {
	srv, got := newTestBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)
	jar := NewJar()
	base, _ := url.Parse(srv.URL)
	SeedCookies(jar, base, []*http.Cookie{{Name: "csrftoken", Value: "legacy"}}, []string{"csrftoken"})

	c.WithJar(jar).Send(context.Background(), http.MethodPost, ScanPath, map[string]string{"token": "x"})
	assert.Equal(t, "legacy", got.header.Get(CSRFHeader))
}

func TestSend_NoCSRFWithoutCookie(t *testing.T) {
	srv, got := newTestBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)

	c.WithJar(NewJar()).Send(context.Background(), http.MethodPost, ScanPath, nil)
	_, present := got.header[CSRFHeader]
	assert.False(t, present)
}

func TestSend_NoCSRFForOtherOrigin(t *testing.T) {
	own, _ := newTestBackend(t, http.StatusOK, `{}`)
	other, got := newTestBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, own.URL)
	jar := NewJar()
	base, _ := url.Parse(own.URL)
	SeedCookies(jar, base, []*http.Cookie{{Name: "csrf_token", Value: "secret"}}, []string{"csrf_token"})

	c.WithJar(jar).Send(context.Background(), http.MethodPost, other.URL+"/api/v1/validation/scan", nil)
	assert.Empty(t, got.header.Get(CSRFHeader))
}

func TestSend_ForwardsRequestID(t *testing.T) {
	srv, got := newTestBackend(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)

	ctx := xglog.ContextWithRequestID(context.Background(), "req-123")
	c.Lookup(ctx, "abc")
	assert.Equal(t, "req-123", got.header.Get("X-Request-ID"))
}

func TestSend_BodyShapes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantBody map[string]any
	}{
		{"object", 200, `{"status":"ok"}`, map[string]any{"status": "ok"}},
		{"not found detail", 404, `{"detail":"Billet introuvable"}`, map[string]any{"detail": "Billet introuvable"}},
		{"empty", 204, ``, nil},
		{"html error page", 502, `<html>Bad gateway</html>`, nil},
		{"array", 200, `[1,2,3]`, nil},
		{"null", 200, `null`, nil},
		{"string", 200, `"ok"`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestBackend(t, tt.status, tt.body)
			c := newTestClient(t, srv.URL)

			res := c.Send(context.Background(), http.MethodGet, "/anything", nil)
			assert.Equal(t, tt.status, res.Status)
			assert.False(t, res.NetworkError)
			assert.Equal(t, tt.wantBody, res.Body)
		})
	}
}

func TestSend_TransportFailureBecomesNetworkError(t *testing.T) {
	srv, _ := newTestBackend(t, http.StatusOK, `{}`)
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, addr)
	res := c.Lookup(context.Background(), "abc")

	assert.True(t, res.NetworkError)
	assert.Zero(t, res.Status)
	assert.Equal(t, scan.NetworkFailure().Body, res.Body)
	assert.Equal(t, scan.StateInvalid, scan.Classify(res, scan.OpLookup).State)
	assert.Equal(t, scan.NetworkErrorMessage, scan.Classify(res, scan.OpLookup).Message)
}

func TestDo_ReturnsGatewayError(t *testing.T) {
	srv, _ := newTestBackend(t, http.StatusOK, `{}`)
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, addr)
	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, http.MethodGet, gwErr.Method)
	assert.Contains(t, err.Error(), "backend: other GET /x")
}

func TestDo_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, Options{BreakerThreshold: 2, BreakerReset: time.Hour, RateLimit: 1000, RateLimitBurst: 100})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
		require.NoError(t, err, "5xx is a result, not an error")
		assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	}

	_, err = c.Do(context.Background(), http.MethodGet, "/x", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	res := c.Send(context.Background(), http.MethodGet, "/x", nil)
	assert.True(t, res.NetworkError)
}

func TestDo_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv, _ := newTestBackend(t, http.StatusNotFound, `{"detail":"Not Found"}`)
	c, err := NewClient(srv.URL, Options{BreakerThreshold: 1, RateLimit: 1000, RateLimitBurst: 100})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
		require.NoError(t, err)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := c.Scan(ctx, "abc")
	assert.True(t, res.NetworkError)
}

func TestDo_PacingWaitCancelled(t *testing.T) {
	srv, _ := newTestBackend(t, http.StatusOK, `{}`)
	c, err := NewClient(srv.URL, Options{RateLimit: 0.001, RateLimitBurst: 1})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, http.MethodGet, "/x", nil)
	assert.ErrorIs(t, err, ErrPacing)
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "backend:8000", "ftp://backend", "/relative"} {
		_, err := NewClient(raw, Options{})
		assert.Error(t, err, raw)
	}
}

func TestResolve_KeepsBasePath(t *testing.T) {
	c := newTestClient(t, "https://billetterie.example/jo/")
	u, err := c.resolve(LookupPathPrefix + url.PathEscape("a/b"))
	require.NoError(t, err)
	assert.Equal(t, "https://billetterie.example/jo/api/v1/validation/ticket/a%2Fb", u.String())
}

func TestParseCookieArgs(t *testing.T) {
	cookies := ParseCookieArgs([]string{"csrf_token=abc", "access_token = jwt ", "broken", "=novalue"})
	require.Len(t, cookies, 2)
	assert.Equal(t, "csrf_token", cookies[0].Name)
	assert.Equal(t, "jwt", cookies[1].Value)
}

func TestSeedCookies_EmptyAllowList(t *testing.T) {
	jar := NewJar()
	base, _ := url.Parse("http://127.0.0.1:8000")
	assert.Zero(t, SeedCookies(jar, base, []*http.Cookie{{Name: "csrf_token", Value: "x"}}, nil))
	assert.Empty(t, jar.Cookies(base))
}

func TestIsReadOnly(t *testing.T) {
	for _, m := range []string{"GET", "head", "OPTIONS", "TRACE"} {
		assert.True(t, isReadOnly(m), m)
	}
	for _, m := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		assert.False(t, isReadOnly(m), m)
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := &GatewayError{Sentinel: ErrUnavailable, Operation: "validate", Method: "POST", Path: ScanPath, Err: inner}
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, inner)
	assert.True(t, strings.HasPrefix(err.Error(), "backend: validate POST"))

	b, _ := json.Marshal(map[string]string{"e": err.Error()})
	assert.NotEmpty(t, b)
}
