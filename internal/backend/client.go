// SPDX-License-Identifier: MIT

// Package backend is the request gateway to the ticketing REST backend. Every
// call resolves to a scan.RawResult; failures become the synthetic network
// error result instead of propagating.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/metrics"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/resilience"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/telemetry"
)

// Backend endpoints used by the console.
const (
	LookupPathPrefix = "/api/v1/validation/ticket/"
	ScanPath         = "/api/v1/validation/scan"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultRateLimit        = 20
	defaultRateLimitBurst   = 10
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
	maxBodyBytes            = 1 << 20
)

// Options configures the gateway.
type Options struct {
	Timeout          time.Duration
	RateLimit        rate.Limit
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration
	UserAgent        string
	// Transport overrides the base round tripper. It is still wrapped with
	// otelhttp.
	Transport http.RoundTripper
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerThreshold
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerReset
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "joscan"
	}
	if opts.Transport == nil {
		opts.Transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: opts.Timeout,
			TLSHandshakeTimeout:   5 * time.Second,
		}
	}
	return opts
}

// Client sends requests to one backend. The transport, limiter and breaker
// are shared by every console; the cookie jar is per console (see WithJar).
type Client struct {
	base      *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	userAgent string
	logger    zerolog.Logger
}

// NewClient validates baseURL and builds a client without cookies.
func NewClient(baseURL string, opts Options) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	nopts := normalizeOptions(opts)

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: otelhttp.NewTransport(nopts.Transport),
		},
		limiter:   rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		breaker:   resilience.NewCircuitBreaker("backend", nopts.BreakerThreshold, nopts.BreakerReset, resilience.WithTransitionFunc(observeBreaker)),
		userAgent: nopts.UserAgent,
		logger:    xglog.WithComponent("backend"),
	}, nil
}

// ParseBaseURL accepts an absolute http(s) URL and strips any trailing slash.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: must be absolute http(s)", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// WithJar returns a client sharing c's transport, limiter and breaker but
// sending the cookies held in jar.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	cp := *c
	hc := *c.http
	hc.Jar = jar
	cp.http = &hc
	return &cp
}

// BaseURL returns a copy of the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Jar returns the cookie jar in use, or nil.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// BreakerState reports the shared circuit breaker state.
func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

// Lookup reads a ticket and its validation record without side effects.
func (c *Client) Lookup(ctx context.Context, token string) scan.RawResult {
	return c.Send(ctx, http.MethodGet, LookupPathPrefix+url.PathEscape(token), nil)
}

// Scan asks the backend to validate the ticket.
func (c *Client) Scan(ctx context.Context, token string) scan.RawResult {
	return c.Send(ctx, http.MethodPost, ScanPath, map[string]string{"token": token})
}

// Send performs one request and always returns a result. Errors are logged
// and turned into scan.NetworkFailure.
func (c *Client) Send(ctx context.Context, method, path string, body any) scan.RawResult {
	res, err := c.Do(ctx, method, path, body)
	if err != nil {
		logger := xglog.WithContext(ctx, c.logger)
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "backend.request_failed").
			Str("method", method).
			Str(xglog.FieldPath, path).
			Msg("backend request failed")
		return scan.NetworkFailure()
	}
	return res
}

var errServerStatus = errors.New("backend: server error status")

// Do performs one request. HTTP error statuses are results, not errors; an
// error is returned only when no response could be obtained.
func (c *Client) Do(ctx context.Context, method, path string, body any) (scan.RawResult, error) {
	op := operationFor(method, path)
	start := time.Now()

	ctx, span := telemetry.Tracer("joscan.backend").Start(ctx, "joscan.backend."+op, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	fail := func(sentinel, err error, result string) (scan.RawResult, error) {
		metrics.ObserveGatewayRequest(op, 0, result, time.Since(start))
		span.SetAttributes(telemetry.ErrorAttributes(result)...)
		span.SetStatus(codes.Error, sentinel.Error())
		return scan.RawResult{}, &GatewayError{Sentinel: sentinel, Operation: op, Method: method, Path: path, Err: err}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return fail(ErrInvalidRequest, err, "invalid_request")
	}
	span.SetAttributes(telemetry.BackendCallAttributes(method, routeFor(path))...)

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(ErrPacing, err, "paced_out")
	}

	var (
		res     scan.RawResult
		callErr error
	)
	err = c.breaker.Execute(func() error {
		res, callErr = c.roundTrip(req)
		switch {
		case callErr != nil && ctx.Err() != nil:
			// Abandoned by the caller, not the backend's fault.
			return nil
		case callErr != nil:
			return callErr
		case res.Status >= http.StatusInternalServerError:
			return errServerStatus
		}
		return nil
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fail(ErrCircuitOpen, nil, "circuit_open")
	case callErr != nil:
		return fail(ErrUnavailable, callErr, "network_error")
	}

	result := "ok"
	if res.Status >= http.StatusBadRequest {
		result = "http_error"
	}
	metrics.ObserveGatewayRequest(op, res.Status, result, time.Since(start))
	span.SetAttributes(telemetry.StatusAttribute(res.Status))
	if res.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(res.Status))
	}
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := xglog.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	if !isReadOnly(method) && sameOrigin(target, c.base) {
		if tok := csrfToken(c.http.Jar, target); tok != "" {
			req.Header.Set(CSRFHeader, tok)
		}
	}
	return req, nil
}

// resolve joins a backend-relative path onto the base URL. Absolute URLs are
// accepted as is; they only receive a CSRF header when same-origin.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(ref.Path, "/")
	if ref.RawPath != "" {
		u.RawPath = c.base.Path + "/" + strings.TrimLeft(ref.RawPath, "/")
	} else {
		u.RawPath = ""
	}
	u.RawQuery = ref.RawQuery
	return &u, nil
}

func (c *Client) roundTrip(req *http.Request) (scan.RawResult, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return scan.RawResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return scan.RawResult{}, fmt.Errorf("read body: %w", err)
	}
	return scan.RawResult{Status: resp.StatusCode, Body: decodeObject(raw)}, nil
}

// decodeObject returns the body as a JSON object, or nil for empty, invalid
// or non-object JSON.
func decodeObject(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func operationFor(method, path string) string {
	switch {
	case method == http.MethodGet && strings.HasPrefix(path, LookupPathPrefix):
		return string(scan.OpLookup)
	case method == http.MethodPost && path == ScanPath:
		return string(scan.OpValidate)
	default:
		return "other"
	}
}

// routeFor keeps tokens out of span attributes.
func routeFor(path string) string {
	if strings.HasPrefix(path, LookupPathPrefix) {
		return LookupPathPrefix + "{token}"
	}
	return path
}

func observeBreaker(name string, from, to resilience.State) {
	metrics.ObserveBreakerTransition(name, string(from), string(to))
}
