// SPDX-License-Identifier: MIT

// Package console is the scan workflow controller: one Console per operator
// session ties the token sources, the backend gateway, the classifier and the
// renderer together behind the session guard.
package console

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/backend"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/journal"
	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/metrics"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/render"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/telemetry"
)

// Operator notices for submits that never reach the backend.
const (
	MessageBusy           = "Une opération est déjà en cours."
	MessageNoCurrentToken = "Aucun billet à valider : recherchez d'abord un billet."
	MessageNotReady       = "Ce billet n'est pas prêt à être validé : recherchez-le de nouveau."
)

// Rejection reasons, as counted in metrics.
const (
	reasonEmpty          = "empty"
	reasonMissingUserKey = "missing_user_key"
	reasonNoCurrentToken = "no_current_token"
	reasonNotReady       = "not_ready"
)

// Gateway is the part of the backend client a console needs.
type Gateway interface {
	Lookup(ctx context.Context, token string) scan.RawResult
	Scan(ctx context.Context, token string) scan.RawResult
}

// Recorder persists outcomes. *journal.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Renderer produces the result fragment. *render.Renderer implements it.
type Renderer interface {
	Fragment(o scan.Outcome) (template.HTML, error)
}

// Options configures a Console. Every field is optional.
type Options struct {
	Journal  Recorder
	Renderer Renderer
	// RequireComposite is consulted on every submit so a config reload
	// applies to live consoles.
	RequireComposite func() bool
	GuardOptions     []scan.GuardOption
	Logger           *zerolog.Logger
}

// Result is what one operator action produced.
type Result struct {
	// Outcome is nil when nothing was sent to the backend.
	Outcome *scan.Outcome
	// Input is the value the token field should now show.
	Input   string
	UserKey string
	// Notice is a one-line status for the operator, possibly empty.
	Notice   string
	Rendered template.HTML
	// Dropped is set when another call was in flight.
	Dropped bool
	// Suppressed is set when a camera payload was debounced.
	Suppressed bool
	// Rejected is set when the submit was refused before the backend.
	Rejected bool
}

// View is a snapshot of the console for rendering a full page.
type View struct {
	Input   string
	UserKey string
	Outcome *scan.Outcome
	Busy    bool
}

// Console is the controller for one operator session. All methods are safe
// for concurrent use; backend calls are single-flight through the guard.
type Console struct {
	id    string
	gw    Gateway
	guard *scan.Guard
	opts  Options

	logger zerolog.Logger

	mu      sync.Mutex
	current string
	input   string
	userKey string
	last    *scan.Outcome
}

// New returns an idle console for session id.
func New(id string, gw Gateway, opts Options) *Console {
	logger := xglog.WithComponent("console")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Console{
		id:     id,
		gw:     gw,
		guard:  scan.NewGuard(opts.GuardOptions...),
		opts:   opts,
		logger: logger.With().Str(xglog.FieldSessionID, id).Logger(),
	}
}

// ID returns the operator session ID.
func (c *Console) ID() string { return c.id }

// Busy reports whether a backend call is in flight.
func (c *Console) Busy() bool { return c.guard.Busy() }

// CurrentToken returns the token Validate would submit.
func (c *Console) CurrentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// View snapshots the console state.
func (c *Console) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{Input: c.input, UserKey: c.userKey, Outcome: c.last, Busy: c.guard.Busy()}
}

// SeedCookies copies allowed operator cookies into the console's backend
// jar. It is a no-op when the gateway has no jar.
func (c *Console) SeedCookies(cookies []*http.Cookie, allow []string) int {
	j, ok := c.gw.(interface {
		Jar() http.CookieJar
		BaseURL() *url.URL
	})
	if !ok {
		return 0
	}
	return backend.SeedCookies(j.Jar(), j.BaseURL(), cookies, allow)
}

// Open handles a page load. A token query parameter pre-fills the input and
// is looked up at once; otherwise the console returns to idle.
func (c *Console) Open(ctx context.Context, query url.Values) Result {
	if tok, ok := scan.FromURL(query); ok {
		return c.Search(ctx, tok, query.Get("user_key"))
	}
	c.mu.Lock()
	c.current, c.input, c.last = "", "", nil
	userKey := c.userKey
	c.mu.Unlock()
	return Result{UserKey: userKey}
}

// Search looks up the token typed (or pasted) by the operator.
func (c *Console) Search(ctx context.Context, input, userKey string) Result {
	return c.search(ctx, input, userKey, nil)
}

// search runs a lookup. The input fields are only overwritten once the guard
// is held, so a dropped submit leaves the console untouched. admit, when set,
// runs under the guard first and may cancel the lookup with its own result.
func (c *Console) search(ctx context.Context, input, userKey string, admit func() (Result, bool)) Result {
	tok, ok := scan.FromInput(input)
	if !ok {
		c.setInput(input, userKey)
		return c.reject(ctx, reasonEmpty, scan.MessageEmptyToken)
	}
	composed, err := scan.Compose(tok, userKey, c.requireComposite())
	if err != nil {
		c.setInput(input, userKey)
		return c.reject(ctx, reasonMissingUserKey, scan.MessageMissingUserKey)
	}
	return c.run(ctx, scan.OpLookup, composed, func() (Result, bool) {
		if admit != nil {
			if res, ok := admit(); !ok {
				return res, false
			}
		}
		c.setInput(input, userKey)
		return Result{}, true
	})
}

func (c *Console) setInput(input, userKey string) {
	c.mu.Lock()
	c.input, c.userKey = input, userKey
	c.mu.Unlock()
}

// Validate submits the currently held token, never the input field. Only a
// token whose last lookup came back Ready is sent.
func (c *Console) Validate(ctx context.Context) Result {
	tok := c.CurrentToken()
	if tok == "" {
		return c.reject(ctx, reasonNoCurrentToken, MessageNoCurrentToken)
	}
	return c.run(ctx, scan.OpValidate, tok, func() (Result, bool) {
		c.mu.Lock()
		ready := c.current == tok && c.last != nil && c.last.State == scan.StateReady
		c.mu.Unlock()
		if !ready {
			return c.reject(ctx, reasonNotReady, MessageNotReady), false
		}
		return Result{}, true
	})
}

// Decoded feeds a camera payload into the search path, after the debounce.
func (c *Console) Decoded(ctx context.Context, payload, userKey string) Result {
	tok, ok := scan.FromQRPayload(payload)
	if !ok {
		return c.reject(ctx, reasonEmpty, scan.MessageEmptyToken)
	}
	// The debounce is consulted under the guard: a dropped frame must not
	// arm it, or the retry is lost.
	return c.search(ctx, tok, userKey, func() (Result, bool) {
		if c.guard.AcceptDecoded(tok) {
			return Result{}, true
		}
		metrics.IncCameraDebounced()
		logger := xglog.WithContext(ctx, c.logger)
		logger.Debug().
			Str(xglog.FieldEvent, "scan.debounced").
			Str(xglog.FieldToken, render.ShortToken(tok)).
			Msg("duplicate camera payload suppressed")
		v := c.View()
		return Result{Input: v.Input, UserKey: v.UserKey, Suppressed: true}, false
	})
}

func (c *Console) requireComposite() bool {
	return c.opts.RequireComposite != nil && c.opts.RequireComposite()
}

func (c *Console) run(ctx context.Context, kind scan.OperationKind, token string, admit func() (Result, bool)) Result {
	var res Result
	ran := c.guard.Do(func() {
		if admit != nil {
			var ok bool
			if res, ok = admit(); !ok {
				return
			}
		}
		res = c.call(ctx, kind, token)
	})
	if !ran {
		return c.dropped(ctx, kind)
	}
	return res
}

func (c *Console) call(ctx context.Context, kind scan.OperationKind, token string) Result {
	ctx, span := telemetry.Tracer("joscan/console").Start(ctx, "console."+string(kind))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttribute(c.id))

	if kind == scan.OpLookup {
		c.mu.Lock()
		c.current = token
		c.mu.Unlock()
	}

	var raw scan.RawResult
	switch kind {
	case scan.OpValidate:
		raw = c.gw.Scan(ctx, token)
	default:
		raw = c.gw.Lookup(ctx, token)
	}
	o := scan.Classify(raw, kind)

	span.SetAttributes(telemetry.ScanAttributes(string(kind), o.State.String(), render.ShortToken(token), o.Fallback)...)
	if raw.NetworkError {
		span.SetAttributes(telemetry.ErrorAttributes("network")...)
		span.SetStatus(codes.Error, "backend unreachable")
	}

	c.observe(ctx, kind, token, raw, o)

	c.mu.Lock()
	c.last = &o
	if o.State == scan.StateValidated {
		c.input = ""
	}
	res := Result{Outcome: &o, Input: c.input, UserKey: c.userKey}
	c.mu.Unlock()

	if o.State == scan.StateValidated {
		c.guard.ForgetLastToken()
	}
	if kind == scan.OpValidate || raw.NetworkError {
		res.Notice = render.Notice(o)
	}
	if c.opts.Renderer != nil {
		// The guard is still held: the fragment shows the idle controls of
		// the state being returned, not the in-flight call.
		frag, err := c.opts.Renderer.Fragment(o)
		if err != nil {
			c.logger.Error().Err(err).Str(xglog.FieldEvent, "render.failed").Msg("failed to render result")
		}
		res.Rendered = frag
	}
	return res
}

// observe logs, counts and journals one classified outcome.
func (c *Console) observe(ctx context.Context, kind scan.OperationKind, token string, raw scan.RawResult, o scan.Outcome) {
	logger := xglog.WithContext(ctx, c.logger)
	metrics.RecordScanOutcome(string(kind), o.State.String(), o.Fallback)

	evt := logger.Info()
	if raw.NetworkError {
		evt = logger.Warn()
	}
	evt.Str(xglog.FieldEvent, "scan."+string(kind)).
		Str(xglog.FieldOperation, string(kind)).
		Str(xglog.FieldToken, render.ShortToken(token)).
		Str(xglog.FieldOutcome, o.State.String()).
		Int(xglog.FieldStatus, raw.Status).
		Bool("network_error", raw.NetworkError).
		Msg(render.Summary(o))

	if o.Fallback {
		logger.Warn().
			Str(xglog.FieldEvent, "scan.validate_fallback").
			Str(xglog.FieldToken, render.ShortToken(token)).
			Int(xglog.FieldStatus, raw.Status).
			Msg("validate response had no status; treated as validated because it carried a validation record")
	}

	if c.opts.Journal == nil {
		return
	}
	entry := journal.NewEntry(c.id, kind, token, o)
	entry.RequestID = xglog.RequestIDFromContext(ctx)
	// The journal outlives the request; a cancelled operator request must
	// still be recorded.
	if err := c.opts.Journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "journal.record_failed").Msg("failed to journal scan outcome")
	}
}

func (c *Console) reject(ctx context.Context, reason, notice string) Result {
	metrics.IncScanRejected(reason)
	logger := xglog.WithContext(ctx, c.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "scan.rejected").
		Str("reason", reason).
		Msg(notice)
	v := c.View()
	return Result{Input: v.Input, UserKey: v.UserKey, Notice: notice, Rejected: true}
}

func (c *Console) dropped(ctx context.Context, kind scan.OperationKind) Result {
	metrics.IncScanDropped(string(kind))
	logger := xglog.WithContext(ctx, c.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "scan.dropped").
		Str(xglog.FieldOperation, string(kind)).
		Msg("submit dropped while a call is in flight")
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{Input: c.input, UserKey: c.userKey, Notice: MessageBusy, Dropped: true}
}
