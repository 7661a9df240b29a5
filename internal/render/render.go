// SPDX-License-Identifier: MIT

// Package render turns classified scan outcomes into HTML for the console
// and into styled text for the command line.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

//go:embed templates/*.html
var templateFS embed.FS

// Default routes the rendered forms post to.
const (
	DefaultSearchAction   = "/admin/scan/search"
	DefaultValidateAction = "/admin/scan/validate"
	DefaultHistoryAction  = "/admin/scan/history"
	DefaultScanAction     = "/admin/scan"
	DefaultTimeLayout     = "02/01/2006 15:04:05"
	defaultPageTitle      = "Contrôle des billets"
	messageNoData         = "Aucune donnée"
)

// Options configures a Renderer.
type Options struct {
	Location       *time.Location
	TimeLayout     string
	Title          string
	SearchAction   string
	ValidateAction string
	HistoryAction  string
	ScanAction     string
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

// New parses the embedded templates.
func New(opts Options) (*Renderer, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = DefaultTimeLayout
	}
	if opts.Title == "" {
		opts.Title = defaultPageTitle
	}
	if opts.SearchAction == "" {
		opts.SearchAction = DefaultSearchAction
	}
	if opts.ValidateAction == "" {
		opts.ValidateAction = DefaultValidateAction
	}
	if opts.HistoryAction == "" {
		opts.HistoryAction = DefaultHistoryAction
	}
	if opts.ScanAction == "" {
		opts.ScanAction = DefaultScanAction
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, opts: opts}, nil
}

// MustNew is New for package-level initialisation and tests.
func MustNew(opts Options) *Renderer {
	r, err := New(opts)
	if err != nil {
		panic(err)
	}
	return r
}

type ticketView struct {
	Token     string
	Title     string
	Purchaser string
	CreatedAt string
}

type validationView struct {
	ScannedAt string
	ScannedBy string
}

type resultView struct {
	State          string
	Banner         Banner
	Message        string
	Ticket         *ticketView
	Validation     *validationView
	ShowValidate   bool
	ValidateAction string
	Busy           bool
}

func (r *Renderer) formatTime(ts scan.Timestamp) string {
	if ts.Time.IsZero() {
		return ts.Raw
	}
	return ts.Time.In(r.opts.Location).Format(r.opts.TimeLayout)
}

func (r *Renderer) resultView(o scan.Outcome, busy bool) resultView {
	v := resultView{
		State:          o.State.String(),
		Banner:         BannerFor(o.State),
		Message:        o.Message,
		ShowValidate:   o.State == scan.StateReady,
		ValidateAction: r.opts.ValidateAction,
		Busy:           busy,
	}
	if v.Message == "" {
		if o.State == scan.StateInvalid {
			v.Message = scan.MessageUnknownTicket
		} else {
			v.Message = messageNoData
		}
	}
	if o.Ticket != nil {
		v.Ticket = &ticketView{
			Token:     o.Ticket.Token,
			Title:     o.Ticket.Title,
			Purchaser: o.Ticket.Purchaser,
			CreatedAt: r.formatTime(o.Ticket.CreatedAt),
		}
		if o.Validation != nil {
			v.Validation = &validationView{
				ScannedAt: r.formatTime(o.Validation.ScannedAt),
				ScannedBy: o.Validation.ScannedBy,
			}
		}
	}
	return v
}

// Fragment renders the result container for o. The whole container is
// replaced on every render, so nothing from a previous outcome survives.
func (r *Renderer) Fragment(o scan.Outcome) (template.HTML, error) {
	return r.fragment(o, false)
}

func (r *Renderer) fragment(o scan.Outcome, busy bool) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "result", r.resultView(o, busy)); err != nil {
		return "", fmt.Errorf("render result: %w", err)
	}
	// #nosec G203 -- produced by html/template, all fields escaped
	return template.HTML(buf.String()), nil
}

// PageView is the state of the admin scan page.
type PageView struct {
	// Input is the value shown in the token field.
	Input            string
	UserKey          string
	RequireComposite bool
	// Busy disables the controls and switches the submit label.
	Busy    bool
	Notice  string
	Outcome *scan.Outcome
}

type pageData struct {
	Title            string
	SearchAction     string
	HistoryAction    string
	Input            string
	UserKey          string
	RequireComposite bool
	Busy             bool
	Notice           string
	Result           template.HTML
}

// Page renders the full admin scan page.
func (r *Renderer) Page(w io.Writer, view PageView) error {
	data := pageData{
		Title:            r.opts.Title,
		SearchAction:     r.opts.SearchAction,
		HistoryAction:    r.opts.HistoryAction,
		Input:            view.Input,
		UserKey:          view.UserKey,
		RequireComposite: view.RequireComposite,
		Busy:             view.Busy,
		Notice:           view.Notice,
	}
	if view.Outcome != nil {
		frag, err := r.fragment(*view.Outcome, view.Busy)
		if err != nil {
			return err
		}
		data.Result = frag
	}
	if err := r.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// HistoryRow is one journal line as displayed.
type HistoryRow struct {
	At        time.Time
	Operation string
	Token     string
	State     scan.State
	Message   string
	Summary   string
}

type historyRowView struct {
	At        string
	Operation string
	Token     string
	State     string
	Banner    Banner
	Message   string
	Summary   string
}

// History renders the journal page, rows in the given order.
func (r *Renderer) History(w io.Writer, rows []HistoryRow) error {
	views := make([]historyRowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, historyRowView{
			At:        row.At.In(r.opts.Location).Format(r.opts.TimeLayout),
			Operation: row.Operation,
			Token:     ShortToken(row.Token),
			State:     row.State.String(),
			Banner:    BannerFor(row.State),
			Message:   row.Message,
			Summary:   row.Summary,
		})
	}
	data := struct {
		ScanAction string
		Rows       []historyRowView
	}{ScanAction: r.opts.ScanAction, Rows: views}

	if err := r.tmpl.ExecuteTemplate(w, "history", data); err != nil {
		return fmt.Errorf("render history: %w", err)
	}
	return nil
}
