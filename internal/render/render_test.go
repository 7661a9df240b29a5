// SPDX-License-Identifier: MIT

package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{Location: time.UTC})
	require.NoError(t, err)
	return r
}

// parseFragment parses rendered HTML and indexes nodes for assertions.
type doc struct {
	root *html.Node
}

func parse(t *testing.T, s string) doc {
	t.Helper()
	root, err := html.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc{root: root}
}

func (d doc) find(match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func (d doc) byClass(class string) []*html.Node {
	return d.find(func(n *html.Node) bool { return n.Type == html.ElementNode && hasClass(n, class) })
}

func (d doc) byTag(tag string) []*html.Node {
	return d.find(func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag })
}

func (d doc) byID(id string) []*html.Node {
	return d.find(func(n *html.Node) bool { return n.Type == html.ElementNode && attr(n, "id") == id })
}

func renderFragment(t *testing.T, r *Renderer, o scan.Outcome) doc {
	t.Helper()
	frag, err := r.Fragment(o)
	require.NoError(t, err)
	return parse(t, string(frag))
}

func TestFragment_ReadyShowsValidateButton(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Classify(scan.RawResult{Status: 200, Body: map[string]any{
		"ticket": map[string]any{"token": "T1", "title": "Concert"}, "validation": nil,
	}}, scan.OpLookup)

	d := renderFragment(t, r, o)

	banners := d.byClass("scan-banner")
	require.Len(t, banners, 1)
	assert.Equal(t, "Prêt à valider", text(banners[0]))
	assert.Contains(t, attr(banners[0], "style"), colorAmber)
	assert.Contains(t, attr(banners[0], "style"), bgAmber)

	assert.Contains(t, text(d.byClass("scan-ticket")[0]), "Concert")

	forms := d.byClass("scan-validate")
	require.Len(t, forms, 1)
	assert.Equal(t, DefaultValidateAction, attr(forms[0], "action"))
	assert.Equal(t, "post", attr(forms[0], "method"))
	assert.Empty(t, d.byTag("input"), "validate form must not carry a token field")
	assert.Equal(t, "Valider le billet", text(d.byTag("button")[0]))
}

func TestFragment_AlreadyValidatedFromValidate(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Classify(scan.RawResult{Status: 200, Body: map[string]any{
		"status": "already_validated", "message": "Déjà validé",
	}}, scan.OpValidate)

	d := renderFragment(t, r, o)

	banner := d.byClass("scan-banner")[0]
	assert.Equal(t, "Déjà validé", text(banner))
	assert.Contains(t, attr(banner, "style"), colorGreen)
	assert.Equal(t, "Déjà validé", text(d.byClass("scan-message")[0]))
	assert.Empty(t, d.byTag("button"))
}

func TestFragment_UnknownTicket(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Classify(scan.RawResult{Status: 404, Body: map[string]any{"message": "Billet inconnu"}}, scan.OpLookup)

	d := renderFragment(t, r, o)

	banner := d.byClass("scan-banner")[0]
	assert.Equal(t, "Invalide", text(banner))
	assert.Contains(t, attr(banner, "style"), colorRed)
	assert.Equal(t, "Billet inconnu", text(d.byClass("scan-message")[0]))
	assert.Empty(t, d.byClass("scan-ticket"))
	assert.Empty(t, d.byTag("button"))
}

func TestFragment_InvalidWithoutMessageDefaults(t *testing.T) {
	r := newTestRenderer(t)
	d := renderFragment(t, r, scan.Outcome{State: scan.StateInvalid})
	assert.Equal(t, scan.MessageUnknownTicket, text(d.byClass("scan-message")[0]))
}

func TestFragment_EscapesBackendText(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Outcome{State: scan.StateReady, Ticket: &scan.TicketDetail{
		Token:     `<script>alert(1)</script>`,
		Title:     `Finale "100m" & <b>relais</b>`,
		Purchaser: `x@example.org`,
	}}

	frag, err := r.Fragment(o)
	require.NoError(t, err)
	assert.NotContains(t, string(frag), "<script>")
	assert.NotContains(t, string(frag), "<b>relais</b>")

	d := parse(t, string(frag))
	assert.Empty(t, d.byTag("script"))
	assert.Contains(t, text(d.byClass("scan-ticket")[0]), `Finale "100m" & <b>relais</b>`)
}

func TestFragment_OmitsEmptyDetailLines(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Outcome{
		State:      scan.StateAlreadyValidated,
		Ticket:     &scan.TicketDetail{Token: "T1"},
		Validation: &scan.ValidationDetail{ScannedBy: "agent-7"},
	}

	d := renderFragment(t, r, o)
	details := text(d.byClass("scan-ticket")[0])
	assert.Contains(t, details, "Token: T1")
	assert.NotContains(t, details, "Détails")
	assert.NotContains(t, details, "Acheteur")
	assert.NotContains(t, details, "Créé le")
	assert.NotContains(t, details, "Scanné le")
	assert.Contains(t, details, "Scanné par: agent-7")
}

func TestFragment_FormatsTimestamps(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Outcome{
		State: scan.StateAlreadyValidated,
		Ticket: &scan.TicketDetail{
			Token:     "T1",
			CreatedAt: scan.ParseTimestamp("2024-07-20T08:30:00Z"),
		},
		Validation: &scan.ValidationDetail{ScannedAt: scan.ParseTimestamp("hier soir")},
	}

	details := text(renderFragment(t, r, o).byClass("scan-ticket")[0])
	assert.Contains(t, details, "Créé le: 20/07/2024 08:30:00")
	assert.Contains(t, details, "Scanné le: hier soir")
}

func TestFragment_ReplacesContainer(t *testing.T) {
	r := newTestRenderer(t)
	d := renderFragment(t, r, scan.Outcome{State: scan.StateValidated, Message: "Billet validé"})
	containers := d.byID("validation-result")
	require.Len(t, containers, 1)
	assert.Equal(t, "validated", attr(containers[0], "data-state"))
}

func TestBannerFor(t *testing.T) {
	tests := []struct {
		state scan.State
		label string
		color string
	}{
		{scan.StateInvalid, "Invalide", colorRed},
		{scan.StateReady, "Prêt à valider", colorAmber},
		{scan.StateValidated, "Validé", colorGreen},
		{scan.StateAlreadyValidated, "Déjà validé", colorGreen},
		{scan.State(42), labelUnknown, colorRed},
	}
	for _, tt := range tests {
		b := BannerFor(tt.state)
		assert.Equal(t, tt.label, b.Label)
		assert.Equal(t, tt.color, b.Color)
	}
}

func TestPage(t *testing.T) {
	r := newTestRenderer(t)
	o := scan.Outcome{State: scan.StateReady, Ticket: &scan.TicketDetail{Token: "T1", Title: "Concert"}}

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, PageView{Input: `T1"><x`, UserKey: "u42", Outcome: &o}))
	d := parse(t, buf.String())

	input := d.byID("ticket-token")
	require.Len(t, input, 1)
	assert.Equal(t, `T1"><x`, attr(input[0], "value"))
	assert.Equal(t, "u42", attr(d.byID("user-key")[0], "value"))
	assert.Equal(t, "Rechercher", text(d.byID("scan-submit")[0]))
	assert.Len(t, d.byID("validation-result"), 1)
	assert.Len(t, d.byClass("scan-validate"), 1)
}

func TestPage_BusyDisablesControls(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, PageView{Busy: true, Notice: "Une opération est déjà en cours."}))
	d := parse(t, buf.String())

	submit := d.byID("scan-submit")[0]
	assert.Equal(t, "Validation…", text(submit))
	_, disabled := attrPresent(submit, "disabled")
	assert.True(t, disabled)
	assert.Equal(t, "Une opération est déjà en cours.", text(d.byClass("scan-notice")[0]))
	assert.Empty(t, text(d.byID("validation-result")[0]))
}

func attrPresent(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func TestHistory(t *testing.T) {
	r := newTestRenderer(t)
	rows := []HistoryRow{
		{At: time.Date(2024, 7, 26, 19, 0, 0, 0, time.UTC), Operation: "validate", Token: "u42.abcdefghijklmnop", State: scan.StateValidated, Summary: "Concert"},
		{At: time.Date(2024, 7, 26, 18, 0, 0, 0, time.UTC), Operation: "lookup", Token: "nope", State: scan.StateInvalid, Message: "Billet inconnu"},
	}

	var buf bytes.Buffer
	require.NoError(t, r.History(&buf, rows))
	d := parse(t, buf.String())

	trs := d.find(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr" && attr(n, "data-state") != ""
	})
	require.Len(t, trs, 2)
	assert.Equal(t, "validated", attr(trs[0], "data-state"))
	assert.Contains(t, text(trs[0]), "26/07/2024 19:00:00")
	assert.Contains(t, text(trs[0]), "u42.…mnop")
	assert.Contains(t, text(trs[1]), "Invalide")
}

func TestHistory_Empty(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.History(&buf, nil))
	assert.Contains(t, buf.String(), "Aucun scan enregistré.")
}

func TestTerminal(t *testing.T) {
	r := newTestRenderer(t)
	out := r.Terminal(scan.Outcome{
		State:      scan.StateAlreadyValidated,
		Ticket:     &scan.TicketDetail{Token: "T1", Title: "Concert", Purchaser: "a@b.fr"},
		Validation: &scan.ValidationDetail{ScannedBy: "agent-7"},
	})
	assert.Contains(t, out, "Déjà validé")
	assert.Contains(t, out, "Concert")
	assert.Contains(t, out, "agent-7")
	assert.NotContains(t, out, "Créé le")

	out = r.Terminal(scan.Outcome{State: scan.StateInvalid})
	assert.Contains(t, out, "Invalide")
	assert.Contains(t, out, scan.MessageUnknownTicket)

	out = r.Terminal(scan.Outcome{State: scan.StateReady, Ticket: &scan.TicketDetail{Token: "T1"}})
	assert.Contains(t, out, "joscan validate")
}
