// SPDX-License-Identifier: MIT

package scan

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default operator-facing messages.
const (
	MessageUnknownTicket    = "Billet inconnu"
	MessageValidated        = "Billet validé"
	MessageAlreadyValidated = "Déjà validé"
)

// alreadyValidatedPhrases are matched against the folded message (lower case,
// accents stripped).
var alreadyValidatedPhrases = []string{
	"deja valid",
	"deja scann",
	"already valid",
	"already scanned",
}

// Classify maps an arbitrary backend envelope onto a closed Outcome. The
// rules are applied in a fixed order; see the package tests for every
// envelope shape the backend has produced. Classify is pure and never panics.
func Classify(raw RawResult, kind OperationKind) Outcome {
	if raw.Status == http.StatusNotFound {
		msg := firstNonEmpty(
			firstString(raw.Body, "message", "detail"),
			firstString(object(raw.Body["data"]), "message", "detail"),
			MessageUnknownTicket,
		)
		return Outcome{State: StateInvalid, Message: msg}
	}

	data := object(raw.Body["data"])
	if data == nil {
		data = raw.Body
	}
	if data == nil {
		data = map[string]any{}
	}

	ticket := firstObject(data["ticket"], data["billet"], object(data["data"])["ticket"])
	validation := firstObject(data["validation"], data["scan"])
	status := strings.ToLower(stringify(firstTruthy(data["status"], data["result"])))
	msg := firstString(data, "message", "detail")

	switch kind {
	case OpLookup:
		switch {
		case ticket != nil && validation != nil:
			return Outcome{State: StateAlreadyValidated, Message: msg, Ticket: ticketDetail(ticket), Validation: validationDetail(validation)}
		case ticket != nil:
			return Outcome{State: StateReady, Message: msg, Ticket: ticketDetail(ticket)}
		}
	case OpValidate:
		if status == "already_validated" || mentionsAlreadyValidated(msg) {
			return Outcome{
				State:      StateAlreadyValidated,
				Message:    orDefault(msg, MessageAlreadyValidated),
				Ticket:     ticketDetail(ticket),
				Validation: validationDetail(validation),
			}
		}
		flagged, _ := data["validated"].(bool)
		if status == "validated" || status == "success" || status == "ok" || flagged {
			return Outcome{
				State:      StateValidated,
				Message:    orDefault(msg, MessageValidated),
				Ticket:     ticketDetail(ticket),
				Validation: validationDetail(validation),
			}
		}
		if ticket != nil && validation != nil {
			return Outcome{
				State:      StateValidated,
				Message:    orDefault(msg, MessageValidated),
				Ticket:     ticketDetail(ticket),
				Validation: validationDetail(validation),
				Fallback:   true,
			}
		}
	}

	return Outcome{State: StateInvalid, Message: orDefault(msg, MessageUnknownTicket)}
}

func mentionsAlreadyValidated(msg string) bool {
	if msg == "" {
		return false
	}
	folded := foldMessage(msg)
	for _, phrase := range alreadyValidatedPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}

// foldMessage lower-cases and strips combining marks so "DÉJÀ VALIDÉ" and
// "deja valide" compare equal.
func foldMessage(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

func ticketDetail(m map[string]any) *TicketDetail {
	if m == nil {
		return nil
	}
	return &TicketDetail{
		Token: stringify(m["token"]),
		Title: firstNonEmpty(
			stringify(m["title"]),
			stringify(object(m["offre"])["title"]),
			stringify(object(m["offer"])["title"]),
			stringify(m["offer_title"]),
		),
		Purchaser: firstNonEmpty(
			stringify(m["userEmail"]),
			stringify(m["user_email"]),
			stringify(object(m["users"])["email"]),
			stringify(m["email"]),
			stringify(m["purchaser"]),
			stringify(m["name"]),
		),
		CreatedAt: ParseTimestamp(firstNonEmpty(stringify(m["created_at"]), stringify(m["createdAt"]))),
	}
}

func validationDetail(m map[string]any) *ValidationDetail {
	if m == nil {
		return nil
	}
	return &ValidationDetail{
		ScannedAt: ParseTimestamp(firstNonEmpty(
			stringify(m["scanned_at"]),
			stringify(m["scannedAt"]),
			stringify(m["created_at"]),
		)),
		ScannedBy: firstNonEmpty(
			stringify(m["scanned_by"]),
			stringify(m["scannedBy"]),
			stringify(m["operator"]),
		),
	}
}

// object returns v as a JSON object, or nil. Indexing a nil map is safe,
// which keeps the nested lookups above flat.
func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func firstObject(vals ...any) map[string]any {
	for _, v := range vals {
		if m := object(v); m != nil {
			return m
		}
	}
	return nil
}

// firstTruthy mirrors the backend's "a || b" envelope conventions: empty
// strings, zero, false and null fall through to the next candidate.
func firstTruthy(vals ...any) any {
	for _, v := range vals {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t == "" {
				continue
			}
		case bool:
			if !t {
				continue
			}
		case float64:
			if t == 0 {
				continue
			}
		}
		return v
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
