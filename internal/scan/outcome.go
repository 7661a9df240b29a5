// SPDX-License-Identifier: MIT

package scan

import (
	"strings"
	"time"
)

// State is the closed outcome tag of one lookup or validate cycle.
type State int

const (
	// StateInvalid means the token is unknown or no ticket could be resolved.
	StateInvalid State = iota
	// StateReady means the ticket exists and has not been validated yet.
	StateReady
	// StateValidated means the validate call just succeeded.
	StateValidated
	// StateAlreadyValidated means the ticket had already been validated.
	StateAlreadyValidated
)

// String returns the stable identifier used in metrics, logs and the journal.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateValidated:
		return "validated"
	case StateAlreadyValidated:
		return "already_validated"
	default:
		return "invalid"
	}
}

// ParseState is the inverse of State.String. Unknown values map to StateInvalid.
func ParseState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ready", "scanned":
		return StateReady
	case "validated":
		return StateValidated
	case "already_validated":
		return StateAlreadyValidated
	default:
		return StateInvalid
	}
}

// OperationKind selects the classification rules.
type OperationKind string

const (
	OpLookup   OperationKind = "lookup"
	OpValidate OperationKind = "validate"
)

// Timestamp keeps the backend value verbatim next to its parsed form so a
// value that does not parse still renders instead of vanishing.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// IsZero reports whether the backend supplied no value at all.
func (t Timestamp) IsZero() bool { return t.Raw == "" }

// Format renders the parsed time in the given layout, or the raw value when
// parsing failed.
func (t Timestamp) Format(layout string) string {
	if t.Time.IsZero() {
		return t.Raw
	}
	return t.Time.Format(layout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp tolerates the formats the backend has emitted over time.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	ts := Timestamp{Raw: raw}
	if raw == "" {
		return ts
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			ts.Time = parsed
			return ts
		}
	}
	return ts
}

// TicketDetail is the read-only ticket view extracted from a backend envelope.
// Every field is optional.
type TicketDetail struct {
	Token     string
	Title     string
	Purchaser string
	CreatedAt Timestamp
}

// ValidationDetail describes a past or just-performed validation.
type ValidationDetail struct {
	ScannedAt Timestamp
	ScannedBy string
}

// Outcome is produced fresh for every request/response cycle and never mutated.
type Outcome struct {
	State      State
	Message    string
	Ticket     *TicketDetail
	Validation *ValidationDetail
	// Fallback is set when a validate response was accepted only because it
	// carried both a ticket and a validation record without a clear status.
	Fallback bool
}

// HasTicket reports whether a ticket detail block should be rendered.
func (o Outcome) HasTicket() bool { return o.Ticket != nil }
