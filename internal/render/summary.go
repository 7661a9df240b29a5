// SPDX-License-Identifier: MIT

package render

import (
	"strings"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

const defaultTicketTitle = "Billet"

// ShortToken abbreviates tokens longer than 12 characters to their first and
// last four characters.
func ShortToken(t string) string {
	r := []rune(t)
	if len(r) <= 12 {
		return t
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}

// Summary is the one-line ticket description used in notices, logs and the
// journal: "title — purchaser — abcd…wxyz". It is empty without a ticket.
func Summary(o scan.Outcome) string {
	if o.Ticket == nil {
		return ""
	}
	title := o.Ticket.Title
	if title == "" {
		title = defaultTicketTitle
	}
	parts := []string{title}
	if o.Ticket.Purchaser != "" {
		parts = append(parts, o.Ticket.Purchaser)
	}
	if o.Ticket.Token != "" {
		parts = append(parts, ShortToken(o.Ticket.Token))
	}
	return strings.Join(parts, " — ")
}

// Notice is the short status line shown after an operation, prefixed by the
// outcome and followed by the summary when a ticket is known.
func Notice(o scan.Outcome) string {
	var head string
	switch o.State {
	case scan.StateValidated:
		head = scan.MessageValidated
	case scan.StateAlreadyValidated:
		head = scan.MessageAlreadyValidated
	case scan.StateReady:
		head = BannerFor(scan.StateReady).Label
	default:
		if o.Message != "" {
			return o.Message
		}
		return scan.MessageUnknownTicket
	}
	if s := Summary(o); s != "" {
		return head + " : " + s
	}
	return head
}
