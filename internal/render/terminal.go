// SPDX-License-Identifier: MIT

package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

// Terminal renders an outcome for the command line: a coloured banner
// followed by the same detail lines as the HTML fragment.
func (r *Renderer) Terminal(o scan.Outcome) string {
	banner := BannerFor(o.State)
	bannerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color(banner.Color)).
		Background(lipgloss.Color(banner.Background)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(banner.Color))
	keyStyle := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Faint(true)

	view := r.resultView(o, false)
	var b strings.Builder
	b.WriteString(bannerStyle.Render(banner.Label))
	b.WriteString("\n")

	line := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteString(keyStyle.Render(key+":") + " " + value + "\n")
	}

	if view.Ticket == nil {
		b.WriteString(view.Message + "\n")
	} else {
		line("Token", view.Ticket.Token)
		line("Détails", view.Ticket.Title)
		line("Acheteur", view.Ticket.Purchaser)
		line("Créé le", view.Ticket.CreatedAt)
		if view.Validation != nil {
			line("Scanné le", view.Validation.ScannedAt)
			line("Scanné par", view.Validation.ScannedBy)
		}
		if o.Message != "" {
			b.WriteString(faint.Render(o.Message) + "\n")
		}
	}
	if view.ShowValidate {
		b.WriteString(faint.Render("Prêt à valider : joscan validate <token>") + "\n")
	}
	return b.String()
}
