// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"html/template"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

// Banner is the status strip shown on top of every result.
type Banner struct {
	Label      string
	Color      string
	Background string
}

const (
	colorRed     = "#DC2626"
	bgRed        = "#FEE2E2"
	colorAmber   = "#D97706"
	bgAmber      = "#FEF3C7"
	colorGreen   = "#16A34A"
	bgGreen      = "#D1FAE5"
	labelUnknown = "Inconnu"
)

// BannerFor maps an outcome state to its label and colours.
func BannerFor(s scan.State) Banner {
	switch s {
	case scan.StateReady:
		return Banner{Label: "Prêt à valider", Color: colorAmber, Background: bgAmber}
	case scan.StateValidated:
		return Banner{Label: "Validé", Color: colorGreen, Background: bgGreen}
	case scan.StateAlreadyValidated:
		return Banner{Label: "Déjà validé", Color: colorGreen, Background: bgGreen}
	case scan.StateInvalid:
		return Banner{Label: "Invalide", Color: colorRed, Background: bgRed}
	default:
		return Banner{Label: labelUnknown, Color: colorRed, Background: bgRed}
	}
}

// Style is the inline CSS of the banner. The colours are package constants.
func (b Banner) Style() template.CSS {
	return template.CSS(fmt.Sprintf(
		"padding:10px 12px;border:1px solid %s;background:%s;color:%s;border-radius:8px;font-weight:600;margin-bottom:12px",
		b.Color, b.Background, b.Color,
	))
}
