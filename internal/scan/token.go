// SPDX-License-Identifier: MIT

package scan

import (
	"errors"
	"net/url"
	"strings"
)

// TokenSeparator joins a user key and a ticket token in composite tokens.
const TokenSeparator = "."

var (
	// ErrEmptyToken is returned when no token could be read from any source.
	ErrEmptyToken = errors.New("scan: empty token")
	// ErrMissingUserKey rejects a token that must be composite but is not.
	ErrMissingUserKey = errors.New("scan: composite token required")
)

// Operator guidance for the client-side rejections above.
const (
	MessageEmptyToken     = "Veuillez saisir ou scanner un billet."
	MessageMissingUserKey = "Clé utilisateur requise : scannez le QR complet ou saisissez la clé utilisateur (format cle.token)."
)

// quoteRunes are the wrappers that copy-paste tends to leave around a token.
var quoteRunes = []string{`"`, `'`, "`", "“", "”", "‘", "’", "«", "»"}

// FromURL reads the token query parameter of the scan page URL.
func FromURL(query url.Values) (string, bool) {
	tok := strings.TrimSpace(query.Get("token"))
	return tok, tok != ""
}

// FromInput normalizes a manually typed or pasted value: trim, then drop one
// leading and one trailing quote character.
func FromInput(text string) (string, bool) {
	tok := strings.TrimSpace(text)
	for _, q := range quoteRunes {
		if strings.HasPrefix(tok, q) {
			tok = strings.TrimPrefix(tok, q)
			break
		}
	}
	for _, q := range quoteRunes {
		if strings.HasSuffix(tok, q) {
			tok = strings.TrimSuffix(tok, q)
			break
		}
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// FromQRPayload turns decoded QR text into a token. A payload that is an
// absolute URL carrying a token parameter yields that parameter; anything
// else is used verbatim.
func FromQRPayload(text string) (string, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return "", false
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		if tok := strings.TrimSpace(u.Query().Get("token")); tok != "" {
			return tok, true
		}
	}
	return raw, true
}

// Compose builds the token actually submitted to the backend. A raw value
// without separator is prefixed with the user key when one is given; a raw
// value that already has a separator ignores the user key. With
// requireComposite set, a result lacking a separator is rejected.
func Compose(raw, userKey string, requireComposite bool) (string, error) {
	raw = strings.TrimSpace(raw)
	userKey = strings.TrimSpace(userKey)
	if raw == "" {
		return "", ErrEmptyToken
	}
	tok := raw
	if !strings.Contains(raw, TokenSeparator) && userKey != "" {
		tok = userKey + TokenSeparator + raw
	}
	if requireComposite && !strings.Contains(tok, TokenSeparator) {
		return "", ErrMissingUserKey
	}
	return tok, nil
}
