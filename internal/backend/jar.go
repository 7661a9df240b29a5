// SPDX-License-Identifier: MIT

package backend

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CSRF cookie names, current first.
const (
	CSRFCookie       = "csrf_token"
	LegacyCSRFCookie = "csrftoken"
	CSRFHeader       = "X-CSRF-Token"
)

// NewJar returns an empty cookie jar using the public suffix list, so backend
// cookies scoped to a registrable domain behave as in a browser.
func NewJar() *cookiejar.Jar {
	// cookiejar.New only fails on a nil PublicSuffixList option.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// SeedCookies stores cookies into jar as if base had set them. Only cookies
// whose name is in allow are copied; an empty allow list copies none.
func SeedCookies(jar http.CookieJar, base *url.URL, cookies []*http.Cookie, allow []string) int {
	if jar == nil || base == nil {
		return 0
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		allowed[strings.TrimSpace(name)] = struct{}{}
	}

	var seeded []*http.Cookie
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if _, ok := allowed[c.Name]; !ok {
			continue
		}
		// Inbound cookies carry only name and value; scope them to the backend.
		seeded = append(seeded, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	if len(seeded) > 0 {
		jar.SetCookies(base, seeded)
	}
	return len(seeded)
}

// ParseCookieArgs parses "name=value" pairs as given on the command line.
func ParseCookieArgs(args []string) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}

// csrfToken reads the CSRF cookie the jar would send to u.
func csrfToken(jar http.CookieJar, u *url.URL) string {
	if jar == nil {
		return ""
	}
	var legacy string
	for _, c := range jar.Cookies(u) {
		switch c.Name {
		case CSRFCookie:
			if c.Value != "" {
				return c.Value
			}
		case LegacyCSRFCookie:
			if legacy == "" {
				legacy = c.Value
			}
		}
	}
	return legacy
}

func isReadOnly(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
