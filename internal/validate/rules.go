// SPDX-License-Identifier: MIT

package validate

import (
	"cmp"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// URL requires an absolute URL with a host, no userinfo, and a scheme from
// schemes when that list is non-empty.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.addf(field, value, "invalid URL: %v", err)
		return
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
		return
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		v.addf(field, value, "unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes)
	}
	if u.User != nil {
		v.AddError(field, "URL must not embed credentials", "***")
	}
}

// ListenAddr requires host:port where host is empty, localhost or an IP.
func (v *Validator) ListenAddr(field, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.addf(field, addr, "invalid listen address: %v", err)
		return
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		v.AddError(field, "listen host must be an IP address or localhost", addr)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		v.addf(field, addr, "invalid port %q", port)
	}
}

func outside[T cmp.Ordered](value, lo, hi T) bool {
	return cmp.Less(value, lo) || cmp.Less(hi, value)
}

// Range requires lo <= value <= hi.
func (v *Validator) Range(field string, value, lo, hi int) {
	if outside(value, lo, hi) {
		v.addf(field, value, "value must be between %d and %d, got %d", lo, hi, value)
	}
}

// DurationRange requires lo <= d <= hi.
func (v *Validator) DurationRange(field string, d, lo, hi time.Duration) {
	if outside(d, lo, hi) {
		v.addf(field, d.String(), "duration must be between %s and %s, got %s", lo, hi, d)
	}
}

// NonNegative requires value >= 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.addf(field, value, "value cannot be negative, got %d", value)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.addf(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

// Custom records the error returned by check, if any.
func (v *Validator) Custom(field string, value any, check func(any) error) {
	if err := check(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}

// FilePath requires a path naming a file with no ".." segments.
func (v *Validator) FilePath(field, path string) {
	switch {
	case strings.TrimSpace(path) == "":
		v.AddError(field, "path cannot be empty", path)
	case strings.HasSuffix(path, string(filepath.Separator)):
		v.AddError(field, "path must name a file, not a directory", path)
	case slices.Contains(strings.Split(filepath.ToSlash(path), "/"), ".."):
		v.addf(field, path, "contains path traversal: %s", path)
	}
}

// logLevels are the zerolog levels an operator may configure.
var logLevels = []zerolog.Level{
	zerolog.TraceLevel,
	zerolog.DebugLevel,
	zerolog.InfoLevel,
	zerolog.WarnLevel,
	zerolog.ErrorLevel,
}

// ParseLogLevel accepts trace, debug, info, warn and error.
func ParseLogLevel(s string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || !slices.Contains(logLevels, lvl) {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q (must be: trace, debug, info, warn, error)", s)
	}
	return lvl, nil
}
