// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures: DNS, refused connections,
	// timeouts, TLS.
	ErrUnavailable = errors.New("backend: host unreachable or transport failure")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("backend: circuit open")
	// ErrPacing means the outbound rate limiter wait was abandoned.
	ErrPacing = errors.New("backend: rate limit wait cancelled")
	// ErrInvalidRequest means the request could not be built.
	ErrInvalidRequest = errors.New("backend: invalid request")
)

// GatewayError wraps one of the sentinels above with the request context.
type GatewayError struct {
	Sentinel  error
	Operation string
	Method    string
	Path      string
	Err       error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("backend: %s %s %s: %v", e.Operation, e.Method, e.Path, e.Sentinel)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}
