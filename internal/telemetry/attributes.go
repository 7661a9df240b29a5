// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Scan span attributes. Tokens are only ever recorded shortened.
const (
	ScanOperationKey = attribute.Key("scan.operation")
	ScanOutcomeKey   = attribute.Key("scan.outcome")
	ScanFallbackKey  = attribute.Key("scan.fallback")
	ScanTokenKey     = attribute.Key("scan.token_short")
	ScanSessionKey   = attribute.Key("scan.session_id")
)

// BackendCallAttributes names an outbound backend request by method and
// route template.
func BackendCallAttributes(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPRoute(route),
	}
}

// StatusAttribute is the HTTP status the backend answered with.
func StatusAttribute(code int) attribute.KeyValue {
	return semconv.HTTPResponseStatusCode(code)
}

// SessionAttribute tags a span with the operator session.
func SessionAttribute(id string) attribute.KeyValue {
	return ScanSessionKey.String(id)
}

// ScanAttributes describes one classified scan cycle. Empty values and a
// false fallback are left out.
func ScanAttributes(operation, outcome, shortToken string, fallback bool) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, kv := range []attribute.KeyValue{
		ScanOperationKey.String(operation),
		ScanOutcomeKey.String(outcome),
		ScanTokenKey.String(shortToken),
	} {
		if kv.Value.AsString() != "" {
			attrs = append(attrs, kv)
		}
	}
	if fallback {
		attrs = append(attrs, ScanFallbackKey.Bool(true))
	}
	return attrs
}

// ErrorAttributes classifies a failed span.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		semconv.ErrorTypeKey.String(kind),
	}
}
