// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)
	assert.NoError(t, provider.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "joscan", ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "joscan",
		ExporterType: "http",
		Endpoint:     "127.0.0.1:4318",
		Insecure:     true,
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, provider.tp)

	_, span := Tracer("test").Start(context.Background(), "root")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = provider.Shutdown(ctx)
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1.0).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestShutdown_NilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestScanAttributes(t *testing.T) {
	attrs := ScanAttributes("validate", "validated", "u42.…c123", true)
	assert.ElementsMatch(t, []attribute.KeyValue{
		ScanOperationKey.String("validate"),
		ScanOutcomeKey.String("validated"),
		ScanTokenKey.String("u42.…c123"),
		ScanFallbackKey.Bool(true),
	}, attrs)

	assert.Empty(t, ScanAttributes("", "", "", false))
}

func TestBackendCallAttributes(t *testing.T) {
	attrs := BackendCallAttributes("POST", "/api/v1/validation/scan")
	require.Len(t, attrs, 2)
	assert.Equal(t, "http.request.method", string(attrs[0].Key))
	assert.Equal(t, "/api/v1/validation/scan", attrs[1].Value.AsString())
	assert.Equal(t, int64(503), StatusAttribute(503).Value.AsInt64())
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("network_error")
	require.Len(t, attrs, 2)
	assert.True(t, attrs[0].Value.AsBool())
	assert.Equal(t, "error.type", string(attrs[1].Key))
	assert.Equal(t, "network_error", attrs[1].Value.AsString())
}
