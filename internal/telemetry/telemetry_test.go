package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AhmedAl-shari/GoldVision/internal/config"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestInitTelemetry_Disabled(t *testing.T) {
	restoreGlobals(t)
	otel.SetTracerProvider(noop.NewTracerProvider())

	provider, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false}, "test", nil)

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.logger)
	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.IsType(t, noop.NewTracerProvider(), otel.GetTracerProvider())
}

func TestInitTelemetry_StdoutExporter(t *testing.T) {
	restoreGlobals(t)
	var out bytes.Buffer

	provider, err := initTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Exporter: ExporterStdout,
	}, "test", slog.Default(), &out)
	require.NoError(t, err)

	_, span := GetTracer("test").Start(context.Background(), "forecast.run")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	assert.Contains(t, out.String(), "forecast.run")
	assert.Contains(t, out.String(), ServiceName)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestInitTelemetry_OTLPExporter(t *testing.T) {
	restoreGlobals(t)

	provider, err := InitTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:        true,
		Exporter:       ExporterOTLP,
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
	}, "test", nil)

	require.NoError(t, err)
	assert.NotNil(t, provider.Shutdown)
}

func TestInitTelemetry_Errors(t *testing.T) {
	restoreGlobals(t)

	_, err := InitTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		Exporter:     ExporterOTLP,
		OTLPEndpoint: "invalid-url://[invalid",
	}, "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")

	_, err = InitTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Exporter: "zipkin",
	}, "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown telemetry exporter")
}

func TestTracerGetters(t *testing.T) {
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetCacheTracer())
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, errors.New("adapter failed"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "adapter failed", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)

	assert.NotPanics(t, func() {
		RecordError(trace.SpanFromContext(context.Background()), errors.New("ignored"))
	})
}
