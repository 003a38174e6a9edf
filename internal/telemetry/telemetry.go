package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/AhmedAl-shari/GoldVision/internal/config"
)

const (
	// Service information
	ServiceName    = "goldvision-forecast"
	ServiceVersion = "1.0.0"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Provider holds the installed tracer provider. Shutdown is always safe to call.
type Provider struct {
	Shutdown func(context.Context) error
	logger   *slog.Logger
}

// InitTelemetry installs the global tracer provider and W3C propagator.
// A disabled config leaves the global no-op provider in place.
func InitTelemetry(ctx context.Context, cfg config.TelemetryConfig, environment string, logger *slog.Logger) (*Provider, error) {
	return initTelemetry(ctx, cfg, environment, logger, os.Stdout)
}

func initTelemetry(ctx context.Context, cfg config.TelemetryConfig, environment string, logger *slog.Logger, stdout io.Writer) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Info("Telemetry disabled")
		return &Provider{Shutdown: func(context.Context) error { return nil }, logger: logger}, nil
	}

	exporter, err := newExporter(ctx, cfg, stdout)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	serviceVersion := cfg.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = ServiceVersion
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		semconv.DeploymentEnvironment(environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		"exporter", cfg.Exporter,
		"service", serviceName,
		"version", serviceVersion,
	)

	return &Provider{Shutdown: tp.Shutdown, logger: logger}, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case ExporterOTLP, "":
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:4318"
		}
		hostport, urlPath, insecure, _, err := normalizeOTLPEndpoint(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid OTLPEndpoint %q: %w", endpoint, err)
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(urlPath),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}
}

// normalizeOTLPEndpoint splits a collector base URL into the pieces the
// OTLP/HTTP exporter wants, appending /v1/traces when missing.
func normalizeOTLPEndpoint(endpoint string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", false, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false, "", fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return "", "", false, "", fmt.Errorf("missing host")
	}

	urlPath = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(urlPath, "/v1/traces") {
		urlPath += "/v1/traces"
	}
	insecure = u.Scheme == "http"
	resolved = u.Scheme + "://" + u.Host + urlPath
	return u.Host, urlPath, insecure, resolved, nil
}

// GetTracer returns a named tracer from the global provider
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// GetCacheTracer returns the tracer used by the forecast cache
func GetCacheTracer() trace.Tracer {
	return GetTracer(ServiceName + "/cache")
}

// RecordError marks span as failed with err
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
