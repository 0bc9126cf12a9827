// Package telemetry configures OpenTelemetry tracing for the guard server.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is host:port, optionally prefixed with http:// or https://.
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	// LogSpans writes limiter checks and request spans through Logger.
	LogSpans bool
	Logger   zerolog.Logger
}

// SetupTracing installs the global tracer provider and W3C propagators used by
// the request and limiter spans. The caller owns the returned provider and
// must shut it down.
func SetupTracing(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
	}

	if cfg.Endpoint != "" {
		exporter, err := newOTLPExporter(ctx, cfg.Endpoint, cfg.Insecure)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	if cfg.LogSpans {
		opts = append(opts, sdktrace.WithSyncer(newLoggingExporter(cfg.Logger)))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider, nil
}

func sampleRatio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}

func newOTLPExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	host, plain, err := parseOTLPEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(host)}
	if insecure || plain {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return exporter, nil
}

// parseOTLPEndpoint strips a scheme from endpoint. plain reports an http://
// scheme, which forces an insecure exporter.
func parseOTLPEndpoint(endpoint string) (host string, plain bool, err error) {
	host = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
		plain = true
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" || strings.Contains(host, "/") {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: want host:port", endpoint)
	}
	return host, plain, nil
}
