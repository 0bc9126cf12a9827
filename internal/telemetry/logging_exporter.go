package telemetry

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	checkSpanName   = "ratelimit.check"
	limiterAttrRoot = "ratelimit."
)

// loggingExporter turns finished spans into log lines. Limiter checks are
// flattened into limiter/limit/count/allowed fields; rejected checks and
// failed spans are raised above debug so they show at the default level.
type loggingExporter struct {
	logger zerolog.Logger
}

var _ sdktrace.SpanExporter = (*loggingExporter)(nil)

func newLoggingExporter(logger zerolog.Logger) sdktrace.SpanExporter {
	return &loggingExporter{logger: logger.With().Str("component", "otel").Logger()}
}

func (l *loggingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		if span.Name() == checkSpanName {
			l.logCheck(span)
			continue
		}
		l.logSpan(span)
	}
	return nil
}

func (l *loggingExporter) logCheck(span sdktrace.ReadOnlySpan) {
	fields := make(map[string]any, 4)
	allowed := true
	for _, attr := range span.Attributes() {
		key := string(attr.Key)
		if !strings.HasPrefix(key, limiterAttrRoot) {
			continue
		}
		name := strings.TrimPrefix(key, limiterAttrRoot)
		fields[name] = attr.Value.AsInterface()
		if name == "allowed" {
			allowed = attr.Value.AsBool()
		}
	}

	event := l.logger.Debug()
	switch {
	case span.Status().Code == codes.Error:
		event = l.logger.Warn().Str("error", span.Status().Description)
	case !allowed:
		event = l.logger.Info()
	}
	withIDs(event, span).
		Fields(fields).
		Dur("duration", span.EndTime().Sub(span.StartTime())).
		Msg("rate limit check")
}

func (l *loggingExporter) logSpan(span sdktrace.ReadOnlySpan) {
	event := l.logger.Debug()
	if span.Status().Code == codes.Error {
		event = l.logger.Warn()
	}
	fields := make(map[string]any, len(span.Attributes()))
	for _, attr := range span.Attributes() {
		fields[string(attr.Key)] = attr.Value.AsInterface()
	}
	withIDs(event, span).
		Str("span_name", span.Name()).
		Fields(fields).
		Dur("duration", span.EndTime().Sub(span.StartTime())).
		Msg("span finished")
}

func withIDs(event *zerolog.Event, span sdktrace.ReadOnlySpan) *zerolog.Event {
	sc := span.SpanContext()
	if sc.TraceID().IsValid() {
		event = event.Str("trace_id", sc.TraceID().String())
	}
	if parent := span.Parent(); parent.IsValid() {
		event = event.Str("parent_span_id", parent.SpanID().String())
	}
	return event
}

func (l *loggingExporter) Shutdown(context.Context) error { return nil }

func (l *loggingExporter) ForceFlush(context.Context) error { return nil }
