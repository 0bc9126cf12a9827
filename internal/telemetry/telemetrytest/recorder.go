// Package telemetrytest captures spans in memory for tests.
package telemetrytest

import (
	"context"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecorder is a span processor that keeps finished spans in memory, for
// tests that assert on tracing output.
type SpanRecorder struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

var _ sdktrace.SpanProcessor = (*SpanRecorder)(nil)

func NewSpanRecorder() *SpanRecorder {
	return &SpanRecorder{}
}

func (r *SpanRecorder) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (r *SpanRecorder) OnEnd(span sdktrace.ReadOnlySpan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

func (r *SpanRecorder) Shutdown(context.Context) error { return nil }

func (r *SpanRecorder) ForceFlush(context.Context) error { return nil }

func (r *SpanRecorder) FirstSpanNamed(name string) sdktrace.ReadOnlySpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, span := range r.spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}
