package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	RequestIDHeader = "X-Request-ID"
	tracerName      = "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/http"
)

type requestIDKey struct{}

// statusRecorder captures the status written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// NewRequestContextMiddleware assigns a request id, stores a request-scoped
// logger in the context and wraps the request in a server span.
func NewRequestContextMiddleware(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = xid.New().String()
			}
			w.Header().Set(RequestIDHeader, reqID)

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.RequestURI()),
				attribute.String("request.id", reqID),
			)

			logger := base.With().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
			ctx = logger.WithContext(context.WithValue(ctx, requestIDKey{}, reqID))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(attribute.String("http.route", pattern))
				}
			}
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}

// RequestID returns the id assigned by NewRequestContextMiddleware, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func requestLogger(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger := zerolog.Ctx(ctx); logger.GetLevel() != zerolog.Disabled {
		return *logger
	}
	return fallback
}
