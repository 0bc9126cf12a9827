// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

const rateLimitExceededMessage = "you have reached the maximum number of requests or actions allowed within a certain time frame"

type Options struct {
	// KeyFn defaults to ByIP(false).
	KeyFn KeyFunc
	// FailOpen lets requests through when the store cannot be reached.
	// Otherwise they get 503.
	FailOpen bool
	Stats    ports.StatsRecorder
	Logger   zerolog.Logger
}

// NewRateLimiterMiddleware checks every request against limiter before calling
// next. Rejections are answered with 429 and a Retry-After header.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, limit int, opts Options) func(http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ByIP(false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := requestLogger(ctx, opts.Logger)
			token := opts.KeyFn(r)

			decision, err := limiter.Check(ctx, limit, token)
			switch {
			case err == nil:
			case domain.IsRateLimitExceeded(err):
			case domain.IsStoreError(err):
				logger.Error().Err(err).Str("limiter", limiter.Name()).Bool("fail_open", opts.FailOpen).Msg("rate limiter store failed")
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, r, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return
			default:
				logger.Error().Err(err).Str("limiter", limiter.Name()).Msg("rate limiter failed")
				writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}

			recordStats(r, opts, logger, decision, limiter.Name(), token)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				logger.Warn().Str("limiter", limiter.Name()).Str("token", token).Int64("count", decision.Count).Msg("request rate limited")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.ResetAfter)))
				writeError(w, r, http.StatusTooManyRequests, rateLimitExceededMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func recordStats(r *http.Request, opts Options, logger zerolog.Logger, decision domain.Decision, limiter, token string) {
	if opts.Stats == nil {
		return
	}
	err := opts.Stats.Record(r.Context(), domain.StatsEvent{
		Limiter: limiter,
		Token:   token,
		Allowed: decision.Allowed,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("rate limit stats not recorded")
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      message,
		"request_id": RequestID(r.Context()),
	})
}
