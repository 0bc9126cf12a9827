package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage/memory"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newLimiter(t *testing.T, window time.Duration) *services.RateLimiterService {
	t.Helper()
	storage := memory.New(memory.WithCleanupEvery(0))
	t.Cleanup(func() { _ = storage.Close() })
	limiter, err := services.NewRateLimiterService(storage, services.Config{Name: "api", Window: window})
	require.NoError(t, err)
	return limiter
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterMiddleware_AllowsThenRejects(t *testing.T) {
	h := NewRateLimiterMiddleware(newLimiter(t, time.Minute), 2, Options{})(okHandler())

	first := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "60", third.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", third.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &body))
	assert.Equal(t, rateLimitExceededMessage, body["error"])

	other := doRequest(h, "10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, other.Code, "other clients keep their own window")
}

func TestRateLimiterMiddleware_NilLimiterPassesThrough(t *testing.T) {
	h := NewRateLimiterMiddleware(nil, 1, Options{})(okHandler())
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
	}
}

func TestRateLimiterMiddleware_StoreFailure(t *testing.T) {
	storeErr := &domain.StoreError{Op: "record", Key: "k", Err: errors.New("connection refused")}

	t.Run("fail closed", func(t *testing.T) {
		h := NewRateLimiterMiddleware(&stubLimiter{err: storeErr}, 5, Options{})(okHandler())
		rec := doRequest(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("fail open", func(t *testing.T) {
		h := NewRateLimiterMiddleware(&stubLimiter{err: storeErr}, 5, Options{FailOpen: true})(okHandler())
		rec := doRequest(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unexpected error", func(t *testing.T) {
		h := NewRateLimiterMiddleware(&stubLimiter{err: errors.New("boom")}, 5, Options{FailOpen: true})(okHandler())
		rec := doRequest(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRateLimiterMiddleware_RecordsStats(t *testing.T) {
	stats := &stubStats{err: errors.New("stats down")}
	h := NewRateLimiterMiddleware(newLimiter(t, time.Minute), 1, Options{Stats: stats, Logger: zerolog.Nop()})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1").Code, "stats failures do not affect the decision")

	events := stats.snapshot()
	require.Len(t, events, 2)
	assert.True(t, events[0].Allowed)
	assert.False(t, events[1].Allowed)
	assert.Equal(t, "api", events[1].Limiter)
	assert.Equal(t, "ip:10.0.0.1", events[1].Token)
	assert.Equal(t, http.MethodGet, events[1].Method)
	assert.Equal(t, "/api/accounts", events[1].Path)
}

func TestRateLimiterMiddleware_UsesKeyFunc(t *testing.T) {
	stub := &stubLimiter{}
	h := NewRateLimiterMiddleware(stub, 5, Options{KeyFn: ByHeader("X-User-ID", ByIP(false))})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user:42", stub.lastToken)
	assert.Equal(t, 5, stub.lastLimit)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 900, retryAfterSeconds(15*time.Minute))
}

type stubLimiter struct {
	err       error
	lastToken string
	lastLimit int
}

func (s *stubLimiter) Name() string { return "stub" }

func (s *stubLimiter) Check(_ context.Context, limit int, token string) (domain.Decision, error) {
	s.lastToken = token
	s.lastLimit = limit
	if s.err != nil {
		return domain.Decision{}, s.err
	}
	return domain.Decision{Allowed: true, Limiter: "stub", Token: token, Limit: limit, Count: 1, Remaining: limit - 1}, nil
}

type stubStats struct {
	mu     sync.Mutex
	err    error
	events []domain.StatsEvent
}

func (s *stubStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *stubStats) snapshot() []domain.StatsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StatsEvent(nil), s.events...)
}
