package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

const (
	DefaultKeyPrefix = "ratelimit"
	tracerName       = "github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
)

// Config agrega os parâmetros de um limiter de janela deslizante.
type Config struct {
	Name   string
	Window time.Duration
	// CapacityHint is the number of distinct tokens expected. Advisory only.
	CapacityHint int
	KeyPrefix    string
	Logger       zerolog.Logger

	// Now and NewMember default to time.Now and a ULID per attempt.
	Now       func() time.Time
	NewMember func(at time.Time) string
}

// RateLimiterService implementa a lógica central de rate limiting: a sliding
// window log kept in a shared store. Every attempt is recorded, including the
// ones that end up rejected.
type RateLimiterService struct {
	storage      ports.WindowStore
	name         string
	prefix       string
	window       time.Duration
	capacityHint int
	now          func() time.Time
	newMember    func(at time.Time) string
	logger       zerolog.Logger
	tracer       trace.Tracer
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.WindowStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fmt.Errorf("limiter name is required")
	}
	// Stores keep millisecond scores; a shorter window would prune everything.
	if cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("limiter %s: window must be at least 1ms", name)
	}
	if cfg.CapacityHint < 0 {
		return nil, fmt.Errorf("limiter %s: capacity hint must not be negative", name)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.KeyPrefix), ":")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newMember := cfg.NewMember
	if newMember == nil {
		newMember = newULIDMember
	}

	return &RateLimiterService{
		storage:      storage,
		name:         name,
		prefix:       prefix,
		window:       cfg.Window,
		capacityHint: cfg.CapacityHint,
		now:          now,
		newMember:    newMember,
		logger:       cfg.Logger.With().Str("limiter", name).Logger(),
		tracer:       otel.Tracer(tracerName),
	}, nil
}

func (s *RateLimiterService) Name() string { return s.name }

func (s *RateLimiterService) Window() time.Duration { return s.window }

func (s *RateLimiterService) CapacityHint() int { return s.capacityHint }

// Check records an attempt for token and reports whether it fits in limit.
//
// It returns domain.ErrRateLimitExceeded when the window already held limit
// attempts, and a *domain.StoreError when the store could not run the check.
// The attempt is recorded in both the accepted and the rejected case.
func (s *RateLimiterService) Check(ctx context.Context, limit int, token string) (domain.Decision, error) {
	if limit <= 0 {
		return domain.Decision{}, domain.ErrInvalidLimit
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Decision{}, domain.ErrEmptyToken
	}

	ctx, span := s.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.limiter", s.name),
		attribute.Int("ratelimit.limit", limit),
	))
	defer span.End()

	now := s.now()
	key := s.key(token)

	count, err := s.storage.Record(ctx, key, s.newMember(now), now, s.window)
	if err != nil {
		err = asStoreError("record", key, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return domain.Decision{}, err
	}

	decision := domain.Decision{
		Allowed:    count <= int64(limit),
		Limiter:    s.name,
		Token:      token,
		Limit:      limit,
		Count:      count,
		Remaining:  remaining(limit, count),
		ResetAfter: s.window,
	}
	span.SetAttributes(
		attribute.Int64("ratelimit.count", count),
		attribute.Bool("ratelimit.allowed", decision.Allowed),
	)

	if !decision.Allowed {
		s.logger.Debug().Str("token", token).Int64("count", count).Int("limit", limit).Msg("rate limit exceeded")
		return decision, domain.ErrRateLimitExceeded
	}
	return decision, nil
}

// Count returns how many attempts token has in the current window without
// recording a new one.
func (s *RateLimiterService) Count(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, domain.ErrEmptyToken
	}
	key := s.key(token)
	count, err := s.storage.Count(ctx, key, s.now(), s.window)
	if err != nil {
		return 0, asStoreError("count", key, err)
	}
	return count, nil
}

func (s *RateLimiterService) key(token string) string {
	return s.prefix + ":" + s.name + ":" + token
}

func asStoreError(op, key string, err error) error {
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &domain.StoreError{Op: op, Key: key, Err: err}
}

func remaining(limit int, count int64) int {
	left := int64(limit) - count
	if left < 0 {
		return 0
	}
	return int(left)
}

func newULIDMember(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
