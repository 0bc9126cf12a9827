package redis

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

// StatsStore counts allowed and denied decisions in Redis hashes.
type StatsStore struct {
	client *redis.Client

	prefix string
	// ttl applies to the per-minute buckets only; totals never expire.
	ttl time.Duration
}

var _ ports.StatsRecorder = (*StatsStore)(nil)

type StatsOption func(*StatsStore)

func WithStatsPrefix(prefix string) StatsOption {
	return func(s *StatsStore) {
		if p := strings.Trim(strings.TrimSpace(prefix), ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) StatsOption {
	return func(s *StatsStore) { s.ttl = d }
}

func NewStatsStore(client *redis.Client, opts ...StatsOption) *StatsStore {
	s := &StatsStore{
		client: client,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.client == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if ev.Limiter != "" {
		pipe.HIncrBy(ctx, s.prefix+":limiter:"+ev.Limiter, field, 1)
	}

	bucketKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return &domain.StoreError{Op: "stats", Err: err}
	}
	return nil
}
