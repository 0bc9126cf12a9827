// Package redis disponibiliza a implementação do storage baseada em Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

// Storage keeps each window as a sorted set scored by attempt time in
// milliseconds.
type Storage struct {
	client *redis.Client
}

var _ ports.WindowStore = (*Storage)(nil)

type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Storage{client: client}, nil
}

// NewFromClient wraps an existing client. The caller keeps ownership of its
// lifecycle unless it calls Close on the returned Storage.
func NewFromClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) Client() *redis.Client {
	return s.client
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// Record runs ZREMRANGEBYSCORE, ZADD, ZCARD and PEXPIRE inside one MULTI/EXEC
// so concurrent processes never observe a half-applied check.
func (s *Storage) Record(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error) {
	nowMs := at.UnixMilli()
	windowStart := nowMs - window.Milliseconds()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, &domain.StoreError{Op: "record", Key: key, Err: err}
	}
	return card.Val(), nil
}

func (s *Storage) Count(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	windowStart := at.UnixMilli() - window.Milliseconds()

	count, err := s.client.ZCount(ctx, key, "("+strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil {
		return 0, &domain.StoreError{Op: "count", Key: key, Err: err}
	}
	return count, nil
}
