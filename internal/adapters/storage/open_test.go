package storage

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memorystorage "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage/memory"
	redisstorage "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage/redis"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/config"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
)

func TestOpen_Memory(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.Type = "memory"
	cfg.RateLimiter.Policies = services.DefaultPolicies()
	cfg.RateLimiter.Stats.Enabled = true

	store, stats, closeFn, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &memorystorage.Storage{}, store)
	assert.Nil(t, stats, "stats need redis")
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Storage.Type = "redis"
	cfg.Storage.Redis = config.RedisConfig{Host: mr.Host(), Port: port, DialTimeout: time.Second, IOTimeout: time.Second}
	cfg.RateLimiter.Stats = config.StatsConfig{Enabled: true, Prefix: "s", TTL: time.Hour}

	store, stats, closeFn, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &redisstorage.Storage{}, store)
	require.NotNil(t, stats)

	count, err := store.Record(context.Background(), "k", "m", time.Now(), time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestOpen_Errors(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.Type = "etcd"
	_, _, _, err := Open(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported storage type")

	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	mr.Close()
	cfg.Storage.Type = "redis"
	cfg.Storage.Redis = config.RedisConfig{Host: "127.0.0.1", Port: port, DialTimeout: 100 * time.Millisecond}
	_, _, _, err = Open(cfg, zerolog.Nop())
	assert.Error(t, err)
}
