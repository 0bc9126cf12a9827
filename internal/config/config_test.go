package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr())
	assert.Equal(t, "ratelimit", cfg.RateLimiter.KeyPrefix)
	assert.Equal(t, "X-User-ID", cfg.RateLimiter.IdentityHeader)
	assert.False(t, cfg.RateLimiter.FailOpen)

	require.Len(t, cfg.RateLimiter.Policies, 3)
	auth := cfg.RateLimiter.Policies["auth"]
	assert.Equal(t, 20, auth.Limit)
	assert.Equal(t, 15*time.Minute, auth.Window)
	assert.Equal(t, time.Minute, cfg.RateLimiter.Policies["api"].Window)
	assert.Equal(t, 10, cfg.RateLimiter.Policies["ai"].Limit)
}

func TestLoad_EnvOverridesPolicy(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("RATE_LIMIT_API_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_API_WINDOW_SECONDS", "60")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Type)
	api := cfg.RateLimiter.Policies["api"]
	assert.Equal(t, 5, api.Limit)
	assert.Equal(t, 60*time.Second, api.Window)
	assert.True(t, cfg.RateLimiter.FailOpen)
}

func TestLoad_PolicyFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	content := []byte(`limiters:
  ai:
    requests: 3
    window: 30m
  auth:
    capacity_hint: 50
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("RATE_LIMIT_POLICY_FILE", path)
	t.Setenv("RATE_LIMIT_AI_REQUESTS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	ai := cfg.RateLimiter.Policies["ai"]
	assert.Equal(t, 4, ai.Limit, "env wins over file")
	assert.Equal(t, 30*time.Minute, ai.Window)
	assert.Equal(t, 50, cfg.RateLimiter.Policies["auth"].CapacityHint)
	assert.Equal(t, 20, cfg.RateLimiter.Policies["auth"].Limit)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad redis port":     {"REDIS_PORT": "abc"},
		"bad storage type":   {"STORAGE_TYPE": "etcd"},
		"bad requests":       {"RATE_LIMIT_AUTH_REQUESTS": "many"},
		"non positive limit": {"RATE_LIMIT_AI_REQUESTS": "0"},
		"bad fail open":      {"RATE_LIMIT_FAIL_OPEN": "maybe"},
		"missing file":       {"RATE_LIMIT_POLICY_FILE": "/does/not/exist.yaml"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PolicyFileUnknownLimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limiters:\n  whatsapp:\n    requests: 1\n"), 0o600))
	t.Setenv("RATE_LIMIT_POLICY_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "whatsapp")
}

func TestLoad_PolicyFileSubMillisecondWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limiters:\n  api:\n    window: 500us\n"), 0o600))
	t.Setenv("RATE_LIMIT_POLICY_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "limiter api: window must be at least 1ms")
}
