// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/logging"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	RateLimiter RateLimiterConfig
	Logging     logging.Config
	Tracing     TracingConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type   string
	Redis  RedisConfig
	Memory MemoryConfig
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type MemoryConfig struct {
	CleanupInterval time.Duration
}

type RateLimiterConfig struct {
	KeyPrefix          string
	Policies           map[string]domain.Policy
	FailOpen           bool
	TrustXForwardedFor bool
	IdentityHeader     string
	Stats              StatsConfig
}

type StatsConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	LogSpans    bool
}

// policyFile is the YAML layout read from RATE_LIMIT_POLICY_FILE.
type policyFile struct {
	Limiters map[string]struct {
		Requests     int           `yaml:"requests"`
		Window       time.Duration `yaml:"window"`
		CapacityHint int           `yaml:"capacity_hint"`
	} `yaml:"limiters"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storage, err := buildStorageConfig()
	if err != nil {
		return Config{}, err
	}

	rateLimiterConfig, err := buildRateLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	tracing, err := buildTracingConfig()
	if err != nil {
		return Config{}, err
	}

	logJSON, err := strconv.ParseBool(getEnv("LOG_JSON", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_JSON: %w", err)
	}

	return Config{
		Server:      server,
		Storage:     storage,
		RateLimiter: rateLimiterConfig,
		Logging: logging.Config{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  logJSON,
		},
		Tracing: tracing,
	}, nil
}

func buildStorageConfig() (StorageConfig, error) {
	storageType := strings.ToLower(getEnv("STORAGE_TYPE", "redis"))
	if storageType != "redis" && storageType != "memory" {
		return StorageConfig{}, fmt.Errorf("unsupported STORAGE_TYPE: %s", storageType)
	}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return StorageConfig{}, err
	}

	cleanup, err := time.ParseDuration(getEnv("MEMORY_CLEANUP_INTERVAL", "1m"))
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid MEMORY_CLEANUP_INTERVAL: %w", err)
	}

	return StorageConfig{
		Type:   storageType,
		Redis:  redisConfig,
		Memory: MemoryConfig{CleanupInterval: cleanup},
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	dialTimeout, err := time.ParseDuration(getEnv("REDIS_DIAL_TIMEOUT", "5s"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DIAL_TIMEOUT: %w", err)
	}
	ioTimeout, err := time.ParseDuration(getEnv("REDIS_IO_TIMEOUT", "3s"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_IO_TIMEOUT: %w", err)
	}

	return RedisConfig{
		Host:        host,
		Port:        port,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          db,
		DialTimeout: dialTimeout,
		IOTimeout:   ioTimeout,
	}, nil
}

func buildRateLimiterConfig() (RateLimiterConfig, error) {
	policies := services.DefaultPolicies()

	if path := strings.TrimSpace(os.Getenv("RATE_LIMIT_POLICY_FILE")); path != "" {
		if err := applyPolicyFile(path, policies); err != nil {
			return RateLimiterConfig{}, err
		}
	}

	for name := range policies {
		if err := applyPolicyEnv(name, policies); err != nil {
			return RateLimiterConfig{}, err
		}
	}

	for name, policy := range policies {
		if policy.Limit <= 0 {
			return RateLimiterConfig{}, fmt.Errorf("limiter %s: requests must be positive", name)
		}
		if policy.Window < time.Millisecond {
			return RateLimiterConfig{}, fmt.Errorf("limiter %s: window must be at least 1ms", name)
		}
	}

	failOpen, err := strconv.ParseBool(getEnv("RATE_LIMIT_FAIL_OPEN", "false"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_FAIL_OPEN: %w", err)
	}
	trustXFF, err := strconv.ParseBool(getEnv("RATE_LIMIT_TRUST_XFF", "false"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_TRUST_XFF: %w", err)
	}

	stats, err := buildStatsConfig()
	if err != nil {
		return RateLimiterConfig{}, err
	}

	return RateLimiterConfig{
		KeyPrefix:          getEnv("RATE_LIMIT_KEY_PREFIX", services.DefaultKeyPrefix),
		Policies:           policies,
		FailOpen:           failOpen,
		TrustXForwardedFor: trustXFF,
		IdentityHeader:     getEnv("RATE_LIMIT_IDENTITY_HEADER", "X-User-ID"),
		Stats:              stats,
	}, nil
}

func applyPolicyFile(path string, policies map[string]domain.Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read RATE_LIMIT_POLICY_FILE: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse RATE_LIMIT_POLICY_FILE: %w", err)
	}

	for name, entry := range file.Limiters {
		policy, ok := policies[name]
		if !ok {
			return fmt.Errorf("policy file: unknown limiter %q", name)
		}
		if entry.Requests != 0 {
			policy.Limit = entry.Requests
		}
		if entry.Window != 0 {
			policy.Window = entry.Window
		}
		if entry.CapacityHint != 0 {
			policy.CapacityHint = entry.CapacityHint
		}
		policies[name] = policy
	}
	return nil
}

// applyPolicyEnv reads RATE_LIMIT_<NAME>_REQUESTS, _WINDOW_SECONDS and
// _CAPACITY_HINT.
func applyPolicyEnv(name string, policies map[string]domain.Policy) error {
	policy := policies[name]
	prefix := "RATE_LIMIT_" + strings.ToUpper(name) + "_"

	if v := strings.TrimSpace(os.Getenv(prefix + "REQUESTS")); v != "" {
		requests, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sREQUESTS: %w", prefix, err)
		}
		policy.Limit = requests
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "WINDOW_SECONDS")); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWINDOW_SECONDS: %w", prefix, err)
		}
		policy.Window = time.Duration(seconds) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "CAPACITY_HINT")); v != "" {
		hint, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sCAPACITY_HINT: %w", prefix, err)
		}
		policy.CapacityHint = hint
	}

	policies[name] = policy
	return nil
}

func buildStatsConfig() (StatsConfig, error) {
	enabled, err := strconv.ParseBool(getEnv("RATE_LIMIT_STATS_ENABLED", "false"))
	if err != nil {
		return StatsConfig{}, fmt.Errorf("invalid RATE_LIMIT_STATS_ENABLED: %w", err)
	}
	ttl, err := time.ParseDuration(getEnv("RATE_LIMIT_STATS_TTL", "24h"))
	if err != nil {
		return StatsConfig{}, fmt.Errorf("invalid RATE_LIMIT_STATS_TTL: %w", err)
	}
	return StatsConfig{
		Enabled: enabled,
		Prefix:  getEnv("RATE_LIMIT_STATS_PREFIX", "ratelimit:stats"),
		TTL:     ttl,
	}, nil
}

func buildTracingConfig() (TracingConfig, error) {
	insecure, err := strconv.ParseBool(getEnv("OTEL_EXPORTER_OTLP_INSECURE", "false"))
	if err != nil {
		return TracingConfig{}, fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
	}
	ratio, err := strconv.ParseFloat(getEnv("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return TracingConfig{}, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
	}
	logSpans, err := strconv.ParseBool(getEnv("OTEL_LOG_SPANS", "false"))
	if err != nil {
		return TracingConfig{}, fmt.Errorf("invalid OTEL_LOG_SPANS: %w", err)
	}
	return TracingConfig{
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    insecure,
		SampleRatio: ratio,
		LogSpans:    logSpans,
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
