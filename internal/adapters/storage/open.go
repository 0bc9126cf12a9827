// Package storage abre o backend de storage configurado.
package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	memorystorage "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage/memory"
	redisstorage "github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage/redis"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/config"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

// Open returns the configured window store, a stats recorder when enabled
// (nil otherwise) and a close function.
func Open(cfg config.Config, logger zerolog.Logger) (ports.WindowStore, ports.StatsRecorder, func(), error) {
	switch cfg.Storage.Type {
	case "redis":
		storage, err := redisstorage.New(redisstorage.Config{
			Addr:         cfg.Storage.Redis.Addr(),
			Password:     cfg.Storage.Redis.Password,
			DB:           cfg.Storage.Redis.DB,
			DialTimeout:  cfg.Storage.Redis.DialTimeout,
			ReadTimeout:  cfg.Storage.Redis.IOTimeout,
			WriteTimeout: cfg.Storage.Redis.IOTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}

		var stats ports.StatsRecorder
		if cfg.RateLimiter.Stats.Enabled {
			stats = redisstorage.NewStatsStore(
				storage.Client(),
				redisstorage.WithStatsPrefix(cfg.RateLimiter.Stats.Prefix),
				redisstorage.WithStatsTTL(cfg.RateLimiter.Stats.TTL),
			)
		}

		return storage, stats, func() {
			if err := storage.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close redis storage")
			}
		}, nil
	case "memory":
		hint := 0
		for _, p := range cfg.RateLimiter.Policies {
			hint += p.CapacityHint
		}
		storage := memorystorage.New(
			memorystorage.WithCapacityHint(hint),
			memorystorage.WithCleanupEvery(cfg.Storage.Memory.CleanupInterval),
			memorystorage.WithLogger(logger.With().Str("component", "memory-store").Logger()),
		)
		if cfg.RateLimiter.Stats.Enabled {
			logger.Warn().Msg("rate limit stats need redis storage; disabled")
		}
		return storage, nil, func() { _ = storage.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
