package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/http/router"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/storage"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/config"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/services"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/logging"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/telemetry"
)

var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.SetupTracing(ctx, telemetry.Config{
		ServiceName:    "orbitfinance-guard",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		LogSpans:       cfg.Tracing.LogSpans,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer provider shutdown failed")
		}
	}()

	store, stats, closeFn, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}
	defer closeFn()

	limiters, err := services.NewLimiters(store, cfg.RateLimiter.Policies, cfg.RateLimiter.KeyPrefix, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create limiters")
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router.New(router.Deps{
			Limiters:           limiters,
			Stats:              stats,
			Logger:             logger,
			FailOpen:           cfg.RateLimiter.FailOpen,
			TrustXForwardedFor: cfg.RateLimiter.TrustXForwardedFor,
			IdentityHeader:     cfg.RateLimiter.IdentityHeader,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	for _, name := range limiters.Names() {
		g, _ := limiters.ByName(name)
		logger.Info().Str("limiter", name).Int("limit", g.Limit).Dur("window", g.Limiter.Window()).Msg("limiter ready")
	}
	logger.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Type).Str("version", Version).Msg("server listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
