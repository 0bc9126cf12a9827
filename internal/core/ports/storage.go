// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
)

// WindowStore keeps one sliding window of attempt timestamps per key.
//
// Record must run as a single atomic unit with respect to every other caller
// of the same key, across processes: drop entries at or before at-window,
// insert member scored at at, count what is left and reset the key TTL to
// window.
type WindowStore interface {
	Record(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error)
	Count(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error)
	Close() error
}

// StatsRecorder receives limiter decisions. Callers treat errors as best-effort.
type StatsRecorder interface {
	Record(ctx context.Context, ev domain.StatsEvent) error
}
