// Package memory disponibiliza uma implementação de storage em memória,
// usada em testes e em execuções de um único processo.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

type attempt struct {
	member string
	at     int64
}

type window struct {
	attempts  []attempt
	expiresAt int64
}

func (w *window) expired(nowMs int64) bool {
	return w == nil || nowMs >= w.expiresAt
}

// prune drops attempts at or before startMs.
func (w *window) prune(startMs int64) {
	kept := w.attempts[:0]
	for _, a := range w.attempts {
		if a.at > startMs {
			kept = append(kept, a)
		}
	}
	w.attempts = kept
}

func (w *window) countAfter(startMs int64) int64 {
	var n int64
	for _, a := range w.attempts {
		if a.at > startMs {
			n++
		}
	}
	return n
}

// Storage keeps windows in a sharded map. Each Record runs inside the shard
// lock of its key, which gives the same atomicity as a MULTI/EXEC on Redis
// for callers in this process.
type Storage struct {
	windows      cmap.ConcurrentMap[string, *window]
	capacityHint int
	cleanupEvery time.Duration
	now          func() time.Time
	logger       zerolog.Logger

	hintWarned atomic.Bool
	stop       chan struct{}
	closeOnce  sync.Once
}

var _ ports.WindowStore = (*Storage)(nil)

type Option func(*Storage)

// WithCapacityHint sets the number of distinct keys the store expects. It is
// not enforced; crossing it logs a single warning.
func WithCapacityHint(n int) Option {
	return func(s *Storage) { s.capacityHint = n }
}

// WithCleanupEvery sets the janitor period. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) Option {
	return func(s *Storage) { s.cleanupEvery = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Storage) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func New(opts ...Option) *Storage {
	s := &Storage{
		windows:      cmap.New[*window](),
		cleanupEvery: time.Minute,
		now:          time.Now,
		logger:       zerolog.Nop(),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleanupEvery > 0 {
		go s.janitor()
	}
	return s
}

func (s *Storage) Record(_ context.Context, key, member string, at time.Time, ttl time.Duration) (int64, error) {
	nowMs := at.UnixMilli()
	startMs := nowMs - ttl.Milliseconds()

	var (
		count   int64
		created bool
	)
	s.windows.Upsert(key, nil, func(exists bool, current, _ *window) *window {
		if !exists || current.expired(nowMs) {
			current = &window{}
			created = true
		}
		current.prune(startMs)
		current.attempts = append(current.attempts, attempt{member: member, at: nowMs})
		count = int64(len(current.attempts))
		current.expiresAt = nowMs + ttl.Milliseconds()
		return current
	})

	if created {
		s.checkCapacity()
	}
	return count, nil
}

func (s *Storage) Count(_ context.Context, key string, at time.Time, ttl time.Duration) (int64, error) {
	nowMs := at.UnixMilli()
	startMs := nowMs - ttl.Milliseconds()

	var count int64
	s.windows.RemoveCb(key, func(_ string, current *window, exists bool) bool {
		if !exists || current.expired(nowMs) {
			return exists
		}
		count = current.countAfter(startMs)
		return false
	})
	return count, nil
}

// Len returns the number of keys held, expired ones included.
func (s *Storage) Len() int {
	return s.windows.Count()
}

// Sweep removes every window that expired at or before at.
func (s *Storage) Sweep(at time.Time) int {
	nowMs := at.UnixMilli()
	removed := 0
	for _, key := range s.windows.Keys() {
		if s.windows.RemoveCb(key, func(_ string, current *window, exists bool) bool {
			return exists && current.expired(nowMs)
		}) {
			removed++
		}
	}
	return removed
}

func (s *Storage) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Storage) janitor() {
	ticker := time.NewTicker(s.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("expired rate windows swept")
			}
		}
	}
}

func (s *Storage) checkCapacity() {
	if s.capacityHint <= 0 || s.hintWarned.Load() {
		return
	}
	if n := s.windows.Count(); n > s.capacityHint && s.hintWarned.CompareAndSwap(false, true) {
		s.logger.Warn().Int("keys", n).Int("capacity_hint", s.capacityHint).Msg("memory store holds more keys than expected")
	}
}
