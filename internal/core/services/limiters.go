package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/ports"
)

const (
	AuthLimiter = "auth"
	APILimiter  = "api"
	AILimiter   = "ai"
)

// DefaultPolicies returns the stock configuration of the three named limiters.
func DefaultPolicies() map[string]domain.Policy {
	return map[string]domain.Policy{
		AuthLimiter: {Name: AuthLimiter, Limit: 20, Window: 15 * time.Minute, CapacityHint: 10000},
		APILimiter:  {Name: APILimiter, Limit: 100, Window: time.Minute, CapacityHint: 10000},
		AILimiter:   {Name: AILimiter, Limit: 10, Window: time.Hour, CapacityHint: 1000},
	}
}

// Guard binds a limiter to the limit it is checked against.
type Guard struct {
	Limiter *RateLimiterService
	Limit   int
}

func (g Guard) Check(ctx context.Context, token string) (domain.Decision, error) {
	return g.Limiter.Check(ctx, g.Limit, token)
}

// Limiters is the process-wide set of configured limiters. It is built once at
// startup and handed to whoever needs it.
type Limiters struct {
	Auth Guard
	API  Guard
	AI   Guard
}

// NewLimiters builds the auth, api and ai limiters over one shared store.
func NewLimiters(storage ports.WindowStore, policies map[string]domain.Policy, keyPrefix string, logger zerolog.Logger) (*Limiters, error) {
	build := func(name string) (Guard, error) {
		policy, ok := policies[name]
		if !ok {
			return Guard{}, fmt.Errorf("missing policy for limiter %s", name)
		}
		if policy.Limit <= 0 {
			return Guard{}, fmt.Errorf("limiter %s: %w", name, domain.ErrInvalidLimit)
		}
		svc, err := NewRateLimiterService(storage, Config{
			Name:         name,
			Window:       policy.Window,
			CapacityHint: policy.CapacityHint,
			KeyPrefix:    keyPrefix,
			Logger:       logger,
		})
		if err != nil {
			return Guard{}, err
		}
		return Guard{Limiter: svc, Limit: policy.Limit}, nil
	}

	auth, err := build(AuthLimiter)
	if err != nil {
		return nil, err
	}
	api, err := build(APILimiter)
	if err != nil {
		return nil, err
	}
	ai, err := build(AILimiter)
	if err != nil {
		return nil, err
	}
	return &Limiters{Auth: auth, API: api, AI: ai}, nil
}

func (l *Limiters) ByName(name string) (Guard, bool) {
	switch name {
	case AuthLimiter:
		return l.Auth, true
	case APILimiter:
		return l.API, true
	case AILimiter:
		return l.AI, true
	}
	return Guard{}, false
}

func (l *Limiters) Names() []string {
	names := []string{AuthLimiter, APILimiter, AILimiter}
	sort.Strings(names)
	return names
}
