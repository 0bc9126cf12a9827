// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/core/domain"
)

type RateLimiter interface {
	Name() string
	Check(ctx context.Context, limit int, token string) (domain.Decision, error)
}
