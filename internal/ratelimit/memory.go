package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// MemoryLimiter is a process-local fixed window limiter used when no Redis is
// configured.
type MemoryLimiter struct {
	lim *limiter.Limiter
}

// NewMemoryLimiter allows max requests per key in every window.
func NewMemoryLimiter(window time.Duration, max int) *MemoryLimiter {
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return &MemoryLimiter{lim: limiter.New(memory.NewStore(), rate)}
}

// Allow implements Allower.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	lctx, err := m.lim.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: memory store: %w", err)
	}
	return Result{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
