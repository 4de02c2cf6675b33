package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Limiter implements a sliding window rate limiter backed by Redis sorted sets.
// It is shared by every API replica pointing at the same Redis.
type Limiter struct {
	Client redis.UniversalClient
	Prefix string
	Window time.Duration
	Max    int
}

// Allow registers an event for key and reports whether it is within the limit.
func (l Limiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	res := Result{Allowed: true, Limit: l.Max, Remaining: l.Max, Reset: now.Add(l.Window)}
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return res, nil
	}

	redisKey := l.Prefix + key
	cutoff := now.Add(-l.Window).UnixNano()
	member := key + ":" + uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Limit: l.Max, Reset: res.Reset}, fmt.Errorf("ratelimit: redis window: %w", err)
	}

	current := int(countCmd.Val())
	res.Remaining = max(l.Max-current, 0)
	res.Allowed = current <= l.Max
	return res, nil
}
