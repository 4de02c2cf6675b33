package payment

import (
	"context"
	"time"
)

// Locker serialises work on one key across replicas. *lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

const captureLockTTL = 30 * time.Second

func captureLockKey(intentID string) string {
	return "lock:capture:" + intentID
}

// withCaptureLock runs fn under the per-intent capture lock, or directly when
// no locker is configured.
func withCaptureLock(ctx context.Context, l Locker, intentID string, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	return l.WithLock(ctx, captureLockKey(intentID), captureLockTTL, fn)
}
