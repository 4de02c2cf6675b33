package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/card-hold/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{Client: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesHolders(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		order   []string
		wg      sync.WaitGroup
		holding = make(chan struct{})
		release = make(chan struct{})
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "capture:pi_1", time.Second, func(context.Context) error {
			close(holding)
			<-release
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		})
	}()
	<-holding
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "capture:pi_1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("k", "someone-else"))
	locker.MaxWait = 30 * time.Millisecond

	called := false
	err := locker.WithLock(context.Background(), "k", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)
	v, _ := mr.Get("k")
	require.Equal(t, "someone-else", v)
}

func TestWithLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
