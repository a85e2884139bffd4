package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialises(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		order  []string
		wg     sync.WaitGroup
		inside = make(chan struct{})
		leave  = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "tran-1", time.Second, func(context.Context) error {
			close(inside)
			<-leave
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		})
	}()
	<-inside

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "tran-1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(leave)
	wg.Wait()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesAndPropagatesError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:k"))
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("lock:busy", "someone-else"))
	locker.MaxWait = 20 * time.Millisecond

	err := locker.WithLock(context.Background(), "busy", time.Second, func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	got, _ := mr.Get("lock:busy")
	require.Equal(t, "someone-else", got, "foreign holder is never released")
}
