//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/internal/testsupport"
	"github.com/Ramsey-B/vine/pkg/redis"
)

func TestLocker_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	client := testsupport.Redis(t)
	locker := redis.NewLocker(client, "", 5*time.Second, 2*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "review:item-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	client := testsupport.Redis(t)
	locker := redis.NewLocker(client, "test:", time.Second, 50*time.Millisecond)

	lock, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "k")
	assert.ErrorIs(t, err, redis.ErrLockNotAcquired)

	_, err = locker.TryAcquire(ctx, "k")
	assert.ErrorIs(t, err, redis.ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), redis.ErrLockNotHeld)

	again, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestClient_GetSetDel(t *testing.T) {
	ctx := context.Background()
	client := testsupport.Redis(t)

	_, ok, err := client.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	v, ok, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, client.Del(ctx, "k"))
	_, ok, err = client.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
