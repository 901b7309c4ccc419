package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockers(t *testing.T) map[string]Locker {
	_, client := newTestRedis(t)
	redisLocker := NewRedisLocker(client, testLogger)
	redisLocker.Retry = time.Millisecond
	return map[string]Locker{
		"local": NewLocalLocker(),
		"redis": redisLocker,
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var (
				inside     atomic.Int32
				violations atomic.Int32
				wg         sync.WaitGroup
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					lease, err := locker.Lock(context.Background(), "auth0|u1")
					if !assert.NoError(t, err) {
						return
					}
					if inside.Add(1) > 1 {
						violations.Add(1)
					}
					time.Sleep(2 * time.Millisecond)
					inside.Add(-1)
					lease.Release()
				}()
			}
			wg.Wait()
			assert.Zero(t, violations.Load())
		})
	}
}

func TestLocker_KeysAreIndependent(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			leaseA, err := locker.Lock(context.Background(), "a")
			require.NoError(t, err)
			defer leaseA.Release()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			leaseB, err := locker.Lock(ctx, "b")
			require.NoError(t, err)
			leaseB.Release()
		})
	}
}

func TestLocker_TimesOutWhileHeld(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			lease, err := locker.Lock(context.Background(), "held")
			require.NoError(t, err)
			defer lease.Release()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = locker.Lock(ctx, "held")
			assert.ErrorIs(t, err, ErrLockTimeout)
		})
	}
}

func TestLocker_ReleaseIsIdempotent(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			lease, err := locker.Lock(context.Background(), "k")
			require.NoError(t, err)
			lease.Release()
			lease.Release()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			again, err := locker.Lock(ctx, "k")
			require.NoError(t, err)
			again.Release()
		})
	}
}

func TestRedisLocker_ReleaseChecksOwner(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, testLogger)
	key := client.KeyBuilder.KeyUserProfileLock("u1")

	lease, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, locker.TTL, mr.TTL(key))

	// lease expired and someone else took the lock
	require.NoError(t, mr.Set(key, "another-owner"))

	lease.Release()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "another-owner", got)
}

func TestRedisLocker_ConfirmExtendsOwnedLease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, testLogger)
	key := client.KeyBuilder.KeyUserProfileLock("u1")
	ctx := context.Background()

	before := time.Now()
	lease, err := locker.Lock(ctx, "u1")
	require.NoError(t, err)
	defer lease.Release()
	first := lease.Deadline()
	assert.WithinDuration(t, before.Add(locker.TTL), first, time.Second)

	mr.FastForward(6 * time.Second)
	require.NoError(t, lease.Confirm(ctx))
	assert.Equal(t, locker.TTL, mr.TTL(key))
	assert.False(t, lease.Deadline().Before(first))
}

func TestRedisLocker_ConfirmFailsOnceLapsed(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, testLogger)
	locker.Retry = time.Millisecond
	ctx := context.Background()

	lease, err := locker.Lock(ctx, "u1")
	require.NoError(t, err)
	defer lease.Release()

	mr.FastForward(locker.TTL + time.Second)
	assert.ErrorIs(t, lease.Confirm(ctx), ErrLockLost)

	// a new holder is not disturbed by the stale one
	other, err := locker.Lock(ctx, "u1")
	require.NoError(t, err)
	defer other.Release()
	assert.ErrorIs(t, lease.Confirm(ctx), ErrLockLost)
	assert.NoError(t, other.Confirm(ctx))
}

func TestLocalLocker_LeaseHasNoDeadline(t *testing.T) {
	lease, err := NewLocalLocker().Lock(context.Background(), "k")
	require.NoError(t, err)

	assert.True(t, lease.Deadline().IsZero())
	assert.NoError(t, lease.Confirm(context.Background()))
	lease.Release()
	assert.ErrorIs(t, lease.Confirm(context.Background()), ErrLockLost)
}

func TestLocalLocker_ForgetsIdleKeys(t *testing.T) {
	locker := NewLocalLocker()
	lease, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	lease.Release()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}
