package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pizza42-api/pkg/logger"
	"pizza42-api/pkg/redis"
)

var (
	// ErrLockTimeout is returned when a lock could not be acquired in time
	ErrLockTimeout = errors.New("timed out waiting for lock")
	// ErrLockLost is returned when a lease lapsed or was taken by another holder
	ErrLockLost = errors.New("lock no longer held")
)

// releaseScript deletes the lock only if the caller still owns it
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// extendScript resets the lease TTL only if the caller still owns it
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// RedisLocker is a per-key lock shared by every API instance using the same Redis
type RedisLocker struct {
	client *redis.Client
	logger *logger.Logger
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait bounds how long Lock keeps retrying.
	Wait  time.Duration
	Retry time.Duration
}

// NewRedisLocker creates a locker with a 10s lease and 5s wait
func NewRedisLocker(client *redis.Client, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: log,
		TTL:    10 * time.Second,
		Wait:   5 * time.Second,
		Retry:  25 * time.Millisecond,
	}
}

// Lock acquires the lock for key with SET NX PX and an owner token
func (l *RedisLocker) Lock(ctx context.Context, key string) (Lease, error) {
	lockKey := l.client.KeyBuilder.KeyUserProfileLock(key)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.Wait)
	defer cancel()

	for {
		// the deadline is counted from before the request reaches Redis
		start := time.Now()
		ok, err := l.client.SetNX(ctx, lockKey, token, l.TTL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return &redisLease{
				locker:   l,
				key:      key,
				lockKey:  lockKey,
				token:    token,
				deadline: start.Add(l.TTL),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(l.Retry):
		}
	}
}

type redisLease struct {
	locker  *RedisLocker
	key     string
	lockKey string
	token   string

	mu       sync.Mutex
	deadline time.Time
	once     sync.Once
}

func (r *redisLease) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

func (r *redisLease) Confirm(ctx context.Context) error {
	start := time.Now()
	res, err := r.locker.client.Eval(ctx, extendScript, []string{r.lockKey}, r.token, r.locker.TTL.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to confirm lock: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		r.locker.logger.WithField("user_id", r.key).Warn("Lock lapsed before the write")
		return fmt.Errorf("%w: %s", ErrLockLost, r.key)
	}

	r.mu.Lock()
	r.deadline = start.Add(r.locker.TTL)
	r.mu.Unlock()
	return nil
}

func (r *redisLease) Release() {
	r.once.Do(func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		res, err := r.locker.client.Eval(releaseCtx, releaseScript, []string{r.lockKey}, r.token)
		if err != nil {
			r.locker.logger.WithError(err).Warn("Failed to release lock, it will expire")
			return
		}
		if n, _ := res.(int64); n == 0 {
			r.locker.logger.WithField("user_id", r.key).Warn("Lock expired before release")
		}
	})
}

// LocalLocker serializes callers inside one process. Used when Redis is not
// configured, so it only protects single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	ll := l.locks[key]
	if ll == nil {
		ll = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = ll
	}
	ll.refs++
	l.mu.Unlock()

	select {
	case ll.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, ll)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	return &localLease{locker: l, key: key, lock: ll}, nil
}

func (l *LocalLocker) release(key string, ll *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ll.refs--
	if ll.refs == 0 {
		delete(l.locks, key)
	}
}

// localLease never lapses on its own
type localLease struct {
	locker *LocalLocker
	key    string
	lock   *localLock

	released atomic.Bool
}

func (ll *localLease) Deadline() time.Time { return time.Time{} }

func (ll *localLease) Confirm(context.Context) error {
	if ll.released.Load() {
		return fmt.Errorf("%w: %s", ErrLockLost, ll.key)
	}
	return nil
}

func (ll *localLease) Release() {
	if ll.released.CompareAndSwap(false, true) {
		<-ll.lock.ch
		ll.locker.release(ll.key, ll.lock)
	}
}
