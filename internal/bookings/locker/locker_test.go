package locker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, model.LockKey("room-3", "2026-03-02"))
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
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.(*localLocker).size(), "entries must be dropped once unused")
}

func TestLocalLocker_TimeoutAndIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "seat-a1|2026-03-02")
	require.NoError(t, err)

	other, err := l.Acquire(ctx, "seat-a1|2026-03-03")
	require.NoError(t, err, "a different date must not block")
	require.NoError(t, other(ctx))

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(timeoutCtx, "seat-a1|2026-03-02")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "a second release is a no-op")

	again, err := l.Acquire(ctx, "seat-a1|2026-03-02")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

type fakeLockRepo struct {
	mu    sync.Mutex
	locks map[string]*model.BookingLock
	fail  error
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[string]*model.BookingLock)}
}

func (f *fakeLockRepo) Create(_ context.Context, lock *model.BookingLock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if existing, ok := f.locks[lock.ID]; ok && existing.ExpiresAt.After(time.Now()) {
		return bookingserrors.ErrLockHeld
	}
	c := *lock
	f.locks[lock.ID] = &c
	return nil
}

func (f *fakeLockRepo) Delete(_ context.Context, lockID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.locks[lockID]; ok && existing.Owner == owner {
		delete(f.locks, lockID)
	}
	return nil
}

func TestMongoLocker_WaitsForRelease(t *testing.T) {
	repo := newFakeLockRepo()
	l := NewMongoLocker(repo, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "room-3|2026-03-02")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		r, err := l.Acquire(waitCtx, "room-3|2026-03-02")
		if err == nil {
			err = r(ctx)
		}
		acquired <- err
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, release(ctx))
	assert.NoError(t, <-acquired)
}

func TestMongoLocker_TimesOutWhileHeld(t *testing.T) {
	repo := newFakeLockRepo()
	l := NewMongoLocker(repo, time.Minute)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "room-3|2026-03-02")
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(timeoutCtx, "room-3|2026-03-02")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMongoLocker_ExpiredLockIsReclaimed(t *testing.T) {
	repo := newFakeLockRepo()
	l := NewMongoLocker(repo, -time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "room-3|2026-03-02")
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(timeoutCtx, "room-3|2026-03-02")
	assert.NoError(t, err)
}

func TestMongoLocker_BackendFailure(t *testing.T) {
	repo := newFakeLockRepo()
	repo.fail = errors.New("connection refused")
	l := NewMongoLocker(repo, time.Minute)

	_, err := l.Acquire(context.Background(), "room-3|2026-03-02")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	scripts int
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	client := &fakeRedis{values: make(map[string]string)}
	l := &redisLocker{client: client, ttl: time.Minute}
	ctx := context.Background()

	release, err := l.Acquire(ctx, "room-3|2026-03-02")
	require.NoError(t, err)
	assert.Contains(t, client.values, redisKeyPrefix+"room-3|2026-03-02")

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(timeoutCtx, "room-3|2026-03-02")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Someone else's token must survive our release.
	client.values[redisKeyPrefix+"room-3|2026-03-02"] = "other-owner"
	require.NoError(t, release(ctx))
	assert.Equal(t, "other-owner", client.values[redisKeyPrefix+"room-3|2026-03-02"])
	assert.Equal(t, 1, client.scripts)
}

func TestLockers_ReportLease(t *testing.T) {
	mongoLease, ok := NewMongoLocker(newFakeLockRepo(), 30*time.Second).(Leased)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, mongoLease.Lease())

	redisLease, ok := NewRedisLocker(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 10*time.Second).(Leased)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, redisLease.Lease())

	_, ok = NewLocalLocker().(Leased)
	assert.False(t, ok, "local locks never expire")
}
