package locker

import (
	"context"
	"fmt"
	"time"

	bookingserrors "cowork/internal/bookings/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cowork:lock:"

// releaseScript deletes the key only while it still carries the caller's token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

type redisLocker struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Lease() time.Duration { return l.ttl }

func (l *redisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	err := poll(ctx, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to set lock %s: %w", redisKey, err)
		}
		if !ok {
			return bookingserrors.ErrLockHeld
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", redisKey, err)
		}
		return nil
	}, nil
}
