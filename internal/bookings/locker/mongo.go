package locker

import (
	"context"
	"time"

	"cowork/internal/bookings/repository"
	"cowork/pkg/model"

	"github.com/google/uuid"
)

// mongoLocker holds advisory lock documents so every bookings instance
// sharing the database is serialized. A document outlives a crashed holder by
// at most ttl.
type mongoLocker struct {
	repo repository.BookingLockRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewMongoLocker(repo repository.BookingLockRepository, ttl time.Duration) Locker {
	return &mongoLocker{
		repo: repo,
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (l *mongoLocker) Lease() time.Duration { return l.ttl }

func (l *mongoLocker) Acquire(ctx context.Context, key string) (Release, error) {
	owner := uuid.NewString()

	err := poll(ctx, func(ctx context.Context) error {
		return l.repo.Create(ctx, &model.BookingLock{
			ID:        key,
			Owner:     owner,
			ExpiresAt: l.now().Add(l.ttl),
		})
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		return l.repo.Delete(ctx, key, owner)
	}, nil
}
