// Package locker serializes writers on one resource day. Keys that differ
// never block each other.
package locker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
)

// Release gives up a held lock. It must be called exactly once.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until key is held or ctx is done, in which case the
	// context error is returned.
	Acquire(ctx context.Context, key string) (Release, error)
}

// Leased is implemented by lockers whose locks lapse on their own. A holder
// must finish its work within Lease of acquiring, or another caller may take
// the key.
type Leased interface {
	Lease() time.Duration
}

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = 200 * time.Millisecond
)

// poll calls try until it acquires, fails hard, or ctx expires. try reports
// contention with ErrLockHeld.
func poll(ctx context.Context, try func(ctx context.Context) error) error {
	backoff := minBackoff
	for {
		err := try(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			return err
		}

		wait := backoff/2 + rand.N(backoff/2+1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
