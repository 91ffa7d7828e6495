package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used by this requester")

	ErrStaleBooking = errors.New("booking was modified concurrently")

	ErrLockHeld = errors.New("lock is held by another owner")
)
