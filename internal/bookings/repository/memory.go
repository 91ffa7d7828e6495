package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/model"
)

// memoryBookingRepository is a process-local ledger. A single mutex makes each
// write atomic in the same way a storage transaction would.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	ledger   []*model.LedgerEntry
	sequence int64
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

func (m *memoryBookingRepository) appendLocked(entries []*model.LedgerEntry) {
	for _, e := range entries {
		m.sequence++
		e.Sequence = m.sequence
		c := *e
		m.ledger = append(m.ledger, &c)
	}
}

func (m *memoryBookingRepository) Insert(_ context.Context, booking *model.Booking, entries []*model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if booking.IdempotencyKey != "" {
		for _, b := range m.bookings {
			if b.RequesterID == booking.RequesterID && b.IdempotencyKey == booking.IdempotencyKey {
				return bookingserrors.ErrDuplicateIdempotencyKey
			}
		}
	}

	m.appendLocked(entries)
	if len(entries) > 0 {
		booking.AssignNumber(entries[0].Sequence)
	}
	m.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (m *memoryBookingRepository) Update(_ context.Context, booking *model.Booking, expect Expectation, entries []*model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.bookings[booking.ID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if current.Status != expect.Status || current.PaymentStatus != expect.PaymentStatus {
		return bookingserrors.ErrStaleBooking
	}

	updated := cloneBooking(current)
	updated.Status = booking.Status
	updated.PaymentStatus = booking.PaymentStatus
	updated.PaidCents = booking.PaidCents
	updated.UpdatedAt = booking.UpdatedAt
	if booking.CancelledAt != nil {
		at := *booking.CancelledAt
		updated.CancelledAt = &at
		updated.CancelledBy = booking.CancelledBy
		updated.CancellationReason = booking.CancellationReason
	}
	m.bookings[booking.ID] = updated

	m.appendLocked(entries)
	return nil
}

func (m *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *memoryBookingRepository) FindByIdempotencyKey(_ context.Context, requesterID, key string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.bookings {
		if b.RequesterID == requesterID && b.IdempotencyKey == key {
			return cloneBooking(b), nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *memoryBookingRepository) FindActiveByResourceAndDate(_ context.Context, resourceID, date string) ([]*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Booking
	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.Date == date && b.Status.HoldsSlot() {
			out = append(out, cloneBooking(b))
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int { return strings.Compare(a.StartTime, b.StartTime) })
	return out, nil
}

func (m *memoryBookingRepository) byRequester(requesterID string) []*model.Booking {
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.RequesterID == requesterID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

func (m *memoryBookingRepository) FindByRequester(_ context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.byRequester(requesterID)
	start := min(int(max(offset, 0)), len(all))
	end := len(all)
	if limit > 0 {
		end = min(start+limit, len(all))
	}

	out := make([]*model.Booking, 0, end-start)
	for _, b := range all[start:end] {
		out = append(out, cloneBooking(b))
	}
	return out, nil
}

func (m *memoryBookingRepository) CountByRequester(_ context.Context, requesterID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byRequester(requesterID))), nil
}

func (m *memoryBookingRepository) HasActiveBookings(_ context.Context, resourceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.Status != model.BookingCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryBookingRepository) History(_ context.Context, bookingID string) ([]*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.LedgerEntry
	for _, e := range m.ledger {
		if e.BookingID == bookingID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memoryBookingRepository) HasReference(_ context.Context, bookingID, reference string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.ledger {
		if e.BookingID == bookingID && e.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}
