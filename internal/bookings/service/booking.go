package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/internal/bookings/events"
	"cowork/internal/bookings/locker"
	"cowork/internal/bookings/repository"
	"cowork/internal/bookings/validator"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
	"cowork/pkg/pricing"
	"cowork/pkg/sanitizer"
	pkgvalidator "cowork/pkg/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxReasonLength = 500
	maxActorLength  = 128

	// Critical sections under an expiring lock end lease/leaseMarginDivisor early.
	leaseMarginDivisor = 5
)

type BookingService interface {
	RequestBooking(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error)
	History(ctx context.Context, id string) ([]*model.LedgerEntry, error)

	CancelBooking(ctx context.Context, id, actorID, reason string) (*model.Booking, error)
	ConfirmBooking(ctx context.Context, id, actorID string) (*model.Booking, error)
	CompleteBooking(ctx context.Context, id, actorID string) (*model.Booking, error)
	MarkNoShow(ctx context.Context, id, actorID string) (*model.Booking, error)

	ConfirmPayment(ctx context.Context, id, actorID string) (*model.Booking, error)
	// RecordPayment adds a partial or final payment. A non-empty reference
	// already present in the booking's ledger makes the call a no-op.
	RecordPayment(ctx context.Context, id string, amountCents int64, actorID, reference string) (*model.Booking, error)
	RefundPayment(ctx context.Context, id, actorID, reason string) (*model.Booking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	resources    ResourceProvider
	availability AvailabilityService
	locker       locker.Locker
	publisher    events.Publisher
	calculator   *pricing.Calculator
	validator    *validator.BookingValidator
	cfg          *config.Config

	lockTimeout    time.Duration
	sectionTimeout time.Duration
	writeTimeout   time.Duration
	now            func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	resources ResourceProvider,
	availability AvailabilityService,
	resourceLocker locker.Locker,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	s := &bookingService{
		repo:         repo,
		resources:    resources,
		availability: availability,
		locker:       resourceLocker,
		publisher:    publisher,
		calculator:   pricing.NewCalculator(cfg.TieBreak),
		validator:    validator,
		cfg:          cfg,
		lockTimeout:  cfg.LockTimeout,
		writeTimeout: cfg.WriteTimeout,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = config.DefaultLockTimeout
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = config.DefaultWriteTimeout
	}
	if leased, ok := resourceLocker.(locker.Leased); ok && leased.Lease() > 0 {
		s.sectionTimeout = leased.Lease() - leased.Lease()/leaseMarginDivisor
	}
	return s
}

// RequestBooking validates, prices and commits a booking. Everything that can
// be judged without the ledger is checked before the resource lock is taken.
func (s *bookingService) RequestBooking(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	s.sanitizeRequest(req)

	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Ctx(ctx).Warn("Booking request validation failed",
			"resource_id", req.ResourceID,
			"requester_id", req.RequesterID,
			"error", err,
		)
		return nil, validationError("Booking request validation failed", err)
	}
	if req.PartySize < 1 {
		return nil, apperrors.InvalidQuantity("party_size", req.PartySize)
	}

	tr, err := model.NewTimeRange(req.Date, req.Start, req.End, s.cfg.OperatingHours)
	if err != nil {
		return nil, err
	}

	resource, err := s.resources.GetResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsBookable() {
		return nil, apperrors.ResourceUnavailable(resource.ID, string(resource.Status))
	}
	if req.PartySize > resource.Capacity {
		return nil, apperrors.CapacityExceeded(resource.ID, req.PartySize, resource.Capacity)
	}

	quote, err := s.calculator.Quote(resource.Rates, tr.Minutes(), resource.SeatCountFor(req.PartySize))
	if err != nil {
		return nil, err
	}

	var (
		booking  *model.Booking
		entries  []*model.LedgerEntry
		replayed bool
	)
	err = s.withResourceLock(ctx, resource.ID, tr.Date(), func(ctx context.Context) error {
		if req.IdempotencyKey != "" {
			existing, err := s.repo.FindByIdempotencyKey(ctx, req.RequesterID, req.IdempotencyKey)
			switch {
			case err == nil:
				if !sameRequest(existing, req, tr) {
					return apperrors.Conflict("Idempotency key was already used for a different booking request")
				}
				booking, replayed = existing, true
				return nil
			case !errors.Is(err, bookingserrors.ErrNotFound):
				return apperrors.Internal("Failed to look up idempotency key", err)
			}
		}

		free, err := s.availability.IsFree(ctx, resource.ID, tr)
		if err != nil {
			return err
		}
		if !free {
			return apperrors.SlotConflict("The requested time range is already booked", map[string]any{
				"resource_id": resource.ID,
				"date":        tr.Date(),
				"start":       tr.StartClock(),
				"end":         tr.EndClock(),
			})
		}

		booking, entries, err = s.newBooking(req, resource, tr, quote)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, booking, entries); err != nil {
			if errors.Is(err, bookingserrors.ErrDuplicateIdempotencyKey) {
				return apperrors.Conflict("Idempotency key was already used for a different booking request")
			}
			return apperrors.Internal("Failed to store booking", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "RequestBooking", err,
			"resource_id", req.ResourceID,
			"requester_id", req.RequesterID,
			"range", tr.String(),
		)
		return nil, err
	}

	if replayed {
		s.cfg.Log.Ctx(ctx).Info("Booking request replayed",
			"id", booking.ID,
			"requester_id", req.RequesterID,
			"idempotency_key", req.IdempotencyKey,
		)
		return booking, nil
	}

	s.publish(ctx, booking, entries)
	s.cfg.Log.Ctx(ctx).Info("Booking created successfully",
		"id", booking.ID,
		"number", booking.Number,
		"resource_id", booking.ResourceID,
		"range", tr.String(),
		"tier", booking.PriceTier,
		"total_cents", booking.TotalCents,
		"status", booking.Status,
	)
	return booking, nil
}

func (s *bookingService) newBooking(req *model.BookingRequest, resource *model.Resource, tr model.TimeRange, quote pricing.Quote) (*model.Booking, []*model.LedgerEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to generate booking id", err)
	}

	now := s.now()
	b := &model.Booking{
		ID:              id.String(),
		ResourceID:      resource.ID,
		ResourceVersion: resource.Version,
		RequesterID:     req.RequesterID,
		Date:            tr.Date(),
		StartTime:       tr.StartClock(),
		EndTime:         tr.EndClock(),
		StartsAt:        tr.Start(),
		EndsAt:          tr.End(),
		PartySize:       req.PartySize,
		SeatCount:       quote.SeatCount,
		PriceTier:       string(quote.Tier),
		TotalCents:      quote.TotalCents,
		Currency:        s.cfg.Currency,
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentUnpaid,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	entries := []*model.LedgerEntry{newEntry(b, model.EventRequested, req.RequesterID, "", now)}
	if (s.cfg.AutoConfirm || req.AutoConfirm) && !s.cfg.RequirePaymentBeforeConfirm {
		b.Status = model.BookingConfirmed
		entries = append(entries, newEntry(b, model.EventConfirmed, req.RequesterID, "auto-confirmed", now))
	}
	return b, entries, nil
}

func sameRequest(b *model.Booking, req *model.BookingRequest, tr model.TimeRange) bool {
	return b.ResourceID == req.ResourceID &&
		b.Date == tr.Date() &&
		b.StartTime == tr.StartClock() &&
		b.EndTime == tr.EndClock() &&
		b.PartySize == req.PartySize
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Ctx(ctx).Error("Failed to get booking by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if requesterID == "" {
		return nil, 0, apperrors.InvalidInput("Requester ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count    int64
		bookings []*model.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.CountByRequester(gctx, requesterID)
		if err != nil {
			s.cfg.Log.Ctx(ctx).Error("Failed to count bookings", "requester_id", requesterID, "error", err)
			return apperrors.Internal("Failed to count bookings", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bookings, err = s.repo.FindByRequester(gctx, requesterID, limit, offset)
		if err != nil {
			s.cfg.Log.Ctx(ctx).Error("Failed to list bookings",
				"requester_id", requesterID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			return apperrors.Internal("Failed to retrieve bookings", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, count, nil
}

func (s *bookingService) History(ctx context.Context, id string) ([]*model.LedgerEntry, error) {
	if _, err := s.GetBooking(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.repo.History(ctx, id)
	if err != nil {
		s.cfg.Log.Ctx(ctx).Error("Failed to load booking history", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking history", err)
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}
	return entries, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, id, actorID, reason string) (*model.Booking, error) {
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)
	reason = sanitizer.NormalizeReason(reason, maxReasonLength)

	return s.mutate(ctx, "CancelBooking", id, func(_ context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if !b.Status.CanTransitionTo(model.BookingCancelled) {
			return nil, apperrors.InvalidTransition("booking", string(b.Status), string(model.BookingCancelled))
		}
		b.Status = model.BookingCancelled
		b.CancelledAt = &now
		b.CancelledBy = actorID
		b.CancellationReason = reason
		b.UpdatedAt = now
		return []*model.LedgerEntry{newEntry(b, model.EventCancelled, actorID, reason, now)}, nil
	})
}

// ConfirmBooking is the admin confirmation of a pending booking. It is refused
// while payment is required and outstanding.
func (s *bookingService) ConfirmBooking(ctx context.Context, id, actorID string) (*model.Booking, error) {
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)

	return s.mutate(ctx, "ConfirmBooking", id, func(_ context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if !b.Status.CanTransitionTo(model.BookingConfirmed) {
			return nil, apperrors.InvalidTransition("booking", string(b.Status), string(model.BookingConfirmed))
		}
		if s.cfg.RequirePaymentBeforeConfirm && b.PaymentStatus != model.PaymentPaid {
			return nil, apperrors.InvalidTransition("booking", string(b.Status), string(model.BookingConfirmed)).
				WithDetails(map[string]any{
					"from":           b.Status,
					"to":             model.BookingConfirmed,
					"payment_status": b.PaymentStatus,
					"reason":         "payment is required before confirmation",
				})
		}
		b.Status = model.BookingConfirmed
		b.UpdatedAt = now
		return []*model.LedgerEntry{newEntry(b, model.EventConfirmed, actorID, "", now)}, nil
	})
}

func (s *bookingService) CompleteBooking(ctx context.Context, id, actorID string) (*model.Booking, error) {
	return s.moveTo(ctx, "CompleteBooking", id, actorID, model.BookingCompleted)
}

func (s *bookingService) MarkNoShow(ctx context.Context, id, actorID string) (*model.Booking, error) {
	return s.moveTo(ctx, "MarkNoShow", id, actorID, model.BookingNoShow)
}

func (s *bookingService) moveTo(ctx context.Context, op, id, actorID string, target model.BookingStatus) (*model.Booking, error) {
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)

	return s.mutate(ctx, op, id, func(_ context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if !b.Status.CanTransitionTo(target) {
			return nil, apperrors.InvalidTransition("booking", string(b.Status), string(target))
		}
		b.Status = target
		b.UpdatedAt = now
		return []*model.LedgerEntry{newEntry(b, model.StatusEvent(target), actorID, "", now)}, nil
	})
}

// ConfirmPayment marks the outstanding amount as paid.
func (s *bookingService) ConfirmPayment(ctx context.Context, id, actorID string) (*model.Booking, error) {
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)

	return s.mutate(ctx, "ConfirmPayment", id, func(_ context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if err := payable(b, model.PaymentPaid); err != nil {
			return nil, err
		}

		entry := newEntry(b, model.EventPaymentConfirmed, actorID, "", now)
		entry.AmountCents = b.OutstandingCents()
		b.PaidCents = b.TotalCents
		b.PaymentStatus = model.PaymentPaid
		b.UpdatedAt = now

		return append([]*model.LedgerEntry{entry}, s.confirmOnPayment(b, actorID, now)...), nil
	})
}

func (s *bookingService) RecordPayment(ctx context.Context, id string, amountCents int64, actorID, reference string) (*model.Booking, error) {
	if amountCents <= 0 {
		return nil, apperrors.InvalidQuantity("amount_cents", int(amountCents))
	}
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)
	reference = sanitizer.NormalizeReason(reference, maxActorLength)

	return s.mutate(ctx, "RecordPayment", id, func(ctx context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if reference != "" {
			seen, err := s.repo.HasReference(ctx, b.ID, reference)
			if err != nil {
				return nil, apperrors.Internal("Failed to check payment reference", err)
			}
			if seen {
				s.cfg.Log.Ctx(ctx).Info("Payment already recorded", "id", b.ID, "reference", reference)
				return nil, nil
			}
		}

		outstanding := b.OutstandingCents()
		next := model.PaymentPartial
		event := model.EventPaymentRecorded
		if amountCents == outstanding {
			next = model.PaymentPaid
			event = model.EventPaymentConfirmed
		}
		if err := payable(b, next); err != nil {
			return nil, err
		}
		if amountCents > outstanding {
			return nil, apperrors.Validation("Payment exceeds the outstanding amount", map[string]any{
				"amount_cents":      amountCents,
				"outstanding_cents": outstanding,
			})
		}

		entry := newEntry(b, event, actorID, "", now)
		entry.AmountCents = amountCents
		entry.Reference = reference
		b.PaidCents += amountCents
		b.PaymentStatus = next
		b.UpdatedAt = now

		entries := []*model.LedgerEntry{entry}
		if next == model.PaymentPaid {
			entries = append(entries, s.confirmOnPayment(b, actorID, now)...)
		}
		return entries, nil
	})
}

func (s *bookingService) RefundPayment(ctx context.Context, id, actorID, reason string) (*model.Booking, error) {
	actorID = sanitizer.NormalizeReason(actorID, maxActorLength)
	reason = sanitizer.NormalizeReason(reason, maxReasonLength)

	return s.mutate(ctx, "RefundPayment", id, func(_ context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error) {
		if !b.PaymentStatus.CanTransitionTo(model.PaymentRefunded) {
			return nil, apperrors.InvalidTransition("payment", string(b.PaymentStatus), string(model.PaymentRefunded))
		}

		entry := newEntry(b, model.EventPaymentRefunded, actorID, reason, now)
		entry.AmountCents = b.PaidCents
		b.PaidCents = 0
		b.PaymentStatus = model.PaymentRefunded
		b.UpdatedAt = now
		return []*model.LedgerEntry{entry}, nil
	})
}

// payable rejects payments on cancelled bookings and payment moves the
// payment state machine does not allow.
func payable(b *model.Booking, next model.PaymentStatus) error {
	if b.Status == model.BookingCancelled {
		return apperrors.InvalidTransition("payment", string(b.PaymentStatus), string(next)).
			WithDetails(map[string]any{
				"from":           b.PaymentStatus,
				"to":             next,
				"booking_status": b.Status,
			})
	}
	if !b.PaymentStatus.CanTransitionTo(next) {
		return apperrors.InvalidTransition("payment", string(b.PaymentStatus), string(next))
	}
	return nil
}

// confirmOnPayment promotes a pending booking once it is fully paid, when
// confirmation waits for payment.
func (s *bookingService) confirmOnPayment(b *model.Booking, actorID string, now time.Time) []*model.LedgerEntry {
	if !s.cfg.RequirePaymentBeforeConfirm || b.Status != model.BookingPending {
		return nil
	}
	b.Status = model.BookingConfirmed
	return []*model.LedgerEntry{newEntry(b, model.EventConfirmed, actorID, "payment received", now)}
}

type mutation func(ctx context.Context, b *model.Booking, now time.Time) ([]*model.LedgerEntry, error)

// mutate re-reads the booking under its resource lock, applies fn and
// persists the result with its ledger entries. fn returning no entries
// leaves the booking untouched.
func (s *bookingService) mutate(ctx context.Context, op, id string, fn mutation) (*model.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		booking *model.Booking
		entries []*model.LedgerEntry
	)
	err = s.withResourceLock(ctx, current.ResourceID, current.Date, func(ctx context.Context) error {
		b, err := s.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		expect := repository.ExpectationOf(b)

		entries, err = fn(ctx, b, s.now())
		if err != nil {
			return err
		}
		booking = b
		if len(entries) == 0 {
			return nil
		}

		if err := s.repo.Update(ctx, b, expect, entries); err != nil {
			switch {
			case errors.Is(err, bookingserrors.ErrNotFound):
				return apperrors.NotFoundWithID("Booking", id)
			case errors.Is(err, bookingserrors.ErrStaleBooking):
				return apperrors.Conflict("Booking was modified concurrently, try again")
			}
			return apperrors.Internal("Failed to update booking", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, op, err, "id", id)
		return nil, err
	}

	s.publish(ctx, booking, entries)
	if len(entries) > 0 {
		s.cfg.Log.Ctx(ctx).Info("Booking updated",
			"operation", op,
			"id", booking.ID,
			"status", booking.Status,
			"payment_status", booking.PaymentStatus,
		)
	}
	return booking, nil
}

// withResourceLock runs fn while holding the resourceID|date lock. With an
// expiring lock, fn is cancelled before the lease runs out and the caller gets
// a retryable lock timeout.
func (s *bookingService) withResourceLock(ctx context.Context, resourceID, date string, fn func(ctx context.Context) error) error {
	key := model.LockKey(resourceID, date)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	release, err := s.locker.Acquire(lockCtx, key)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return apperrors.LockTimeout(key, err)
		}
		return apperrors.Internal("Failed to acquire resource lock", err)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.cfg.Log.Ctx(ctx).Warn("Failed to release resource lock", "key", key, "error", err)
		}
	}()

	if s.sectionTimeout <= 0 {
		return fn(ctx)
	}

	sectionCtx, cancelSection := context.WithTimeout(ctx, s.sectionTimeout)
	defer cancelSection()

	err = fn(sectionCtx)
	if err != nil && ctx.Err() == nil && errors.Is(sectionCtx.Err(), context.DeadlineExceeded) {
		s.cfg.Log.Ctx(ctx).Warn("Resource lock lease ran out before the write finished",
			"key", key,
			"lease_budget", s.sectionTimeout,
			"error", err,
		)
		return apperrors.LockTimeout(key, err)
	}
	return err
}

// publish sends one event per ledger entry. Failures are logged and never
// undo the committed write.
func (s *bookingService) publish(ctx context.Context, b *model.Booking, entries []*model.LedgerEntry) {
	if len(entries) == 0 {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	for _, e := range entries {
		event := model.NewBookingEvent(b, *e)
		if err := s.publisher.Publish(pubCtx, event); err != nil {
			s.cfg.Log.Ctx(ctx).Warn("Failed to publish booking event",
				"type", event.Type,
				"booking_id", b.ID,
				"sequence", e.Sequence,
				"error", err,
			)
		}
	}
}

func (s *bookingService) logFailure(ctx context.Context, op string, err error, args ...any) {
	args = append(args, "operation", op, "error", err)
	if apperrors.AsAppError(err).Code == apperrors.CodeInternal {
		s.cfg.Log.Ctx(ctx).Error("Booking operation failed", args...)
		return
	}
	s.cfg.Log.Ctx(ctx).Warn("Booking operation rejected", args...)
}

func (s *bookingService) sanitizeRequest(req *model.BookingRequest) {
	req.ResourceID = sanitizer.SanitizeSlug(req.ResourceID)
	req.RequesterID = sanitizer.NormalizeReason(req.RequesterID, maxActorLength)
	req.IdempotencyKey = sanitizer.TrimAndNormalize(req.IdempotencyKey)
}

func newEntry(b *model.Booking, event model.LedgerEvent, actor, reason string, at time.Time) *model.LedgerEntry {
	e := model.NewLedgerEntry(b, event, actor, at)
	e.Reason = reason
	return &e
}

func validationError(message string, err error) error {
	var verrs pkgvalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
