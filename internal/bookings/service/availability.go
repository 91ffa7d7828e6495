package service

import (
	"context"
	"iter"
	"slices"

	"cowork/internal/bookings/repository"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"
)

// ResourceProvider resolves catalog resources. The catalog service satisfies it.
type ResourceProvider interface {
	GetResource(ctx context.Context, id string) (*model.Resource, error)
}

// Availability answers a single "is this range free" query.
type Availability struct {
	ResourceID string          `json:"resource_id"`
	Range      model.TimeRange `json:"range"`
	Free       bool            `json:"free"`
}

// AvailabilityService derives free and occupied ranges from the ledger on
// every call. It keeps no state between requests.
type AvailabilityService interface {
	IsFree(ctx context.Context, resourceID string, tr model.TimeRange) (bool, error)
	OccupiedRanges(ctx context.Context, resourceID, date string) ([]model.TimeRange, error)
	// FreeRangesFor yields the free sub-ranges of the operating window in start order.
	FreeRangesFor(ctx context.Context, resourceID, date string) (iter.Seq[model.TimeRange], error)

	Check(ctx context.Context, resourceID, date, start, end string) (*Availability, error)
	FreeSlots(ctx context.Context, resourceID, date string) ([]model.TimeRange, error)
}

type availabilityService struct {
	repo      repository.BookingRepository
	resources ResourceProvider
	cfg       *config.Config
}

func NewAvailabilityService(repo repository.BookingRepository, resources ResourceProvider, cfg *config.Config) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		resources: resources,
		cfg:       cfg,
	}
}

func (s *availabilityService) IsFree(ctx context.Context, resourceID string, tr model.TimeRange) (bool, error) {
	occupied, err := s.OccupiedRanges(ctx, resourceID, tr.Date())
	if err != nil {
		return false, err
	}
	for _, o := range occupied {
		if o.Overlaps(tr) {
			return false, nil
		}
	}
	return true, nil
}

func (s *availabilityService) OccupiedRanges(ctx context.Context, resourceID, date string) ([]model.TimeRange, error) {
	bookings, err := s.repo.FindActiveByResourceAndDate(ctx, resourceID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings for availability",
			"resource_id", resourceID,
			"date", date,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to load bookings", err)
	}

	ranges := make([]model.TimeRange, 0, len(bookings))
	for _, b := range bookings {
		ranges = append(ranges, b.TimeRange(s.cfg.OperatingHours.Location))
	}
	slices.SortFunc(ranges, func(a, b model.TimeRange) int {
		as, _ := a.Bounds()
		bs, _ := b.Bounds()
		return as - bs
	})
	return ranges, nil
}

func (s *availabilityService) FreeRangesFor(ctx context.Context, resourceID, date string) (iter.Seq[model.TimeRange], error) {
	window, err := s.cfg.OperatingHours.Window(date)
	if err != nil {
		return nil, apperrors.InvalidRange(err.Error(), map[string]any{"date": date})
	}

	occupied, err := s.OccupiedRanges(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return freeRanges(window, occupied), nil
}

// freeRanges walks occupied (sorted by start) and yields the gaps left in window.
func freeRanges(window model.TimeRange, occupied []model.TimeRange) iter.Seq[model.TimeRange] {
	return func(yield func(model.TimeRange) bool) {
		cursor, closeMin := window.Bounds()
		for _, o := range occupied {
			start, end := o.Bounds()
			if start >= closeMin {
				break
			}
			if start > cursor {
				if !yield(window.Sub(cursor, start)) {
					return
				}
			}
			cursor = max(cursor, end)
			if cursor >= closeMin {
				return
			}
		}
		if cursor < closeMin {
			yield(window.Sub(cursor, closeMin))
		}
	}
}

func (s *availabilityService) Check(ctx context.Context, resourceID, date, start, end string) (*Availability, error) {
	resourceID = sanitizer.SanitizeSlug(resourceID)
	tr, err := model.NewTimeRange(date, start, end, s.cfg.OperatingHours)
	if err != nil {
		return nil, err
	}
	if _, err := s.resources.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	free, err := s.IsFree(ctx, resourceID, tr)
	if err != nil {
		return nil, err
	}
	return &Availability{ResourceID: resourceID, Range: tr, Free: free}, nil
}

func (s *availabilityService) FreeSlots(ctx context.Context, resourceID, date string) ([]model.TimeRange, error) {
	resourceID = sanitizer.SanitizeSlug(resourceID)
	if _, err := s.resources.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	seq, err := s.FreeRangesFor(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	free := slices.Collect(seq)
	if free == nil {
		free = []model.TimeRange{}
	}
	return free, nil
}
