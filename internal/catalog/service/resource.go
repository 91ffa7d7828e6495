package service

import (
	"context"
	"errors"
	"time"

	catalogerrors "cowork/internal/catalog/errors"
	"cowork/internal/catalog/repository"
	"cowork/internal/catalog/validator"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"
	pkgvalidator "cowork/pkg/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxUpdateAttempts = 3
	maxActorLength    = 128
	maxCapacityFilter = 500
)

type ResourceService interface {
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListAvailableResources(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, int64, error)
	CreateResource(ctx context.Context, resource *model.Resource, actor string) error
	SetRate(ctx context.Context, id string, rates model.RateCard, actor string) (*model.Resource, error)
	SetStatus(ctx context.Context, id string, status model.ResourceStatus, actor string) (*model.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	Revisions(ctx context.Context, id string) ([]*model.ResourceRevision, error)
	Seed(ctx context.Context, resources []*model.Resource, actor string) (int, error)
}

// BookingReferenceChecker reports whether live bookings still point at a resource.
type BookingReferenceChecker interface {
	HasActiveBookings(ctx context.Context, resourceID string) (bool, error)
}

type noReferences struct{}

func (noReferences) HasActiveBookings(context.Context, string) (bool, error) { return false, nil }

type resourceService struct {
	repo      repository.ResourceRepository
	validator *validator.ResourceValidator
	refs      BookingReferenceChecker
	cfg       *config.Config
	now       func() time.Time
}

// NewResourceService wires the catalog. refs may be nil when no booking store is reachable.
func NewResourceService(
	repo repository.ResourceRepository,
	validator *validator.ResourceValidator,
	refs BookingReferenceChecker,
	cfg *config.Config,
) ResourceService {
	if refs == nil {
		refs = noReferences{}
	}
	return &resourceService{
		repo:      repo,
		validator: validator,
		refs:      refs,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *resourceService) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to get resource by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	return resource, nil
}

// ListAvailableResources lists resources matching filter. An empty status
// filter means active resources only.
func (s *resourceService) ListAvailableResources(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, int64, error) {
	if filter.Status == "" {
		filter.Status = model.ResourceActive
	}
	filter.MinCapacity = sanitizer.Clamp(filter.MinCapacity, 0, maxCapacityFilter)
	filter.Amenities = sanitizer.SanitizeTags(filter.Amenities)
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = int(config.NormalizeOffset(int64(filter.Offset)))

	var (
		count     int64
		resources []*model.Resource
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count resources", "error", err)
			return apperrors.Internal("Failed to count resources", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		resources, err = s.repo.List(gctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to list resources",
				"kind", filter.Kind,
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			return apperrors.Internal("Failed to retrieve resources", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return resources, count, nil
}

func (s *resourceService) CreateResource(ctx context.Context, resource *model.Resource, actor string) error {
	s.sanitize(resource)
	s.applyDefaults(resource)

	if err := s.validator.Validate(resource); err != nil {
		s.cfg.Log.Warn("Resource validation failed",
			"id", resource.ID,
			"name", resource.Name,
			"error", err,
		)
		return validationError("Resource validation failed", err)
	}

	now := s.now()
	resource.Version = 1
	resource.CreatedAt = now
	resource.UpdatedAt = now

	rev := revisionOf(resource, sanitizer.NormalizeReason(actor, maxActorLength), now)
	if err := s.repo.Create(ctx, resource, rev); err != nil {
		if errors.Is(err, catalogerrors.ErrDuplicate) {
			return apperrors.Conflict("Resource with id " + resource.ID + " already exists")
		}
		s.cfg.Log.Error("Failed to create resource", "id", resource.ID, "error", err)
		return apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created successfully",
		"id", resource.ID,
		"kind", resource.Kind,
		"capacity", resource.Capacity,
		"actor", actor,
	)
	return nil
}

func (s *resourceService) SetRate(ctx context.Context, id string, rates model.RateCard, actor string) (*model.Resource, error) {
	if err := s.validator.ValidateRates(rates); err != nil {
		return nil, validationError("Rate card validation failed", err)
	}

	updated, err := s.update(ctx, id, actor, func(r *model.Resource) bool {
		if r.Rates == rates {
			return false
		}
		r.Rates = rates
		return true
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Resource rates updated",
		"id", id,
		"version", updated.Version,
		"per_hour_cents", rates.PerHourCents,
		"per_day_cents", rates.PerDayCents,
		"per_month_cents", rates.PerMonthCents,
		"actor", actor,
	)
	return updated, nil
}

// SetStatus moves a resource between active, retired and under_maintenance.
// Existing bookings are left alone; only new requests are refused.
func (s *resourceService) SetStatus(ctx context.Context, id string, status model.ResourceStatus, actor string) (*model.Resource, error) {
	if err := s.validator.ValidateStatus(&model.StatusUpdate{Status: status}); err != nil {
		return nil, validationError("Status validation failed", err)
	}

	updated, err := s.update(ctx, id, actor, func(r *model.Resource) bool {
		if r.Status == status {
			return false
		}
		r.Status = status
		return true
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Resource status updated",
		"id", id,
		"version", updated.Version,
		"status", status,
		"actor", actor,
	)
	return updated, nil
}

// update applies mutate with optimistic concurrency, retrying on version races.
// mutate returns false when there is nothing to change.
func (s *resourceService) update(ctx context.Context, id, actor string, mutate func(r *model.Resource) bool) (*model.Resource, error) {
	actor = sanitizer.NormalizeReason(actor, maxActorLength)

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		resource, err := s.GetResource(ctx, id)
		if err != nil {
			return nil, err
		}
		if !mutate(resource) {
			return resource, nil
		}

		expected := resource.Version
		now := s.now()
		resource.Version++
		resource.UpdatedAt = now

		err = s.repo.Update(ctx, resource, expected, revisionOf(resource, actor, now))
		switch {
		case err == nil:
			return resource, nil
		case errors.Is(err, catalogerrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Resource", id)
		case errors.Is(err, catalogerrors.ErrVersionConflict):
			s.cfg.Log.Warn("Resource version conflict, retrying",
				"id", id,
				"expected_version", expected,
				"attempt", attempt,
			)
			continue
		default:
			s.cfg.Log.Error("Failed to update resource", "id", id, "error", err)
			return nil, apperrors.Internal("Failed to update resource", err)
		}
	}

	return nil, apperrors.Conflict("Resource " + id + " is being modified concurrently, try again")
}

func (s *resourceService) DeleteResource(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Resource ID cannot be empty")
	}

	referenced, err := s.refs.HasActiveBookings(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to check booking references", "id", id, "error", err)
		return apperrors.Internal("Failed to check booking references", err)
	}
	if referenced {
		return apperrors.Conflict("Resource " + id + " still has active bookings; retire it instead")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, catalogerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to delete resource", "id", id, "error", err)
		return apperrors.Internal("Failed to delete resource", err)
	}

	s.cfg.Log.Info("Resource deleted", "id", id)
	return nil
}

func (s *resourceService) Revisions(ctx context.Context, id string) ([]*model.ResourceRevision, error) {
	if _, err := s.GetResource(ctx, id); err != nil {
		return nil, err
	}

	revisions, err := s.repo.Revisions(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to list resource revisions", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource revisions", err)
	}
	return revisions, nil
}

// Seed creates the given resources, skipping ids that already exist. It
// returns how many were created.
func (s *resourceService) Seed(ctx context.Context, resources []*model.Resource, actor string) (int, error) {
	created := 0
	for _, r := range resources {
		err := s.CreateResource(ctx, r, actor)
		if err == nil {
			created++
			continue
		}
		if apperrors.AsAppError(err).Code == apperrors.CodeConflict {
			s.cfg.Log.Debug("Seed resource already present", "id", r.ID)
			continue
		}
		return created, err
	}
	return created, nil
}

func (s *resourceService) sanitize(r *model.Resource) {
	r.ID = sanitizer.SanitizeSlug(r.ID)
	r.Name = sanitizer.NormalizeName(r.Name)
	r.Amenities = sanitizer.SanitizeTags(r.Amenities)
}

func (s *resourceService) applyDefaults(r *model.Resource) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.ResourceActive
	}
	if r.PricingUnit == "" {
		r.PricingUnit = model.PricePerResource
	}
	if r.Kind == model.KindSeat && r.Capacity == 0 {
		r.Capacity = 1
	}
}

func revisionOf(r *model.Resource, actor string, at time.Time) *model.ResourceRevision {
	return &model.ResourceRevision{
		ResourceID: r.ID,
		Version:    r.Version,
		Rates:      r.Rates,
		Status:     r.Status,
		ChangedBy:  actor,
		ChangedAt:  at,
	}
}

func validationError(message string, err error) error {
	var verrs pkgvalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
