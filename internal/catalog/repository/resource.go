package repository

import (
	"context"

	"cowork/pkg/model"
)

// ResourceRepository stores catalog resources together with their revision history.
// Create and Update append the given revision in the same transaction as the row write.
type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource, rev *model.ResourceRevision) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	List(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, error)
	Count(ctx context.Context, filter model.ResourceFilter) (int64, error)
	// Update persists rates, status and version when the stored version still
	// equals expectedVersion, otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, resource *model.Resource, expectedVersion int, rev *model.ResourceRevision) error
	Delete(ctx context.Context, id string) error
	Revisions(ctx context.Context, id string) ([]*model.ResourceRevision, error)
}
