package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	catalogerrors "cowork/internal/catalog/errors"
	"cowork/pkg/model"
)

// memoryResourceRepository keeps the catalog in process memory. Values are
// copied on the way in and out so callers never share state with the store.
type memoryResourceRepository struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
	revisions map[string][]*model.ResourceRevision
}

func NewMemoryResourceRepository() ResourceRepository {
	return &memoryResourceRepository{
		resources: make(map[string]*model.Resource),
		revisions: make(map[string][]*model.ResourceRevision),
	}
}

func cloneResource(r *model.Resource) *model.Resource {
	c := *r
	c.Amenities = slices.Clone(r.Amenities)
	return &c
}

func (m *memoryResourceRepository) Create(_ context.Context, resource *model.Resource, rev *model.ResourceRevision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.resources[resource.ID]; exists {
		return catalogerrors.ErrDuplicate
	}
	m.resources[resource.ID] = cloneResource(resource)
	revCopy := *rev
	m.revisions[resource.ID] = append(m.revisions[resource.ID], &revCopy)
	return nil
}

func (m *memoryResourceRepository) FindByID(_ context.Context, id string) (*model.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.resources[id]
	if !ok {
		return nil, catalogerrors.ErrNotFound
	}
	return cloneResource(r), nil
}

func (m *memoryResourceRepository) matching(filter model.ResourceFilter) []*model.Resource {
	var out []*model.Resource
	for _, r := range m.resources {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *model.Resource) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *memoryResourceRepository) List(_ context.Context, filter model.ResourceFilter) ([]*model.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.matching(filter)
	start := min(max(filter.Offset, 0), len(all))
	end := len(all)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(all))
	}

	out := make([]*model.Resource, 0, end-start)
	for _, r := range all[start:end] {
		out = append(out, cloneResource(r))
	}
	return out, nil
}

func (m *memoryResourceRepository) Count(_ context.Context, filter model.ResourceFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memoryResourceRepository) Update(_ context.Context, resource *model.Resource, expectedVersion int, rev *model.ResourceRevision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.resources[resource.ID]
	if !ok {
		return catalogerrors.ErrNotFound
	}
	if current.Version != expectedVersion {
		return catalogerrors.ErrVersionConflict
	}

	current.Rates = resource.Rates
	current.Status = resource.Status
	current.Version = resource.Version
	current.UpdatedAt = resource.UpdatedAt

	revCopy := *rev
	m.revisions[resource.ID] = append(m.revisions[resource.ID], &revCopy)
	return nil
}

func (m *memoryResourceRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resources[id]; !ok {
		return catalogerrors.ErrNotFound
	}
	delete(m.resources, id)
	delete(m.revisions, id)
	return nil
}

func (m *memoryResourceRepository) Revisions(_ context.Context, id string) ([]*model.ResourceRevision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.ResourceRevision, 0, len(m.revisions[id]))
	for _, rev := range m.revisions[id] {
		c := *rev
		out = append(out, &c)
	}
	return out, nil
}
