package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockResourceService struct {
	getResourceFunc func(ctx context.Context, id string) (*model.Resource, error)
	listFunc        func(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, int64, error)
	createFunc      func(ctx context.Context, resource *model.Resource, actor string) error
	setRateFunc     func(ctx context.Context, id string, rates model.RateCard, actor string) (*model.Resource, error)
	setStatusFunc   func(ctx context.Context, id string, status model.ResourceStatus, actor string) (*model.Resource, error)
	deleteFunc      func(ctx context.Context, id string) error
	revisionsFunc   func(ctx context.Context, id string) ([]*model.ResourceRevision, error)
}

func (m *mockResourceService) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	if m.getResourceFunc != nil {
		return m.getResourceFunc(ctx, id)
	}
	return nil, apperrors.NotFoundWithID("Resource", id)
}

func (m *mockResourceService) ListAvailableResources(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*model.Resource{}, 0, nil
}

func (m *mockResourceService) CreateResource(ctx context.Context, resource *model.Resource, actor string) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, resource, actor)
	}
	return nil
}

func (m *mockResourceService) SetRate(ctx context.Context, id string, rates model.RateCard, actor string) (*model.Resource, error) {
	if m.setRateFunc != nil {
		return m.setRateFunc(ctx, id, rates, actor)
	}
	return &model.Resource{ID: id, Rates: rates}, nil
}

func (m *mockResourceService) SetStatus(ctx context.Context, id string, status model.ResourceStatus, actor string) (*model.Resource, error) {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status, actor)
	}
	return &model.Resource{ID: id, Status: status}, nil
}

func (m *mockResourceService) DeleteResource(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockResourceService) Revisions(ctx context.Context, id string) ([]*model.ResourceRevision, error) {
	if m.revisionsFunc != nil {
		return m.revisionsFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockResourceService) Seed(ctx context.Context, resources []*model.Resource, actor string) (int, error) {
	return 0, nil
}

func newRouter(svc *mockResourceService) *httprouter.Router {
	router := httprouter.New()
	NewResourceHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestList_ParsesFilter(t *testing.T) {
	var received model.ResourceFilter
	svc := &mockResourceService{
		listFunc: func(ctx context.Context, filter model.ResourceFilter) ([]*model.Resource, int64, error) {
			received = filter
			return []*model.Resource{{ID: "room-3"}}, 1, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources?kind=room&min_capacity=5&amenities=whiteboard,video_conf&floor=2&limit=5&offset=1", nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if received.Kind != model.KindRoom || received.MinCapacity != 5 || len(received.Amenities) != 2 {
		t.Errorf("filter = %+v", received)
	}
	if received.Floor == nil || *received.Floor != 2 {
		t.Errorf("floor = %v, want 2", received.Floor)
	}
	if received.Limit != 5 || received.Offset != 1 {
		t.Errorf("paging = %d/%d, want 5/1", received.Limit, received.Offset)
	}

	var body httputil.PaginatedResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.TotalCount != 1 {
		t.Errorf("total_count = %d, want 1", body.TotalCount)
	}
}

func TestList_InvalidQuery(t *testing.T) {
	for _, query := range []string{"?min_capacity=many", "?floor=top", "?kind=desk", "?limit=abc"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/resources"+query, nil)
			w := httptest.NewRecorder()
			newRouter(&mockResourceService{}).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	var actor string
	svc := &mockResourceService{
		createFunc: func(ctx context.Context, resource *model.Resource, a string) error {
			actor = a
			resource.Version = 1
			return nil
		},
	}

	body := `{"id":"room-3","kind":"room","name":"Room 3","capacity":6,"rates":{"per_hour_cents":5000}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(body))
	req.Header.Set(httputil.RequesterHeader, "admin-1")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if actor != "admin-1" {
		t.Errorf("actor = %q, want admin-1", actor)
	}
}

func TestCreate_RequiresRequester(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	newRouter(&mockResourceService{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreate_UnknownField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", strings.NewReader(`{"name":"x","colour":"blue"}`))
	req.Header.Set(httputil.RequesterHeader, "admin-1")
	w := httptest.NewRecorder()
	newRouter(&mockResourceService{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSetRates(t *testing.T) {
	var gotRates model.RateCard
	svc := &mockResourceService{
		setRateFunc: func(ctx context.Context, id string, rates model.RateCard, actor string) (*model.Resource, error) {
			gotRates = rates
			return &model.Resource{ID: id, Rates: rates, Version: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/resources/id/room-3/rates", strings.NewReader(`{"rates":{"per_day_cents":42000}}`))
	req.Header.Set(httputil.RequesterHeader, "admin-1")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotRates.PerDayCents != 42000 {
		t.Errorf("rates = %+v", gotRates)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources/id/absent", nil)
	w := httptest.NewRecorder()
	newRouter(&mockResourceService{}).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDelete_Conflict(t *testing.T) {
	svc := &mockResourceService{
		deleteFunc: func(ctx context.Context, id string) error {
			return apperrors.Conflict("Resource " + id + " still has active bookings")
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/resources/id/room-3", nil)
	req.Header.Set(httputil.RequesterHeader, "admin-1")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}
