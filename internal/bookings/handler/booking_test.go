package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cowork/internal/bookings/service"
	"cowork/internal/bookings/validator"
	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	requestFunc    func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	getFunc        func(ctx context.Context, id string) (*model.Booking, error)
	listFunc       func(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error)
	historyFunc    func(ctx context.Context, id string) ([]*model.LedgerEntry, error)
	cancelFunc     func(ctx context.Context, id, actorID, reason string) (*model.Booking, error)
	transitionFunc func(op, id, actorID string) (*model.Booking, error)
	recordFunc     func(ctx context.Context, id string, amountCents int64, actorID, reference string) (*model.Booking, error)
}

func (m *mockBookingService) RequestBooking(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	return m.requestFunc(ctx, req)
}

func (m *mockBookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, apperrors.NotFoundWithID("Booking", id)
}

func (m *mockBookingService) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, requesterID, limit, offset)
}

func (m *mockBookingService) History(ctx context.Context, id string) ([]*model.LedgerEntry, error) {
	return m.historyFunc(ctx, id)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, id, actorID, reason string) (*model.Booking, error) {
	return m.cancelFunc(ctx, id, actorID, reason)
}

func (m *mockBookingService) transition(op, id, actorID string) (*model.Booking, error) {
	if m.transitionFunc != nil {
		return m.transitionFunc(op, id, actorID)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) ConfirmBooking(_ context.Context, id, actorID string) (*model.Booking, error) {
	return m.transition("confirm", id, actorID)
}

func (m *mockBookingService) CompleteBooking(_ context.Context, id, actorID string) (*model.Booking, error) {
	return m.transition("complete", id, actorID)
}

func (m *mockBookingService) MarkNoShow(_ context.Context, id, actorID string) (*model.Booking, error) {
	return m.transition("no_show", id, actorID)
}

func (m *mockBookingService) ConfirmPayment(_ context.Context, id, actorID string) (*model.Booking, error) {
	return m.transition("confirm_payment", id, actorID)
}

func (m *mockBookingService) RecordPayment(ctx context.Context, id string, amountCents int64, actorID, reference string) (*model.Booking, error) {
	return m.recordFunc(ctx, id, amountCents, actorID, reference)
}

func (m *mockBookingService) RefundPayment(_ context.Context, id, actorID, _ string) (*model.Booking, error) {
	return m.transition("refund", id, actorID)
}

type mockAvailabilityService struct {
	checkFunc func(ctx context.Context, resourceID, date, start, end string) (*service.Availability, error)
	freeFunc  func(ctx context.Context, resourceID, date string) ([]model.TimeRange, error)
}

func (m *mockAvailabilityService) IsFree(context.Context, string, model.TimeRange) (bool, error) {
	return true, nil
}

func (m *mockAvailabilityService) OccupiedRanges(context.Context, string, string) ([]model.TimeRange, error) {
	return nil, nil
}

func (m *mockAvailabilityService) FreeRangesFor(context.Context, string, string) (iter.Seq[model.TimeRange], error) {
	return func(func(model.TimeRange) bool) {}, nil
}

func (m *mockAvailabilityService) Check(ctx context.Context, resourceID, date, start, end string) (*service.Availability, error) {
	return m.checkFunc(ctx, resourceID, date, start, end)
}

func (m *mockAvailabilityService) FreeSlots(ctx context.Context, resourceID, date string) ([]model.TimeRange, error) {
	return m.freeFunc(ctx, resourceID, date)
}

func newRouter(bookings *mockBookingService, availability *mockAvailabilityService) *httprouter.Router {
	log := logger.Discard()
	router := httprouter.New()
	NewBookingHandler(bookings, validator.NewBookingValidator(log), log).RegisterRoutes(router)
	NewAvailabilityHandler(availability, log).RegisterRoutes(router)
	return router
}

func serve(router *httprouter.Router, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func TestCreate_PassesRequesterAndIdempotencyKey(t *testing.T) {
	var received *model.BookingRequest
	svc := &mockBookingService{
		requestFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			received = req
			return &model.Booking{ID: "b-1", ResourceID: req.ResourceID, Status: model.BookingPending}, nil
		},
	}

	body := `{"resource_id":"room-3","date":"2030-03-04","start":"09:00","end":"11:00","party_size":4}`
	w := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", body, map[string]string{
		httputil.RequesterHeader: "member-1",
		IdempotencyKeyHeader:     " key-1 ",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if received.RequesterID != "member-1" || received.IdempotencyKey != "key-1" {
		t.Errorf("request = %+v", received)
	}
	if received.PartySize != 4 || received.Start != "09:00" {
		t.Errorf("request body not decoded: %+v", received)
	}
}

func TestCreate_RequiresRequester(t *testing.T) {
	svc := &mockBookingService{requestFunc: func(context.Context, *model.BookingRequest) (*model.Booking, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	w := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", `{"resource_id":"room-3"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreate_RejectsUnknownFields(t *testing.T) {
	svc := &mockBookingService{}
	w := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", `{"resource_id":"room-3","requester_id":"spoofed"}`,
		map[string]string{httputil.RequesterHeader: "member-1"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreate_MapsEngineErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "slot conflict", err: apperrors.SlotConflict("taken", nil), wantCode: http.StatusConflict, wantBody: apperrors.CodeSlotConflict},
		{name: "capacity", err: apperrors.CapacityExceeded("room-3", 9, 8), wantCode: http.StatusUnprocessableEntity, wantBody: apperrors.CodeCapacityExceeded},
		{name: "lock timeout", err: apperrors.LockTimeout("room-3|2030-03-04", context.DeadlineExceeded), wantCode: http.StatusServiceUnavailable, wantBody: apperrors.CodeLockTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{requestFunc: func(context.Context, *model.BookingRequest) (*model.Booking, error) {
				return nil, tt.err
			}}

			w := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings",
				`{"resource_id":"room-3","date":"2030-03-04","start":"09:00","end":"11:00","party_size":1}`,
				map[string]string{httputil.RequesterHeader: "member-1"})

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if body := decodeError(t, w); body.Code != tt.wantBody {
				t.Errorf("code = %s, want %s", body.Code, tt.wantBody)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	w := serve(newRouter(&mockBookingService{}, nil), http.MethodGet, "/api/v1/bookings/id/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestMine_Paginates(t *testing.T) {
	svc := &mockBookingService{
		listFunc: func(_ context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error) {
			if requesterID != "member-1" || limit != 2 || offset != 4 {
				t.Errorf("list(%s, %d, %d)", requesterID, limit, offset)
			}
			return []*model.Booking{{ID: "b-1"}}, 5, nil
		},
	}

	w := serve(newRouter(svc, nil), http.MethodGet, "/api/v1/bookings/mine?limit=2&offset=4", "", map[string]string{httputil.RequesterHeader: "member-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body httputil.PaginatedResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.TotalCount != 5 {
		t.Errorf("total_count = %d, want 5", body.TotalCount)
	}
}

func TestCancel(t *testing.T) {
	var gotReason string
	svc := &mockBookingService{
		cancelFunc: func(_ context.Context, id, actorID, reason string) (*model.Booking, error) {
			gotReason = reason
			return &model.Booking{ID: id, Status: model.BookingCancelled}, nil
		},
	}
	router := newRouter(svc, nil)
	headers := map[string]string{httputil.RequesterHeader: "member-1"}

	w := serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/cancel", `{"reason":"sick"}`, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotReason != "sick" {
		t.Errorf("reason = %q", gotReason)
	}

	w = serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/cancel", "", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("empty body: status = %d, body = %s", w.Code, w.Body.String())
	}

	svc.cancelFunc = func(context.Context, string, string, string) (*model.Booking, error) {
		return nil, apperrors.InvalidTransition("booking", "cancelled", "cancelled")
	}
	w = serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/cancel", "", headers)
	if w.Code != http.StatusConflict {
		t.Fatalf("repeat cancel: status = %d, want 409", w.Code)
	}
}

func TestTransitions_RouteToService(t *testing.T) {
	routes := map[string]string{
		"/api/v1/bookings/id/b-1/confirm":          "confirm",
		"/api/v1/bookings/id/b-1/complete":         "complete",
		"/api/v1/bookings/id/b-1/no-show":          "no_show",
		"/api/v1/bookings/id/b-1/payments/confirm": "confirm_payment",
		"/api/v1/bookings/id/b-1/payments/refund":  "refund",
	}

	for path, wantOp := range routes {
		t.Run(wantOp, func(t *testing.T) {
			var gotOp, gotActor string
			svc := &mockBookingService{transitionFunc: func(op, id, actorID string) (*model.Booking, error) {
				gotOp, gotActor = op, actorID
				return &model.Booking{ID: id}, nil
			}}

			w := serve(newRouter(svc, nil), http.MethodPost, path, "", map[string]string{httputil.RequesterHeader: "admin"})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if gotOp != wantOp || gotActor != "admin" {
				t.Errorf("op = %s actor = %s", gotOp, gotActor)
			}
		})
	}
}

func TestRecordPayment(t *testing.T) {
	var gotAmount int64
	var gotReference string
	svc := &mockBookingService{
		recordFunc: func(_ context.Context, id string, amountCents int64, _, reference string) (*model.Booking, error) {
			gotAmount, gotReference = amountCents, reference
			return &model.Booking{ID: id, PaymentStatus: model.PaymentPartial}, nil
		},
	}
	router := newRouter(svc, nil)

	w := serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/payments", `{"amount_cents":2500}`, map[string]string{
		httputil.RequesterHeader: "cashier",
		IdempotencyKeyHeader:     "pay-9",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotAmount != 2500 || gotReference != "pay-9" {
		t.Errorf("amount = %d reference = %s", gotAmount, gotReference)
	}

	w = serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/payments", `{"amount_cents":0}`, map[string]string{httputil.RequesterHeader: "cashier"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero amount: status = %d, want 422", w.Code)
	}
	if body := decodeError(t, w); body.Code != apperrors.CodeValidation {
		t.Errorf("code = %s, want %s", body.Code, apperrors.CodeValidation)
	}
}

func TestAvailability_Check(t *testing.T) {
	avail := &mockAvailabilityService{
		checkFunc: func(_ context.Context, resourceID, date, start, end string) (*service.Availability, error) {
			tr, err := model.NewTimeRange(date, start, end, model.DefaultOperatingHours())
			if err != nil {
				return nil, err
			}
			return &service.Availability{ResourceID: resourceID, Range: tr, Free: true}, nil
		},
	}
	router := newRouter(&mockBookingService{}, avail)

	w := serve(router, http.MethodGet, "/api/v1/availability/room-3?date=2030-03-04&start=09:00&end=10:00", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"free":true`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = serve(router, http.MethodGet, "/api/v1/availability/room-3?date=2030-03-04", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing params: status = %d, want 400", w.Code)
	}
}

func TestAvailability_Free(t *testing.T) {
	hours := model.OperatingHours{Open: 8 * 60, Close: 20 * 60}
	avail := &mockAvailabilityService{
		freeFunc: func(_ context.Context, _, date string) ([]model.TimeRange, error) {
			window, err := hours.Window(date)
			if err != nil {
				return nil, apperrors.InvalidRange(err.Error(), nil)
			}
			return []model.TimeRange{window}, nil
		},
	}
	router := newRouter(&mockBookingService{}, avail)

	w := serve(router, http.MethodGet, "/api/v1/availability/room-3/free?date=2030-03-04", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"resource_id":"room-3"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = serve(router, http.MethodGet, "/api/v1/availability/room-3/free?date=tomorrow", "", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad date: status = %d, want 422", w.Code)
	}
}
