package handler

import (
	"net/http"

	"cowork/internal/bookings/service"
	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

type freeRangesResponse struct {
	ResourceID string            `json:"resource_id"`
	Date       string            `json:"date"`
	Free       []model.TimeRange `json:"free"`
}

// Check serves GET /api/v1/availability/:resource_id?date=&start=&end=
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()
	date, start, end := query.Get("date"), query.Get("start"), query.Get("end")
	if date == "" || start == "" || end == "" {
		h.writeError(w, "Check", apperrors.InvalidInput("date, start and end query parameters are required"))
		return
	}

	result, err := h.service.Check(r.Context(), ps.ByName("resource_id"), date, start, end)
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Check", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) Free(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("resource_id")
	date := r.URL.Query().Get("date")
	if date == "" {
		h.writeError(w, "Free", apperrors.InvalidInput("date query parameter is required"))
		return
	}

	free, err := h.service.FreeSlots(r.Context(), resourceID, date)
	if err != nil {
		h.writeError(w, "Free", err)
		return
	}

	if err := httputil.WriteSuccess(w, freeRangesResponse{ResourceID: resourceID, Date: date, Free: free}); err != nil {
		h.log.Error("failed to write success response", "handler", "Free", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability/:resource_id", h.Check)
	router.GET("/api/v1/availability/:resource_id/free", h.Free)
}
