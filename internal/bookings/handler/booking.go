package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cowork/internal/bookings/service"
	"cowork/internal/bookings/validator"
	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"
	pkgvalidator "cowork/pkg/validator"

	"github.com/julienschmidt/httprouter"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type BookingHandler struct {
	service   service.BookingService
	validator *validator.BookingValidator
	log       *logger.Logger
}

func NewBookingHandler(service service.BookingService, validator *validator.BookingValidator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	req.RequesterID = requester
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))

	booking, err := h.service.RequestBooking(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entries, err := h.service.History(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "History", err)
		return
	}
	h.writeSuccess(w, "History", entries)
}

// Mine lists the caller's bookings, newest first.
func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	bookings, total, err := h.service.ListByRequester(r.Context(), requester, limit, offset)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Mine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	var req model.CancelRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	if err := h.validator.ValidateCancel(&req); err != nil {
		h.writeError(w, "Cancel", validationError("Cancel request validation failed", err))
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), ps.ByName("id"), actor, req.Reason)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeSuccess(w, "Cancel", booking)
}

type transition func(ctx context.Context, id, actorID string) (*model.Booking, error)

// applyTransition serves a body-less state change on the booking named in the path.
func (h *BookingHandler) applyTransition(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, fn transition) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	booking, err := fn(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, name, err)
		return
	}
	h.writeSuccess(w, name, booking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.applyTransition(w, r, ps, "Confirm", h.service.ConfirmBooking)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.applyTransition(w, r, ps, "Complete", h.service.CompleteBooking)
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.applyTransition(w, r, ps, "NoShow", h.service.MarkNoShow)
}

func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.applyTransition(w, r, ps, "ConfirmPayment", h.service.ConfirmPayment)
}

// RecordPayment applies a partial payment. The Idempotency-Key header, when
// present, is kept as the payment reference.
func (h *BookingHandler) RecordPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "RecordPayment", err)
		return
	}

	var req model.PaymentRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.writeError(w, "RecordPayment", err)
		return
	}
	if err := h.validator.ValidatePayment(&req); err != nil {
		h.writeError(w, "RecordPayment", validationError("Payment request validation failed", err))
		return
	}

	reference := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	booking, err := h.service.RecordPayment(r.Context(), ps.ByName("id"), req.AmountCents, actor, reference)
	if err != nil {
		h.writeError(w, "RecordPayment", err)
		return
	}
	h.writeSuccess(w, "RecordPayment", booking)
}

func (h *BookingHandler) Refund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "Refund", err)
		return
	}

	var req model.CancelRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		h.writeError(w, "Refund", err)
		return
	}

	booking, err := h.service.RefundPayment(r.Context(), ps.ByName("id"), actor, req.Reason)
	if err != nil {
		h.writeError(w, "Refund", err)
		return
	}
	h.writeSuccess(w, "Refund", booking)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/mine", h.Mine)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/id/:id/history", h.History)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.POST("/api/v1/bookings/id/:id/no-show", h.NoShow)
	router.POST("/api/v1/bookings/id/:id/payments", h.RecordPayment)
	router.POST("/api/v1/bookings/id/:id/payments/confirm", h.ConfirmPayment)
	router.POST("/api/v1/bookings/id/:id/payments/refund", h.Refund)
}

func validationError(message string, err error) error {
	var verrs pkgvalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
