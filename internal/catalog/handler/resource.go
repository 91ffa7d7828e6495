package handler

import (
	"net/http"
	"strconv"
	"strings"

	"cowork/internal/catalog/service"
	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ResourceHandler struct {
	service service.ResourceService
	log     *logger.Logger
}

func NewResourceHandler(service service.ResourceService, log *logger.Logger) *ResourceHandler {
	return &ResourceHandler{
		service: service,
		log:     log,
	}
}

func (h *ResourceHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var resource model.Resource
	if err := httputil.DecodeJSON(r, &resource, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.CreateResource(r.Context(), &resource, actor); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, resource); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ResourceHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resource, err := h.service.GetResource(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, resource); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// List serves GET /api/v1/resources?kind=&min_capacity=&amenities=a,b&status=&floor=&limit=&offset=
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	filter.Limit = limit
	filter.Offset = int(offset)

	resources, total, err := h.service.ListAvailableResources(r.Context(), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, resources, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func parseFilter(r *http.Request) (model.ResourceFilter, error) {
	query := r.URL.Query()
	filter := model.ResourceFilter{
		Kind:   model.ResourceKind(query.Get("kind")),
		Status: model.ResourceStatus(query.Get("status")),
	}

	if s := query.Get("min_capacity"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid min_capacity parameter: " + s)
		}
		filter.MinCapacity = v
	}
	if s := query.Get("floor"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid floor parameter: " + s)
		}
		filter.Floor = &v
	}
	for _, raw := range query["amenities"] {
		filter.Amenities = append(filter.Amenities, strings.Split(raw, ",")...)
	}

	switch filter.Kind {
	case "", model.KindRoom, model.KindSeat:
	default:
		return filter, apperrors.InvalidInput("invalid kind parameter: " + string(filter.Kind))
	}
	return filter, nil
}

func (h *ResourceHandler) SetRates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "SetRates", err)
		return
	}

	var update model.RateUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "SetRates", err)
		return
	}

	resource, err := h.service.SetRate(r.Context(), ps.ByName("id"), update.Rates, actor)
	if err != nil {
		h.writeError(w, "SetRates", err)
		return
	}

	if err := httputil.WriteSuccess(w, resource); err != nil {
		h.log.Error("failed to write success response", "handler", "SetRates", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ResourceHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.RequesterID(r)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	var update model.StatusUpdate
	if err := httputil.DecodeJSON(r, &update, false); err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	resource, err := h.service.SetStatus(r.Context(), ps.ByName("id"), update.Status, actor)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, resource); err != nil {
		h.log.Error("failed to write success response", "handler", "SetStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ResourceHandler) Revisions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	revisions, err := h.service.Revisions(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Revisions", err)
		return
	}

	if err := httputil.WriteSuccess(w, revisions); err != nil {
		h.log.Error("failed to write success response", "handler", "Revisions", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := httputil.RequesterID(r); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := h.service.DeleteResource(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ResourceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/resources", h.Create)
	router.GET("/api/v1/resources", h.List)
	router.GET("/api/v1/resources/id/:id", h.GetByID)
	router.PUT("/api/v1/resources/id/:id/rates", h.SetRates)
	router.PUT("/api/v1/resources/id/:id/status", h.SetStatus)
	router.GET("/api/v1/resources/id/:id/revisions", h.Revisions)
	router.DELETE("/api/v1/resources/id/:id", h.Delete)
}
