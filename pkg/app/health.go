package app

import (
	"context"
	"net/http"
	"time"

	"cowork/pkg/contracts"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readinessTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

type HealthHandler struct {
	pingers []contracts.Pinger
	log     *logger.Logger
}

func NewHealthHandler(pingers []contracts.Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		pingers: pingers,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	response := HealthResponse{Status: "ready", Backends: map[string]string{}}
	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.log.Error("Backend health check failed",
				"backend", p.Name(),
				"error", err,
				"path", r.URL.Path,
			)
			response.Backends[p.Name()] = "error"
			response.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Backends[p.Name()] = "ok"
	}

	if err := httputil.WriteJSON(w, status, response); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
