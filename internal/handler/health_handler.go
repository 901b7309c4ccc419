package handler

import (
	"context"
	"net/http"
	"time"

	"pizza42-api/pkg/logger"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	store  string
	checks func(ctx context.Context) map[string]string
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler. checks may be nil.
func NewHealthHandler(store string, checks func(ctx context.Context) map[string]string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, checks: checks, logger: log}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Store     string            `json:"store"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check handles GET /api/health. It always answers 200; a failing backend
// turns the status to "degraded".
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Message:   "Pizza42 API is running",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Service:   "pizza42-api",
		Store:     h.store,
	}

	if h.checks != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		response.Checks = h.checks(ctx)
		for _, s := range response.Checks {
			if s != "ok" {
				response.Status = "degraded"
				response.Message = "One or more backends are unavailable"
			}
		}
	}

	respondJSON(w, http.StatusOK, response, h.logger)
}
