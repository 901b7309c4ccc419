package handler

import (
	"encoding/json"
	"net/http"

	"pizza42-api/internal/middleware"
	"pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// warningsOrEmpty keeps "warnings" a JSON array even when there are none
func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

// NotFound answers unknown routes with the JSON error body
func NotFound(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, errors.NewNotFoundError("Endpoint not found"), log)
	}
}

// MethodNotAllowed answers known routes called with the wrong method
func MethodNotAllowed(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appErr := &errors.AppError{
			Type:       errors.ErrorTypeNotFound,
			Message:    "Method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
		}
		middleware.WriteError(w, r, appErr, log)
	}
}
