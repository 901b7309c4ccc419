package handler

import (
	"net/http"
	"time"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/middleware"
	"pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

// AuthHandler exposes token diagnostics
type AuthHandler struct {
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(log *logger.Logger) *AuthHandler {
	return &AuthHandler{logger: log}
}

// VerifyTokenResponse describes what the API understood from a bearer token
type VerifyTokenResponse struct {
	Success      bool                      `json:"success"`
	Valid        bool                      `json:"valid"`
	TokenType    domain.TokenType          `json:"token_type"`
	UserID       string                    `json:"user_id"`
	Email        string                    `json:"email,omitempty"`
	Scopes       []string                  `json:"scopes"`
	ExpiresAt    time.Time                 `json:"expires_at"`
	CustomClaims domain.CustomClaims       `json:"custom_claims"`
	Verification domain.VerificationStatus `json:"verification"`
	Warnings     []string                  `json:"warnings"`
}

// VerifyToken handles GET /api/verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.GetToken(r.Context())
	status, ok2 := middleware.GetVerification(r.Context())
	if !ok || !ok2 {
		h.logger.Error("Token not found in context")
		middleware.WriteError(w, r, errors.NewAuthenticationError(errors.CodeMissingToken, "User not authenticated"), h.logger)
		return
	}

	scopes := tok.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	respondJSON(w, http.StatusOK, VerifyTokenResponse{
		Success:      true,
		Valid:        true,
		TokenType:    tok.Type,
		UserID:       tok.Subject,
		Email:        tok.Identity.Email,
		Scopes:       scopes,
		ExpiresAt:    tok.ExpiresAt.UTC(),
		CustomClaims: tok.Custom,
		Verification: status,
		Warnings:     warningsOrEmpty(status.Warnings),
	}, h.logger)
}
