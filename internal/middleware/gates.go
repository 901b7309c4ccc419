package middleware

import (
	"net/http"

	"pizza42-api/internal/domain"
	apperrors "pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

// RequireVerifiedEmail rejects callers whose email is unverified or who may
// not place orders. It must run after Auth.
func RequireVerifiedEmail(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, ok := GetVerification(r.Context())
			if !ok {
				WriteError(w, r, apperrors.NewAuthenticationError(apperrors.CodeMissingToken, "Authentication required"), log)
				return
			}
			if !status.EmailVerified || !status.CanPlaceOrders {
				appErr := apperrors.NewVerificationRequiredError("Please verify your email address before placing orders").
					WithDetails(map[string]interface{}{
						"email_verified":   status.EmailVerified,
						"can_place_orders": status.CanPlaceOrders,
						"source":           status.Source,
					})
				WriteError(w, r, appErr, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope rejects tokens that do not grant scope. Identity tokens carry no
// scopes; allowIdentity lets them through anyway.
func RequireScope(scope string, allowIdentity bool, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := GetToken(r.Context())
			if !ok {
				WriteError(w, r, apperrors.NewAuthenticationError(apperrors.CodeMissingToken, "Authentication required"), log)
				return
			}
			if tok.Type == domain.TokenTypeIdentity && allowIdentity {
				next.ServeHTTP(w, r)
				return
			}
			if !tok.HasScope(scope) {
				WriteError(w, r, apperrors.NewInsufficientScopeError(scope), log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
