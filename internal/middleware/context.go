package middleware

import (
	"context"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/service/auth"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// TokenContextKey holds the *auth.VerifiedToken of an authenticated request
	TokenContextKey ContextKey = "token"
	// VerificationContextKey holds the domain.VerificationStatus of the token
	VerificationContextKey ContextKey = "verification"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// GetToken returns the verified token set by Auth
func GetToken(ctx context.Context) (*auth.VerifiedToken, bool) {
	tok, ok := ctx.Value(TokenContextKey).(*auth.VerifiedToken)
	return tok, ok && tok != nil
}

// GetVerification returns the verification status set by Auth
func GetVerification(ctx context.Context) (domain.VerificationStatus, bool) {
	status, ok := ctx.Value(VerificationContextKey).(domain.VerificationStatus)
	return status, ok
}

// GetRequestID returns the request id, or "" outside a request
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
