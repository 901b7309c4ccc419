package auth

import (
	"errors"

	apperrors "pizza42-api/pkg/errors"
)

// Verification failures. Callers match them with errors.Is; the wrapped text
// carries the underlying reason for logs only.
var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrMalformedToken    = errors.New("malformed token")
	ErrUnknownKey        = errors.New("signing key not found")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
	ErrInvalidIssuer     = errors.New("invalid token issuer")
	ErrInvalidAudience   = errors.New("invalid token audience")
	ErrMissingSubject    = errors.New("token has no subject")
	ErrKeySetUnavailable = errors.New("signing key set unavailable")
)

// AsAppError converts a verification failure into the 401 returned to clients
func AsAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrMissingToken):
		return apperrors.NewAuthenticationError(apperrors.CodeMissingToken, "Authorization header with a bearer token is required")
	case errors.Is(err, ErrTokenExpired):
		return apperrors.NewAuthenticationError(apperrors.CodeTokenExpired, "Token has expired")
	case errors.Is(err, ErrKeySetUnavailable):
		return apperrors.NewAuthenticationError(apperrors.CodeInvalidToken, "Token could not be verified")
	default:
		return apperrors.NewAuthenticationError(apperrors.CodeInvalidToken, "Invalid token")
	}
}
