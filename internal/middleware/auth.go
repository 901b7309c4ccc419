package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pizza42-api/internal/service/auth"
	"pizza42-api/pkg/logger"
)

// TokenVerifier verifies a raw bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.VerifiedToken, error)
}

// AuthConfig configures the Auth middleware
type AuthConfig struct {
	// StaleAfter is the age after which hook claims get a staleness warning
	StaleAfter time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

// Auth verifies the bearer token and stores the token and its verification
// status in the request context. Any failure is a 401.
func Auth(verifier TokenVerifier, cfg AuthConfig, log *logger.Logger) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				WriteError(w, r, auth.AsAppError(err), log)
				return
			}

			ctx := r.Context()
			tok, err := verifier.Verify(ctx, raw)
			if err != nil {
				log.WithField("request_id", GetRequestID(ctx)).WithError(err).Info("Token verification failed")
				WriteError(w, r, auth.AsAppError(err), log)
				return
			}

			status := auth.Evaluate(tok, cfg.Now(), cfg.StaleAfter)

			ctx = context.WithValue(ctx, TokenContextKey, tok)
			ctx = context.WithValue(ctx, VerificationContextKey, status)

			log.WithFields(map[string]interface{}{
				"request_id": GetRequestID(ctx),
				"user_id":    tok.Subject,
				"token_type": tok.Type,
				"source":     status.Source,
			}).Debug("User authenticated successfully")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", auth.ErrMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}
