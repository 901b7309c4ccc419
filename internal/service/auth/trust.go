package auth

import (
	"fmt"
	"time"

	"pizza42-api/internal/domain"
)

// Warnings attached to a VerificationStatus. Neither blocks the request.
const (
	WarningFallback = "verification claims missing from token; using raw email_verified claim"
	warningStale    = "verification claims are %s old; sign in again to refresh them"
)

// Evaluate decides how far the verification flags in tok can be trusted.
//
// When the post-login hook stamped verified_at, its email_verified and
// can_place_orders claims are used as is, with a warning once they are older
// than staleAfter. Without the stamp the raw email_verified claim is the only
// signal: it also stands in for can_place_orders and the result is marked
// untrusted.
func Evaluate(tok *VerifiedToken, now time.Time, staleAfter time.Duration) domain.VerificationStatus {
	status := domain.VerificationStatus{TokenType: tok.Type}
	custom := tok.Custom

	if !custom.HasVerification() {
		status.EmailVerified = tok.Identity.EmailVerified
		status.CanPlaceOrders = tok.Identity.EmailVerified
		status.Source = domain.SourceTokenFallback
		status.Trusted = false
		status.Warnings = append(status.Warnings, WarningFallback)
		return status
	}

	verifiedAt := custom.VerifiedAt.UTC()
	status.VerifiedAt = &verifiedAt
	status.Source = domain.SourcePostLoginHook
	status.Trusted = true
	if custom.EmailVerified != nil {
		status.EmailVerified = *custom.EmailVerified
	}
	if custom.CanPlaceOrders != nil {
		status.CanPlaceOrders = *custom.CanPlaceOrders
	} else {
		status.CanPlaceOrders = status.EmailVerified
	}

	if age := now.Sub(verifiedAt); staleAfter > 0 && age > staleAfter {
		status.Stale = true
		status.Warnings = append(status.Warnings, fmt.Sprintf(warningStale, age.Truncate(time.Minute)))
	}
	return status
}
