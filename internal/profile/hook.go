package profile

import (
	"time"

	"pizza42-api/internal/domain"
)

// maxHistoryInClaims bounds how many orders are embedded in a token
const maxHistoryInClaims = 10

// HookInput is what the post-login hook knows about the user at login time
type HookInput struct {
	EmailVerified bool
	Orders        []domain.Order
	AuthMethod    string
	LoginsCount   int
	MFA           bool
}

// HookClaims returns the namespaced claims the post-login hook embeds into the
// identity token. It reuses Build so login-time and request-time statistics agree.
func HookClaims(namespace string, in HookInput, now time.Time) map[string]interface{} {
	history := make([]domain.Order, len(in.Orders))
	copy(history, in.Orders)
	domain.SortNewestFirst(history)
	if len(history) > maxHistoryInClaims {
		history = history[:maxHistoryInClaims]
	}

	return map[string]interface{}{
		namespace + domain.ClaimVerifiedAt:     now.UTC().Format(time.RFC3339),
		namespace + domain.ClaimEmailVerified:  in.EmailVerified,
		namespace + domain.ClaimCanPlaceOrders: in.EmailVerified,
		namespace + domain.ClaimAuthMetadata: map[string]interface{}{
			"method":       in.AuthMethod,
			"logins_count": in.LoginsCount,
		},
		namespace + domain.ClaimSessionSecurity: map[string]interface{}{
			"mfa_completed": in.MFA,
		},
		namespace + domain.ClaimCustomerProfile: Build(in.Orders, domain.ProfileSourceLoginHook, now),
		namespace + domain.ClaimOrderHistory:    history,
	}
}
