package domain

import "time"

// TokenType tells access tokens (audience = API) from identity tokens (audience = client)
type TokenType string

const (
	TokenTypeAccess   TokenType = "access"
	TokenTypeIdentity TokenType = "identity"
)

// Custom claim names written by the post-login hook. On the wire each one is
// prefixed with the configured namespace, e.g. "https://pizza42.com/verified_at".
const (
	ClaimVerifiedAt      = "verified_at"
	ClaimEmailVerified   = "email_verified"
	ClaimCanPlaceOrders  = "can_place_orders"
	ClaimAuthMetadata    = "auth_metadata"
	ClaimSessionSecurity = "session_security"
	ClaimCustomerProfile = "customer_profile"
	ClaimOrderHistory    = "order_history"
)

// CustomClaims is the typed form of the namespaced claims, parsed once when the
// token is verified. Absent claims stay nil.
type CustomClaims struct {
	VerifiedAt      *time.Time             `json:"verified_at,omitempty"`
	EmailVerified   *bool                  `json:"email_verified,omitempty"`
	CanPlaceOrders  *bool                  `json:"can_place_orders,omitempty"`
	AuthMetadata    map[string]interface{} `json:"auth_metadata,omitempty"`
	SessionSecurity map[string]interface{} `json:"session_security,omitempty"`
	Profile         *CustomerProfile       `json:"customer_profile,omitempty"`
	OrderHistory    []Order                `json:"order_history,omitempty"`
}

// HasVerification reports whether the post-login hook stamped the token
func (c CustomClaims) HasVerification() bool {
	return c.VerifiedAt != nil
}

// VerificationSource records where the verification flags came from
type VerificationSource string

const (
	SourcePostLoginHook VerificationSource = "post_login_hook"
	SourceTokenFallback VerificationSource = "token_fallback"
)

// VerificationStatus is the outcome of the claims trust step. Trusted is false
// whenever the flags were inferred from raw token claims.
type VerificationStatus struct {
	TokenType      TokenType          `json:"token_type"`
	EmailVerified  bool               `json:"email_verified"`
	CanPlaceOrders bool               `json:"can_place_orders"`
	VerifiedAt     *time.Time         `json:"verified_at,omitempty"`
	Source         VerificationSource `json:"source"`
	Trusted        bool               `json:"trusted"`
	Stale          bool               `json:"stale"`
	Warnings       []string           `json:"-"`
}
