// Package auth verifies bearer tokens issued by the identity platform and
// decides how far the claims they carry can be trusted.
package auth

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
)

// asymmetricMethods are the only algorithms accepted. Tokens signed with none
// or a shared secret are rejected before any key lookup.
var asymmetricMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// VerifierConfig holds the expected token properties
type VerifierConfig struct {
	Issuer          string
	APIAudience     string
	ClientID        string
	ClaimsNamespace string
	Leeway          time.Duration
}

// VerifiedToken is a token whose signature and registered claims have been
// checked. Custom claims are parsed once here.
type VerifiedToken struct {
	Raw       string
	Type      domain.TokenType
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scopes    []string
	Identity  domain.Identity
	Custom    domain.CustomClaims
	// Extra holds every claim as decoded, for diagnostics.
	Extra map[string]interface{}
}

// HasScope reports whether the token grants scope through either the scope
// string or the permissions array
func (t *VerifiedToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// KeySource resolves a key id to a public key. *KeySet is the production implementation.
type KeySource interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// Verifier checks bearer tokens against the identity platform's key set
type Verifier struct {
	cfg    VerifierConfig
	keys   KeySource
	clock  Clock
	logger *logger.Logger
	parser *jwt.Parser
}

// NewVerifier creates a verifier. clock may be nil.
func NewVerifier(cfg VerifierConfig, keys KeySource, clock Clock, log *logger.Logger) *Verifier {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(asymmetricMethods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(clock.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Verifier{
		cfg:    cfg,
		keys:   keys,
		clock:  clock,
		logger: log,
		parser: jwt.NewParser(opts...),
	}
}

// Verify checks the signature, issuer, expiry and audience of raw, classifies
// it as an access or identity token and parses the namespaced claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*VerifiedToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	tokenType, ok := v.tokenType(aud)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudience, []string(aud))
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, ErrMissingSubject
	}

	tok := &VerifiedToken{
		Raw:      raw,
		Type:     tokenType,
		Subject:  sub,
		Audience: aud,
		Scopes:   scopes(claims),
		Extra:    claims,
	}
	tok.Issuer, _ = claims.GetIssuer()
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		tok.ExpiresAt = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		tok.IssuedAt = iat.Time
	}
	tok.Identity = domain.Identity{
		Subject:       sub,
		Email:         stringClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Name:          stringClaim(claims, "name"),
		Picture:       stringClaim(claims, "picture"),
	}
	tok.Custom = parseCustomClaims(claims, v.cfg.ClaimsNamespace, v.logger)

	v.logger.WithFields(map[string]interface{}{
		"user_id":    sub,
		"token_type": tokenType,
	}).Debug("Token verified")

	return tok, nil
}

// tokenType returns access when aud names the API, identity when it names the
// client. Anything else is not meant for this service.
func (v *Verifier) tokenType(aud jwt.ClaimStrings) (domain.TokenType, bool) {
	hasClient := false
	for _, a := range aud {
		if v.cfg.APIAudience != "" && a == v.cfg.APIAudience {
			return domain.TokenTypeAccess, true
		}
		if v.cfg.ClientID != "" && a == v.cfg.ClientID {
			hasClient = true
		}
	}
	if hasClient {
		return domain.TokenTypeIdentity, true
	}
	return "", false
}

// mapParseError maps jwt library errors onto the package's sentinels
func mapParseError(err error) error {
	var sentinel error
	switch {
	case errors.Is(err, ErrUnknownKey):
		sentinel = ErrUnknownKey
	case errors.Is(err, ErrKeySetUnavailable):
		sentinel = ErrKeySetUnavailable
	case errors.Is(err, jwt.ErrTokenMalformed):
		sentinel = ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		sentinel = ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		sentinel = ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		sentinel = ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		sentinel = ErrInvalidIssuer
	default:
		sentinel = ErrMalformedToken
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func scopes(claims jwt.MapClaims) []string {
	var out []string
	if s, ok := claims["scope"].(string); ok {
		out = append(out, strings.Fields(s)...)
	}
	if perms, ok := claims["permissions"].([]interface{}); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// parseCustomClaims reads the namespaced claims written by the post-login hook.
// Claims with an unexpected shape are skipped and logged.
func parseCustomClaims(claims jwt.MapClaims, namespace string, log *logger.Logger) domain.CustomClaims {
	var c domain.CustomClaims
	get := func(name string) (interface{}, bool) {
		v, ok := claims[namespace+name]
		return v, ok && v != nil
	}

	if v, ok := get(domain.ClaimVerifiedAt); ok {
		if t, ok := parseTimeClaim(v); ok {
			c.VerifiedAt = &t
		} else {
			log.WithField("value", v).Warn("Ignoring unparseable verified_at claim")
		}
	}
	if v, ok := get(domain.ClaimEmailVerified); ok {
		if b, ok := v.(bool); ok {
			c.EmailVerified = &b
		}
	}
	if v, ok := get(domain.ClaimCanPlaceOrders); ok {
		if b, ok := v.(bool); ok {
			c.CanPlaceOrders = &b
		}
	}
	if v, ok := get(domain.ClaimAuthMetadata); ok {
		c.AuthMetadata, _ = v.(map[string]interface{})
	}
	if v, ok := get(domain.ClaimSessionSecurity); ok {
		c.SessionSecurity, _ = v.(map[string]interface{})
	}
	if v, ok := get(domain.ClaimCustomerProfile); ok {
		var p domain.CustomerProfile
		if err := remarshal(v, &p); err != nil {
			log.WithError(err).Warn("Ignoring malformed customer_profile claim")
		} else {
			c.Profile = &p
		}
	}
	if v, ok := get(domain.ClaimOrderHistory); ok {
		var orders []domain.Order
		if err := remarshal(v, &orders); err != nil {
			log.WithError(err).Warn("Ignoring malformed order_history claim")
		} else {
			c.OrderHistory = orders
		}
	}
	return c
}

// parseTimeClaim accepts an RFC 3339 string or seconds since the epoch
func parseTimeClaim(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case float64:
		sec := int64(t)
		return time.Unix(sec, int64((t-float64(sec))*1e9)).UTC(), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return parseTimeClaim(f)
	}
	return time.Time{}, false
}

func remarshal(in interface{}, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func boolClaim(claims jwt.MapClaims, key string) bool {
	if val, ok := claims[key].(bool); ok {
		return val
	}
	return false
}
