package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/profile"
	"pizza42-api/internal/service/auth"
	"pizza42-api/internal/service/auth/authtest"
)

const (
	issuer    = "https://pizza42.example.com/"
	apiAud    = "https://api.pizza42.com"
	clientID  = "spa-client-id"
	namespace = "https://pizza42.com/"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	srv      *authtest.JWKSServer
	key      authtest.Keypair
	clock    *fakeClock
	keys     *auth.KeySet
	verifier *auth.Verifier
}

func newFixture(t *testing.T, refresh, minRefresh time.Duration) *fixture {
	t.Helper()

	srv := authtest.NewRotatingJWKSServer()
	t.Cleanup(srv.Close)

	kp, err := authtest.GenerateRSAKeypair("kid-1")
	require.NoError(t, err)
	srv.SetKeys(kp)

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	keys := auth.NewKeySet(auth.KeySetConfig{
		URL:                srv.URL,
		RefreshInterval:    refresh,
		MinRefreshInterval: minRefresh,
		HTTPTimeout:        2 * time.Second,
	}, nil, clk, nil)

	v := auth.NewVerifier(auth.VerifierConfig{
		Issuer:          issuer,
		APIAudience:     apiAud,
		ClientID:        clientID,
		ClaimsNamespace: namespace,
	}, keys, clk, nil)

	return &fixture{srv: srv, key: kp, clock: clk, keys: keys, verifier: v}
}

func (f *fixture) claims(aud interface{}) jwt.MapClaims {
	return authtest.Claims(issuer, aud, "auth0|user-1", f.clock.Now(), 5*time.Minute)
}

func TestVerify_ClassifiesByAudience(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)

	tests := []struct {
		name string
		aud  interface{}
		want domain.TokenType
	}{
		{"api audience", apiAud, domain.TokenTypeAccess},
		{"api audience in array", []string{apiAud, issuer + "userinfo"}, domain.TokenTypeAccess},
		{"client id", clientID, domain.TokenTypeIdentity},
		{"client id in array", []string{"other", clientID}, domain.TokenTypeIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := authtest.MustMint(f.key, f.claims(tt.aud))
			tok, err := f.verifier.Verify(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok.Type)
			assert.Equal(t, "auth0|user-1", tok.Subject)
			assert.Equal(t, issuer, tok.Issuer)
		})
	}
}

func TestVerify_Rejections(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)
	now := f.clock.Now()

	other, err := authtest.GenerateRSAKeypair("kid-1")
	require.NoError(t, err)

	withoutExp := f.claims(apiAud)
	delete(withoutExp, "exp")

	withoutSub := f.claims(apiAud)
	delete(withoutSub, "sub")

	good := authtest.MustMint(f.key, f.claims(apiAud))
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	hs256 := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims(apiAud))
	hs256.Header["kid"] = "kid-1"
	hsToken, err := hs256.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	unknownKid := f.key
	unknownKid.Kid = "kid-404"

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", auth.ErrMissingToken},
		{"garbage", "not-a-jwt", auth.ErrMalformedToken},
		{"tampered signature", tampered, auth.ErrInvalidSignature},
		{"signed by another key", authtest.MustMint(other, f.claims(apiAud)), auth.ErrInvalidSignature},
		{"symmetric algorithm", hsToken, auth.ErrInvalidSignature},
		{"unknown kid", authtest.MustMint(unknownKid, f.claims(apiAud)), auth.ErrUnknownKey},
		{"expired", authtest.MustMint(f.key, authtest.Claims(issuer, apiAud, "u", now.Add(-time.Hour), 5*time.Minute)), auth.ErrTokenExpired},
		{"missing exp", authtest.MustMint(f.key, withoutExp), auth.ErrMalformedToken},
		{"wrong issuer", authtest.MustMint(f.key, authtest.Claims("https://evil.example.com/", apiAud, "u", now, time.Minute)), auth.ErrInvalidIssuer},
		{"wrong audience", authtest.MustMint(f.key, f.claims("https://someone-else")), auth.ErrInvalidAudience},
		{"missing subject", authtest.MustMint(f.key, withoutSub), auth.ErrMissingSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := f.verifier.Verify(context.Background(), tt.raw)
			assert.Nil(t, tok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_Leeway(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)
	v := auth.NewVerifier(auth.VerifierConfig{
		Issuer:      issuer,
		APIAudience: apiAud,
		ClientID:    clientID,
		Leeway:      30 * time.Second,
	}, f.keys, f.clock, nil)

	raw := authtest.MustMint(f.key, authtest.Claims(issuer, apiAud, "u", f.clock.Now(), time.Minute))

	f.clock.Advance(time.Minute + 10*time.Second)
	_, err := v.Verify(context.Background(), raw)
	assert.NoError(t, err, "inside leeway")

	f.clock.Advance(time.Minute)
	_, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestVerify_ECKeys(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)
	ec, err := authtest.GenerateECKeypair("ec-1")
	require.NoError(t, err)
	f.srv.SetKeys(f.key, ec)

	tok, err := f.verifier.Verify(context.Background(), authtest.MustMint(ec, f.claims(apiAud)))
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeAccess, tok.Type)
}

func TestVerify_Rotation(t *testing.T) {
	f := newFixture(t, time.Second, 0)
	k2, err := authtest.GenerateRSAKeypair("kid-2")
	require.NoError(t, err)

	jwt1 := authtest.MustMint(f.key, f.claims(apiAud))
	_, err = f.verifier.Verify(context.Background(), jwt1)
	require.NoError(t, err)

	f.srv.SetKeys(k2)
	f.clock.Advance(2 * time.Second)

	_, err = f.verifier.Verify(context.Background(), jwt1)
	assert.ErrorIs(t, err, auth.ErrUnknownKey, "retired key must be rejected after refresh")

	jwt2 := authtest.MustMint(k2, f.claims(apiAud))
	tok, err := f.verifier.Verify(context.Background(), jwt2)
	require.NoError(t, err)
	assert.Equal(t, "auth0|user-1", tok.Subject)
}

func TestVerify_ScopesAndIdentity(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)
	c := f.claims(apiAud)
	c["scope"] = "openid profile read:orders"
	c["permissions"] = []string{"place:orders"}
	c["email"] = "pat@example.com"
	c["email_verified"] = true

	tok, err := f.verifier.Verify(context.Background(), authtest.MustMint(f.key, c))
	require.NoError(t, err)

	assert.True(t, tok.HasScope("read:orders"))
	assert.True(t, tok.HasScope("place:orders"))
	assert.False(t, tok.HasScope("admin"))
	assert.Equal(t, "pat@example.com", tok.Identity.Email)
	assert.True(t, tok.Identity.EmailVerified)
}

func TestVerify_ParsesHookClaims(t *testing.T) {
	f := newFixture(t, 10*time.Minute, 0)
	now := f.clock.Now()

	orders := []domain.Order{
		domain.NewOrder("ord_1", "auth0|user-1", orderInput("Margherita", "16.99"), now.Add(-24*time.Hour)),
		domain.NewOrder("ord_2", "auth0|user-1", orderInput("Pepperoni", "20"), now),
	}
	c := f.claims(clientID)
	for k, v := range profile.HookClaims(namespace, profile.HookInput{EmailVerified: true, Orders: orders, AuthMethod: "pwd", LoginsCount: 3}, now) {
		c[k] = v
	}

	tok, err := f.verifier.Verify(context.Background(), authtest.MustMint(f.key, c))
	require.NoError(t, err)

	custom := tok.Custom
	require.True(t, custom.HasVerification())
	assert.True(t, now.Equal(*custom.VerifiedAt))
	require.NotNil(t, custom.EmailVerified)
	assert.True(t, *custom.EmailVerified)
	require.NotNil(t, custom.CanPlaceOrders)
	assert.True(t, *custom.CanPlaceOrders)
	require.NotNil(t, custom.Profile)
	assert.Equal(t, 2, custom.Profile.TotalOrders)
	assert.Equal(t, "36.99", custom.Profile.TotalSpent.String())
	require.Len(t, custom.OrderHistory, 2)
	assert.Equal(t, "ord_2", custom.OrderHistory[0].ID)
	assert.Equal(t, "pwd", custom.AuthMetadata["method"])
}

func orderInput(pizza, total string) domain.OrderInput {
	d := decimal.RequireFromString(total)
	return domain.OrderInput{Pizza: pizza, Size: domain.SizeMedium, Total: &d}
}
