package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"pizza42-api/pkg/logger"
)

// Clock lets tests control time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// KeySetConfig controls where keys come from and how often they are refetched
type KeySetConfig struct {
	URL string
	// RefreshInterval forces a refetch once the cache is this old, so rotated
	// keys are picked up even when every kid is known.
	RefreshInterval time.Duration
	// MinRefreshInterval bounds refetches triggered by an unknown kid.
	MinRefreshInterval time.Duration
	HTTPTimeout        time.Duration
}

// KeySet is an in-memory cache of the identity platform's public signing keys
type KeySet struct {
	cfg    KeySetConfig
	client *http.Client
	clock  Clock
	logger *logger.Logger

	mu          sync.Mutex
	keysByKID   map[string]crypto.PublicKey
	lastRefresh time.Time
	refreshing  bool
	refreshDone chan struct{}
	lastErr     error
}

// NewKeySet creates a key set. httpClient and clock may be nil.
func NewKeySet(cfg KeySetConfig, httpClient *http.Client, clock Clock, log *logger.Logger) *KeySet {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &KeySet{
		cfg:       cfg,
		client:    httpClient,
		clock:     clock,
		logger:    log,
		keysByKID: map[string]crypto.PublicKey{},
	}
}

// Key returns the public key for kid, refreshing the cache when it is stale or
// the kid is unknown. A failed refresh falls back to cached keys.
func (k *KeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: token header has no kid", ErrUnknownKey)
	}

	refreshErr := k.maybeRefresh(ctx, kid)

	k.mu.Lock()
	pub := k.keysByKID[kid]
	empty := len(k.keysByKID) == 0
	if refreshErr == nil {
		refreshErr = k.lastErr
	}
	k.mu.Unlock()

	if pub != nil {
		if refreshErr != nil {
			k.logger.WithError(refreshErr).Debug("JWKS refresh failed, using cached keys")
		}
		return pub, nil
	}
	if refreshErr != nil && empty {
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, refreshErr)
	}
	return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
}

// Len returns the number of cached keys
func (k *KeySet) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keysByKID)
}

func (k *KeySet) maybeRefresh(ctx context.Context, kid string) error {
	now := k.clock.Now()

	k.mu.Lock()
	needsIntervalRefresh := !k.lastRefresh.IsZero() && k.cfg.RefreshInterval > 0 && now.Sub(k.lastRefresh) >= k.cfg.RefreshInterval
	unknownKid := k.keysByKID[kid] == nil
	allowedUnknownKidRefresh := k.lastRefresh.IsZero() || k.cfg.MinRefreshInterval <= 0 || now.Sub(k.lastRefresh) >= k.cfg.MinRefreshInterval
	shouldRefresh := needsIntervalRefresh || (unknownKid && allowedUnknownKidRefresh)

	if !shouldRefresh {
		k.mu.Unlock()
		return nil
	}

	// Concurrent callers wait for the refresh already in flight.
	if k.refreshing {
		ch := k.refreshDone
		k.mu.Unlock()
		select {
		case <-ch:
			k.mu.Lock()
			err := k.lastErr
			k.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	k.refreshing = true
	k.refreshDone = make(chan struct{})
	ch := k.refreshDone
	k.mu.Unlock()

	err := k.refresh(ctx)

	k.mu.Lock()
	k.refreshing = false
	k.lastErr = err
	if err != nil {
		// Failed fetches count against the unknown-kid bound too.
		k.lastRefresh = k.clock.Now()
	}
	close(ch)
	k.mu.Unlock()

	return err
}

func (k *KeySet) refresh(ctx context.Context) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.URL, nil)
	if err != nil {
		return err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	keys, err := parseJWKS(body)
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.keysByKID = keys
	k.lastRefresh = k.clock.Now()
	k.mu.Unlock()

	k.logger.WithFields(map[string]interface{}{
		"keys":     len(keys),
		"duration": time.Since(start).String(),
	}).Debug("JWKS refreshed")
	return nil
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func parseJWKS(b []byte) (map[string]crypto.PublicKey, error) {
	var set jwks
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	out := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, key := range set.Keys {
		if key.Kid == "" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		var (
			pub crypto.PublicKey
			err error
		)
		switch key.Kty {
		case "RSA":
			pub, err = parseRSAKey(key)
		case "EC":
			pub, err = parseECKey(key)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("jwk %q: %w", key.Kid, err)
		}
		out[key.Kid] = pub
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable jwks keys")
	}
	return out, nil
}

func parseRSAKey(key jwk) (*rsa.PublicKey, error) {
	if key.N == "" || key.E == "" {
		return nil, fmt.Errorf("rsa key missing n or e")
	}
	nb, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eb).Int64()
	if e <= 0 || e > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("invalid jwk exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e)}, nil
}

func parseECKey(key jwk) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch key.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", key.Crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, err
	}
	yb, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, err
	}
	x, y := new(big.Int).SetBytes(xb), new(big.Int).SetBytes(yb)
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("ec point not on curve %s", key.Crv)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
