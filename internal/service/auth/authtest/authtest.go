// Package authtest provides signing keys, a JWKS server and token minting for
// tests of code that sits behind the token verifier.
package authtest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Keypair is a signing key and the kid it is published under
type Keypair struct {
	Kid     string
	Private crypto.Signer
	Method  jwt.SigningMethod
}

// GenerateRSAKeypair creates an RS256 key
func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv, Method: jwt.SigningMethodRS256}, nil
}

// GenerateECKeypair creates an ES256 key
func GenerateECKeypair(kid string) (Keypair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv, Method: jwt.SigningMethodES256}, nil
}

// JWK is one public key in JWKS form
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// PublicJWK converts the public half of kp
func PublicJWK(kp Keypair) JWK {
	enc := base64.RawURLEncoding
	switch pub := kp.Private.Public().(type) {
	case *rsa.PublicKey:
		return JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: kp.Method.Alg(),
			Kid: kp.Kid,
			N:   enc.EncodeToString(pub.N.Bytes()),
			// e is a big-endian unsigned int.
			E: enc.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		return JWK{
			Kty: "EC",
			Use: "sig",
			Alg: kp.Method.Alg(),
			Kid: kp.Kid,
			Crv: pub.Curve.Params().Name,
			X:   enc.EncodeToString(pub.X.FillBytes(make([]byte, size))),
			Y:   enc.EncodeToString(pub.Y.FillBytes(make([]byte, size))),
		}
	}
	return JWK{Kid: kp.Kid}
}

// JWKS renders a key set document for keys
func JWKS(keys ...Keypair) []byte {
	out := struct {
		Keys []JWK `json:"keys"`
	}{Keys: make([]JWK, 0, len(keys))}
	for _, kp := range keys {
		out.Keys = append(out.Keys, PublicJWK(kp))
	}
	b, _ := json.Marshal(out)
	return b
}

// JWKSServer serves a key set that can be swapped at runtime
type JWKSServer struct {
	*httptest.Server
	doc    atomic.Value // []byte
	status atomic.Int32
	hits   atomic.Int64
}

// NewRotatingJWKSServer starts a JWKS server with an empty key set. Close it
// when done.
func NewRotatingJWKSServer() *JWKSServer {
	s := &JWKSServer{}
	s.doc.Store([]byte(`{"keys":[]}`))
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		if code := int(s.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.doc.Load().([]byte))
	}))
	return s
}

// SetKeys replaces the published key set
func (s *JWKSServer) SetKeys(keys ...Keypair) {
	s.doc.Store(JWKS(keys...))
}

// Fail makes the server answer every request with code. Pass 200 to recover.
func (s *JWKSServer) Fail(code int) {
	s.status.Store(int32(code))
}

// Hits returns how many times the key set was fetched
func (s *JWKSServer) Hits() int64 {
	return s.hits.Load()
}

// Claims returns registered claims for a token issued at now and valid for ttl.
// aud may be a string or []string.
func Claims(iss string, aud interface{}, sub string, now time.Time, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": iss,
		"aud": aud,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
}

// Mint signs claims with kp
func Mint(kp Keypair, claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(kp.Method, claims)
	tok.Header["kid"] = kp.Kid
	return tok.SignedString(kp.Private)
}

// MustMint is Mint for tests that cannot continue without a token
func MustMint(kp Keypair, claims jwt.MapClaims) string {
	s, err := Mint(kp, claims)
	if err != nil {
		panic(err)
	}
	return s
}
