package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pizza42-api/internal/profile"
	"pizza42-api/internal/service/auth/authtest"
)

// Tiny dev-only issuer + JWKS server.
//
// It is not an identity platform. It mints tokens shaped like the real ones,
// including the post-login hook claims, so the API can run locally with
// IDENTITY_ISSUER=http://localhost:5556/.

func main() {
	port := getenv("PORT", "5556")
	issuer := getenv("ISSUER", "http://localhost:"+port+"/")
	audience := getenv("API_AUDIENCE", "https://api.pizza42.com")
	clientID := getenv("CLIENT_ID", "pizza42-dev-spa")
	namespace := getenv("CLAIMS_NAMESPACE", "https://pizza42.com/")
	kid := getenv("KID", "dev-kid-1")
	ttl := getenvDuration("TTL", 30*time.Minute)

	kp, err := authtest.GenerateRSAKeypair(kid)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	jwksJSON := authtest.JWKS(kp)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON)
	})

	// Mint a token:
	//   GET /token?sub=auth0|alice&type=access&verified=true&hook=true&scope=place:orders
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sub := strings.TrimSpace(q.Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}

		aud := audience
		if q.Get("type") == "identity" {
			aud = clientID
		}
		verified := queryBool(q.Get("verified"), true)

		now := time.Now().UTC()
		claims := authtest.Claims(issuer, aud, sub, now, ttl)
		claims["email"] = strings.NewReplacer("|", "+").Replace(sub) + "@dev.pizza42.local"
		claims["email_verified"] = verified
		if aud == audience {
			claims["scope"] = getOr(q.Get("scope"), "openid profile email place:orders")
		}
		if queryBool(q.Get("hook"), true) {
			for k, v := range profile.HookClaims(namespace, profile.HookInput{
				EmailVerified: verified,
				AuthMethod:    "password",
				LoginsCount:   1,
			}, now) {
				claims[k] = v
			}
		}

		token, err := authtest.Mint(kp, jwt.MapClaims(claims))
		if err != nil {
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"iss":   issuer,
			"aud":   aud,
			"exp":   now.Add(ttl).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("devtoken listening on :%s (iss=%s aud=%s kid=%s ttl=%s)", port, issuer, audience, kid, ttl)
	log.Fatal(srv.ListenAndServe())
}

func queryBool(v string, def bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
