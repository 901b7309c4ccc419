package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Order store variants selectable at startup
const (
	StoreProfile = "profile"
	StoreTable   = "table"

	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	// Identity platform
	IssuerURL       string
	JWKSURL         string
	APIAudience     string
	ClientID        string
	ClaimsNamespace string

	// Token verification
	VerificationStaleAfter time.Duration
	JWTLeeway              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration
	AllowIDTokenOrders     bool

	// Order storage
	OrderStore  string
	TableDriver string
	DatabaseURL string
	RedisURL    string
	NodeID      int64

	// Management API, used by the profile store
	MgmtClientID     string
	MgmtClientSecret string
	MgmtAudience     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	issuer := normalizeIssuer(getEnv("IDENTITY_ISSUER", ""))

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		IssuerURL:       issuer,
		JWKSURL:         getEnv("IDENTITY_JWKS_URL", defaultUnder(issuer, ".well-known/jwks.json")),
		APIAudience:     getEnv("API_AUDIENCE", ""),
		ClientID:        getEnv("CLIENT_ID", ""),
		ClaimsNamespace: getEnv("CLAIMS_NAMESPACE", "https://pizza42.com/"),

		VerificationStaleAfter: getDurationEnv("VERIFICATION_STALE_AFTER", time.Hour),
		JWTLeeway:              getDurationEnv("JWT_LEEWAY", 30*time.Second),
		JWKSRefreshInterval:    getDurationEnv("JWKS_REFRESH_INTERVAL", 5*time.Minute),
		JWKSMinRefreshInterval: getDurationEnv("JWKS_MIN_REFRESH_INTERVAL", 10*time.Second),
		AllowIDTokenOrders:     getBoolEnv("ALLOW_ID_TOKEN_ORDERS", false),

		OrderStore:  strings.ToLower(getEnv("ORDER_STORE", StoreTable)),
		TableDriver: strings.ToLower(getEnv("TABLE_DRIVER", DriverPostgres)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		NodeID:      getIntEnv("NODE_ID", 1),

		MgmtClientID:     getEnv("MGMT_CLIENT_ID", ""),
		MgmtClientSecret: getEnv("MGMT_CLIENT_SECRET", ""),
		MgmtAudience:     getEnv("MGMT_AUDIENCE", defaultUnder(issuer, "api/v2/")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the values required by the selected store are present
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("IDENTITY_ISSUER", c.IssuerURL)
	require("API_AUDIENCE", c.APIAudience)
	require("CLIENT_ID", c.ClientID)

	switch c.OrderStore {
	case StoreProfile:
		require("MGMT_CLIENT_ID", c.MgmtClientID)
		require("MGMT_CLIENT_SECRET", c.MgmtClientSecret)
	case StoreTable:
		switch c.TableDriver {
		case DriverPostgres:
			require("DATABASE_URL", c.DatabaseURL)
		case DriverRedis:
			require("REDIS_URL", c.RedisURL)
		default:
			return fmt.Errorf("unsupported TABLE_DRIVER %q (want %s or %s)", c.TableDriver, DriverPostgres, DriverRedis)
		}
	default:
		return fmt.Errorf("unsupported ORDER_STORE %q (want %s or %s)", c.OrderStore, StoreProfile, StoreTable)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023, got %d", c.NodeID)
	}
	return nil
}

// StoreName is the name reported by the health endpoint
func (c *Config) StoreName() string {
	if c.OrderStore == StoreTable {
		return StoreTable + ":" + c.TableDriver
	}
	return c.OrderStore
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go duration strings such as "90s" or "1h"
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// normalizeIssuer makes sure the issuer ends with a slash, which is how the
// identity platform writes the iss claim
func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" || strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}

func defaultUnder(issuer, path string) string {
	if issuer == "" {
		return ""
	}
	return issuer + path
}
