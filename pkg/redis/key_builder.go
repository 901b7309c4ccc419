package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyUserOrders is the per-user partition index of the redis table store
func (kb *KeyBuilder) KeyUserOrders(userID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserOrders, userID))
}

// KeyUserOrderData holds the order documents of one user
func (kb *KeyBuilder) KeyUserOrderData(userID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserOrderData, userID))
}

func (kb *KeyBuilder) KeyUserProfileLock(userID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserProfileRMW, userID))
}
