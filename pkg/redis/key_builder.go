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

func (kb *KeyBuilder) KeyVisitors() string {
	return kb.BuildKey(KeyVisitors)
}

func (kb *KeyBuilder) KeyGeoLookup(ip string) string {
	return kb.BuildKey(fmt.Sprintf(KeyGeoLookup, ip))
}

func (kb *KeyBuilder) KeyRateLimit(client string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateLimit, client))
}
