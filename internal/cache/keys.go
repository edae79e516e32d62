package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	GlobalKeyPrefix = "quizsolver"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// ResourceKey builds the cache key for a fetched resource. URLs are
// hashed so arbitrary length and characters stay out of the keyspace.
func ResourceKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return GenerateCacheKey("fetcher", "resource", hex.EncodeToString(sum[:16]))
}
