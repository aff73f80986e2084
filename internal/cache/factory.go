package cache

import (
	"time"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL is the Redis connection URL. When empty, an in-memory
	// cache is used instead.
	// Example: redis://localhost:6379/0
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for memory cache (0 = unlimited).
	MaxSize int

	// CleanupInterval is the interval for expired entry cleanup.
	CleanupInterval time.Duration
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:          "blogd:",
		DefaultTTL:      time.Minute,
		MaxSize:         1000,
		CleanupInterval: time.Minute,
	}
}

// NewCache creates a cache based on the provided configuration.
// If RedisURL is set, connects to Redis; otherwise creates an in-memory cache.
func NewCache(cfg Config) (Cacher, error) {
	if cfg.RedisURL != "" {
		return NewRedisCacheFromURL(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	}), nil
}

// NewCacheWithTTL creates a simple memory cache with the specified TTL.
// This is a convenience function for common use cases.
func NewCacheWithTTL(ttl time.Duration) Cacher {
	return NewSimpleMemoryCache(ttl)
}
