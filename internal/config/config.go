// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"BLOGD_DB_PATH" envDefault:"./data/blogd.db"`
	JWTSecret  string `env:"BLOGD_JWT_SECRET,required"`
	ServerHost string `env:"BLOGD_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"BLOGD_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"BLOGD_ENV" envDefault:"development"`
	LogLevel   string `env:"BLOGD_LOG_LEVEL" envDefault:"info"`
	UploadsDir string `env:"BLOGD_UPLOADS_DIR" envDefault:"./uploads"`
	SiteURL    string `env:"BLOGD_SITE_URL" envDefault:"http://localhost:8080"`

	// Cache configuration
	RedisURL     string `env:"BLOGD_REDIS_URL"`                        // Optional Redis URL for distributed caching
	CachePrefix  string `env:"BLOGD_CACHE_PREFIX" envDefault:"blogd:"` // Redis key prefix
	CacheTTL     int    `env:"BLOGD_CACHE_TTL" envDefault:"60"`        // Default cache TTL in seconds
	CacheMaxSize int    `env:"BLOGD_CACHE_MAX_SIZE" envDefault:"1000"` // Max memory cache entries

	// Email configuration
	EmailFrom        string `env:"BLOGD_EMAIL_FROM"`                           // Sender address for outgoing mail
	VerifyEmail      bool   `env:"BLOGD_VERIFY_EMAIL" envDefault:"false"`      // Require email verification on registration
	SESRegion        string `env:"BLOGD_SES_REGION" envDefault:"us-east-1"`    // AWS SES region
	ResetTokenMinute int    `env:"BLOGD_RESET_TOKEN_MINUTES" envDefault:"60"`  // Password reset token lifetime
	SessionHours     int    `env:"BLOGD_SESSION_HOURS" envDefault:"24"`        // Token and session lifetime
	DoSeed           bool   `env:"BLOGD_DO_SEED" envDefault:"false"`           // Enable database seeding
	MaxUploadBytes   int64  `env:"BLOGD_MAX_UPLOAD_BYTES" envDefault:"10485760"` // 10MB upload cap
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// EmailEnabled returns true if outgoing email is configured.
func (c Config) EmailEnabled() bool {
	return c.EmailFrom != ""
}

// MinJWTSecretLength is the minimum required length for the JWT signing secret.
const MinJWTSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate signing secret length
	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("BLOGD_JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(cfg.JWTSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.JWTSecret == weak {
			return nil, fmt.Errorf("BLOGD_JWT_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("BLOGD_JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	// Email verification requires a configured sender
	if cfg.VerifyEmail && !cfg.EmailEnabled() {
		return nil, fmt.Errorf("BLOGD_VERIFY_EMAIL requires BLOGD_EMAIL_FROM to be set")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
