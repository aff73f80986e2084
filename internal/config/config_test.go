// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err, "expected error when BLOGD_JWT_SECRET is missing")
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestLoadRejectsKnownWeakSecret(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "change-me-to-32-byte-secret-key!")

	_, err := Load()
	assert.Error(t, err, "expected error for known weak secret")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "Kq9!mZx2Vw8#Tn4@Lp7$Jd5%Fh3^Gs6&")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/blogd.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost:8080", cfg.ServerAddr())
	assert.False(t, cfg.UseRedisCache())
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, 24, cfg.SessionHours)
	assert.Equal(t, 60, cfg.ResetTokenMinute)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "Kq9!mZx2Vw8#Tn4@Lp7$Jd5%Fh3^Gs6&")
	t.Setenv("BLOGD_SERVER_PORT", "9090")
	t.Setenv("BLOGD_ENV", "production")
	t.Setenv("BLOGD_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.UseRedisCache())
}

func TestLoadVerifyEmailRequiresSender(t *testing.T) {
	t.Setenv("BLOGD_JWT_SECRET", "Kq9!mZx2Vw8#Tn4@Lp7$Jd5%Fh3^Gs6&")
	t.Setenv("BLOGD_VERIFY_EMAIL", "true")

	_, err := Load()
	assert.Error(t, err, "expected error when verification is enabled without a sender")
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"abcdefgh", false},
		{"abcDEF123", true},
		{"abc123!@#", true},
		{"ABCDEF123456", false},
		{"aB3!", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, hasMinimumEntropy(tt.secret), "hasMinimumEntropy(%q)", tt.secret)
	}
}
