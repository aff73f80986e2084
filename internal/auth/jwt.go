// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims embedded in every issued bearer token.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	AuthLevel string `json:"auth_level"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenIssuer creates a TokenIssuer with the given HMAC secret and token lifetime.
func NewTokenIssuer(secret string, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

// Lifetime returns the configured token lifetime.
func (ti *TokenIssuer) Lifetime() time.Duration {
	return ti.lifetime
}

// Issue signs a new token for the given identity.
// Returns the signed token and its expiry time.
func (ti *TokenIssuer) Issue(userID int64, email, authLevel string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.lifetime)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		AuthLevel: authLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "blogd",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses and validates a signed token, returning its claims.
// Fails on expired tokens, wrong signing methods, and missing claims.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == 0 || claims.Email == "" {
		return nil, fmt.Errorf("token missing required claims")
	}
	return claims, nil
}
