// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyIdentity is the context key for the authenticated identity.
const ContextKeyIdentity ContextKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID    int64
	Email     string
	AuthLevel string
}

// IsAdmin returns true if the identity carries the admin auth level.
func (id *Identity) IsAdmin() bool {
	return id.AuthLevel == model.AuthLevelAdmin
}

// bearerToken extracts the raw token from the Authorization header.
// Returns "" when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// BearerAuth creates middleware that requires a valid bearer token.
// The token must verify against the signing secret AND have a live session
// row, so logout and password resets revoke access before the JWT expires.
// Missing or malformed headers are 401; a token that fails verification or
// has no session is 403.
func BearerAuth(db *sql.DB, issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing or malformed Authorization header. Use: Bearer <token>", nil)
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Invalid or expired token", nil)
				return
			}

			session, err := queries.GetSessionByTokenHash(r.Context(), model.HashToken(token))
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					slog.Error("session lookup failed", "error", err)
					WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to validate session", nil)
					return
				}
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Session has been revoked", nil)
				return
			}
			if session.IsExpired() || session.UserID != claims.UserID {
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Session has expired", nil)
				return
			}

			ident := Identity{
				UserID:    claims.UserID,
				Email:     claims.Email,
				AuthLevel: claims.AuthLevel,
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalBearerAuth attaches the identity when a valid bearer token with a
// live session is presented, and passes the request through anonymously
// otherwise. The health endpoints use this to show details to authenticated
// callers while staying reachable for unauthenticated probes.
func OptionalBearerAuth(db *sql.DB, issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			session, err := queries.GetSessionByTokenHash(r.Context(), model.HashToken(token))
			if err != nil || session.IsExpired() || session.UserID != claims.UserID {
				next.ServeHTTP(w, r)
				return
			}

			ident := Identity{
				UserID:    claims.UserID,
				Email:     claims.Email,
				AuthLevel: claims.AuthLevel,
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated identity from the request context.
// Returns nil if the request is unauthenticated.
func GetIdentity(r *http.Request) *Identity {
	ident, ok := r.Context().Value(ContextKeyIdentity).(Identity)
	if !ok {
		return nil
	}
	return &ident
}

// GetUserID returns the authenticated user's ID from context, or 0 if not found.
// Safe to use in logging where a zero-value is acceptable.
func GetUserID(r *http.Request) int64 {
	if ident := GetIdentity(r); ident != nil {
		return ident.UserID
	}
	return 0
}

// RequireAdmin creates middleware that requires the admin auth level.
// This should be used after BearerAuth middleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := GetIdentity(r)
			if ident == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if !ident.IsAdmin() {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", ident.UserID,
					"auth_level", ident.AuthLevel,
					"remote_addr", r.RemoteAddr,
				)
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RawBearerToken exposes the raw token of the current request, for handlers
// that operate on the presented token itself (logout, validate).
func RawBearerToken(r *http.Request) string {
	return bearerToken(r)
}
