// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/cache"
	"github.com/blogd-app/blogd/internal/config"
	"github.com/blogd-app/blogd/internal/imaging"
	"github.com/blogd-app/blogd/internal/mailer"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

const testJWTSecret = "test-secret-key-with-32-characters!"

// testDB creates a migrated SQLite database in a temp file.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "blogd-api-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	return db
}

// testSetup creates a database and a fully wired API handler backed by a
// memory cache, a log-only mailer, and a temp uploads dir.
func testSetup(t *testing.T) (*sql.DB, *Handler) {
	t.Helper()

	db := testDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		JWTSecret:        testJWTSecret,
		Env:              "development",
		UploadsDir:       t.TempDir(),
		SiteURL:          "http://localhost:8080",
		CachePrefix:      "blogd:",
		CacheTTL:         60,
		CacheMaxSize:     1000,
		ResetTokenMinute: 60,
		SessionHours:     24,
		MaxUploadBytes:   10 << 20,
	}

	caches, err := cache.NewManager(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("cache.NewManager: %v", err)
	}
	t.Cleanup(func() { _ = caches.Close() })

	m, err := mailer.New(mailer.Config{SiteURL: cfg.SiteURL}, logger)
	if err != nil {
		t.Fatalf("mailer.New: %v", err)
	}

	h := NewHandler(
		db,
		cfg,
		auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.SessionHours)*time.Hour),
		caches,
		m,
		imaging.NewProcessor(cfg.UploadsDir),
		middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig()),
	)
	return db, h
}

// createTestUser inserts a user with the given email and auth level. The
// password is always "password1".
func createTestUser(t *testing.T, db *sql.DB, email, authLevel string) model.User {
	t.Helper()

	hash, err := auth.HashPassword("password1")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	now := time.Now().UTC()
	user, err := store.New(db).CreateUser(context.Background(), store.CreateUserParams{
		Email:         model.NormalizeEmail(email),
		PasswordHash:  hash,
		FirstName:     "Test",
		LastName:      "User",
		AuthLevel:     authLevel,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

// createTestPost inserts a post owned by the given user.
func createTestPost(t *testing.T, db *sql.DB, userID int64, title string) model.Post {
	t.Helper()

	now := time.Now().UTC()
	post, err := store.New(db).CreatePost(context.Background(), store.CreatePostParams{
		UserID:    userID,
		Title:     title,
		Slug:      strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Content:   "Test content for " + title,
		Category:  "Technology",
		Status:    model.PostStatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("creating test post: %v", err)
	}
	return post
}

// createTestComment inserts a comment, optionally as a reply.
func createTestComment(t *testing.T, db *sql.DB, postID, userID int64, parentID *int64, content string) model.Comment {
	t.Helper()

	now := time.Now().UTC()
	params := store.CreateCommentParams{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parentID != nil {
		params.ParentID = sql.NullInt64{Int64: *parentID, Valid: true}
	}
	comment, err := store.New(db).CreateComment(context.Background(), params)
	if err != nil {
		t.Fatalf("creating test comment: %v", err)
	}
	return comment
}

// withUser attaches an authenticated identity to the request, as the bearer
// middleware would.
func withUser(r *http.Request, user model.User) *http.Request {
	ident := middleware.Identity{UserID: user.ID, Email: user.Email, AuthLevel: user.AuthLevel}
	return r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyIdentity, ident))
}

// requestWithURLParams adds chi URL parameters to a request.
func requestWithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// newJSONRequest creates an HTTP request with JSON body and optional URL params.
func newJSONRequest(t *testing.T, method, path string, body string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

// newGetRequest creates an HTTP GET request with optional URL params.
func newGetRequest(t *testing.T, path string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

// newDeleteRequest creates an HTTP DELETE request with optional URL params.
func newDeleteRequest(t *testing.T, path string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

// dataResponse is a generic wrapper for API responses with a "data" field.
type dataResponse[T any] struct {
	Data T `json:"data"`
}

// listResponse is a generic wrapper for API list responses with data and meta.
type listResponse[T any] struct {
	Data []T   `json:"data"`
	Meta *Meta `json:"meta"`
}

// unmarshalData unmarshals a JSON response body into the specified type.
func unmarshalData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp dataResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp.Data
}

// unmarshalList unmarshals a JSON list response body into the specified type.
func unmarshalList[T any](t *testing.T, w *httptest.ResponseRecorder) ([]T, *Meta) {
	t.Helper()
	var resp listResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp.Data, resp.Meta
}

// unmarshalError unmarshals a JSON error response body.
func unmarshalError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	return resp.Error
}

// executeHandler executes a handler and returns the response recorder.
func executeHandler(t *testing.T, handler func(http.ResponseWriter, *http.Request), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}
