// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "blogd-health-test-*.db")
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

func withIdentity(r *http.Request, authLevel string) *http.Request {
	ident := middleware.Identity{UserID: 1, Email: "x@example.com", AuthLevel: authLevel}
	return r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyIdentity, ident))
}

func TestHealthPublicResponse(t *testing.T) {
	h := NewHealthHandler(testDB(t), t.TempDir())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthStatusPublic
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}

	// Public responses never leak check details.
	if body := rec.Body.String(); strings.Contains(body, "database") || strings.Contains(body, "disk") {
		t.Errorf("public response leaks check details: %s", body)
	}
}

func TestHealthAdminGetsChecks(t *testing.T) {
	h := NewHealthHandler(testDB(t), t.TempDir())

	rec := httptest.NewRecorder()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil), model.AuthLevelAdmin)
	h.Health(rec, req)

	var resp HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	if resp.Checks["database"].Status != "healthy" {
		t.Errorf("database check = %+v, want healthy", resp.Checks["database"])
	}
	if _, ok := resp.Checks["disk"]; !ok {
		t.Error("disk check missing")
	}
	if resp.System == nil {
		t.Error("verbose admin response should include system info")
	}
	if resp.Uptime == "" {
		t.Error("uptime missing")
	}
}

func TestHealthBasicUserGetsNoChecks(t *testing.T) {
	h := NewHealthHandler(testDB(t), t.TempDir())

	rec := httptest.NewRecorder()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/health", nil), model.AuthLevelBasic)
	h.Health(rec, req)

	var resp HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(resp.Checks) != 0 {
		t.Errorf("basic users must not see check details: %+v", resp.Checks)
	}
	if resp.Timestamp.IsZero() {
		t.Error("authenticated response should carry a timestamp")
	}
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(testDB(t), t.TempDir())

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	db := testDB(t)
	h := NewHealthHandler(db, t.TempDir())

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// A closed database makes the service not ready.
	db.Close()
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", rec.Code)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
