// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, http.StatusBadRequest, "validation_error", "Title is required", map[string]string{"field": "title"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if apiErr.Error.Code != "validation_error" {
		t.Errorf("code = %q, want validation_error", apiErr.Error.Code)
	}
	if apiErr.Error.Details["field"] != "title" {
		t.Errorf("details = %v, want field:title", apiErr.Error.Details)
	}
}

func TestLimiterCacheReusesLimiters(t *testing.T) {
	cache := newLimiterCache[string](1, 1)

	a := cache.get("alpha")
	b := cache.get("alpha")
	if a != b {
		t.Error("same key should return the same limiter")
	}

	c := cache.get("beta")
	if a == c {
		t.Error("different keys should return different limiters")
	}
}

func TestLimiterCacheClearIfExceeds(t *testing.T) {
	cache := newLimiterCache[int](1, 1)
	for i := 0; i < 5; i++ {
		cache.get(i)
	}

	if cache.clearIfExceeds(10) {
		t.Error("cache below max size should not be cleared")
	}
	if !cache.clearIfExceeds(3) {
		t.Error("cache above max size should be cleared")
	}
	if len(cache.limiters) != 0 {
		t.Errorf("limiters after clear = %d, want 0", len(cache.limiters))
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 2)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Burst of 2 allowed, third request rejected.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
		req.Header.Set("X-Real-IP", "203.0.113.9")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/post", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// A different IP has its own budget.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/post", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}
}

func TestUserRateLimitSkipsAnonymous(t *testing.T) {
	handler := UserRateLimit(0.0001, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Without an identity in context the limiter must not interfere.
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/post", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"x-real-ip", map[string]string{"X-Real-IP": "1.2.3.4"}, "9.9.9.9:1234", "1.2.3.4"},
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "5.6.7.8"}, "9.9.9.9:1234", "5.6.7.8"},
		{"remote addr fallback", nil, "9.9.9.9:1234", "9.9.9.9:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
