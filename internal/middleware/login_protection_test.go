// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginProtectionAccountLockout(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{
		MaxFailedAttempts: 3,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Minute,
	})

	email := "victim@example.com"

	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Fatal("fresh account should not be locked")
	}

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Fatal("account should not lock before the limit")
	}
	if remaining := lp.GetRemainingAttempts(email); remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}

	nowLocked, duration := lp.RecordFailedAttempt(email)
	if !nowLocked {
		t.Fatal("third failure should lock the account")
	}
	if duration != time.Minute {
		t.Errorf("lock duration = %v, want 1m", duration)
	}

	locked, remaining := lp.IsAccountLocked(email)
	if !locked {
		t.Error("account should report locked")
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("remaining lock = %v, want within (0, 1m]", remaining)
	}
}

func TestLoginProtectionSuccessClearsAttempts(t *testing.T) {
	lp := NewLoginProtection(DefaultLoginProtectionConfig())

	email := "comeback@example.com"
	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	lp.RecordSuccessfulLogin(email)

	if remaining := lp.GetRemainingAttempts(email); remaining != 5 {
		t.Errorf("remaining after success = %d, want full budget 5", remaining)
	}
}

func TestLoginProtectionExponentialBackoff(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{
		MaxFailedAttempts: 1,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Hour,
	})

	email := "repeat@example.com"

	_, first := lp.RecordFailedAttempt(email)
	if first != time.Minute {
		t.Errorf("first lockout = %v, want 1m", first)
	}

	// Pretend the first lockout expired, then fail again.
	lp.attemptsMu.Lock()
	lp.failedAttempts[email].lockedUntil = time.Now().Add(-time.Second)
	lp.attemptsMu.Unlock()

	_, second := lp.RecordFailedAttempt(email)
	if second != 2*time.Minute {
		t.Errorf("second lockout = %v, want 2m (doubled)", second)
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit: 1,
		IPBurst:     1,
	})
	handler := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// GET is never rate limited.
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
		req.Header.Set("X-Real-IP", "203.0.113.1")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d: status = %d, want 200", i, rec.Code)
		}
	}

	// First POST passes, second exceeds the burst.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("X-Real-IP", "203.0.113.1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set("X-Real-IP", "203.0.113.1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second POST: status = %d, want 429", rec.Code)
	}
}
