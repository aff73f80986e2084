// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveWithHeaders(t *testing.T, cfg SecurityHeadersConfig) http.Header {
	t.Helper()

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	return rec.Header()
}

func TestSecurityHeadersDefaults(t *testing.T) {
	headers := serveWithHeaders(t, DefaultSecurityHeadersConfig(false))

	if got := headers.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := headers.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := headers.Get("Referrer-Policy"); got != "strict-origin-when-cross-origin" {
		t.Errorf("Referrer-Policy = %q", got)
	}

	csp := headers.Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("CSP = %q, want default-src 'none'", csp)
	}

	hsts := headers.Get("Strict-Transport-Security")
	if !strings.Contains(hsts, "max-age=31536000") || !strings.Contains(hsts, "includeSubDomains") {
		t.Errorf("HSTS = %q", hsts)
	}
}

func TestSecurityHeadersDevelopmentSkipsHSTS(t *testing.T) {
	headers := serveWithHeaders(t, DefaultSecurityHeadersConfig(true))

	if got := headers.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should be absent in development, got %q", got)
	}
}

func TestBuildCSPOrder(t *testing.T) {
	csp := buildCSP(map[string]string{
		"img-src":     "'self'",
		"default-src": "'none'",
	})
	if !strings.HasPrefix(csp, "default-src 'none'") {
		t.Errorf("CSP = %q, want default-src first", csp)
	}
}

func TestIntToStr(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{31536000, "31536000"},
		{-42, "-42"},
	}
	for _, tt := range tests {
		if got := intToStr(tt.n); got != tt.want {
			t.Errorf("intToStr(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
