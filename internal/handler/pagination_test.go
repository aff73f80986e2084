// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// requestWithIDParam builds a request carrying a chi "id" URL parameter.
func requestWithIDParam(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    int64
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"large", "9223372036854775807", 9223372036854775807, false},
		{"zero", "0", 0, true},
		{"negative", "-5", 0, true},
		{"not a number", "abc", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDParam(requestWithIDParam(tt.id))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseIDParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParsePageParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"page=3", 3},
		{"page=0", 1},
		{"page=-2", 1},
		{"page=abc", 1},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := ParsePageParam(req); got != tt.want {
			t.Errorf("ParsePageParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParsePerPageParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", DefaultPerPage},
		{"per_page=50", 50},
		{"per_page=0", DefaultPerPage},
		{"per_page=500", DefaultPerPage},
		{"per_page=junk", DefaultPerPage},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := ParsePerPageParam(req, DefaultPerPage, MaxPerPage); got != tt.want {
			t.Errorf("ParsePerPageParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParseQueryInt64(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{"user_id=7", 7},
		{"user_id=0", 0},
		{"user_id=-1", 0},
		{"user_id=x", 0},
		{"", 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := ParseQueryInt64(req, "user_id"); got != tt.want {
			t.Errorf("ParseQueryInt64(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestCalculateTotalPages(t *testing.T) {
	tests := []struct {
		totalItems int
		perPage    int
		want       int
	}{
		{0, 20, 1},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 20, 5},
		{5, 0, 1},
	}

	for _, tt := range tests {
		if got := CalculateTotalPages(tt.totalItems, tt.perPage); got != tt.want {
			t.Errorf("CalculateTotalPages(%d, %d) = %d, want %d", tt.totalItems, tt.perPage, got, tt.want)
		}
	}
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		page       int
		totalItems int
		perPage    int
		wantPage   int
		wantTotal  int
	}{
		{1, 100, 20, 1, 5},
		{7, 100, 20, 5, 5},
		{0, 100, 20, 1, 5},
		{3, 0, 20, 1, 1},
	}

	for _, tt := range tests {
		page, total := NormalizePagination(tt.page, tt.totalItems, tt.perPage)
		if page != tt.wantPage || total != tt.wantTotal {
			t.Errorf("NormalizePagination(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.page, tt.totalItems, tt.perPage, page, total, tt.wantPage, tt.wantTotal)
		}
	}
}
