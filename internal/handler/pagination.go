// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides shared request plumbing for the HTTP layer:
// URL and query parameter parsing, pagination helpers, and health checks.
package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Pagination defaults shared by list endpoints.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ParseIDParam parses the "id" URL parameter as a positive int64.
func ParseIDParam(r *http.Request) (int64, error) {
	return ParseURLParamInt64(r, "id")
}

// ParseURLParamInt64 parses a named chi URL parameter as a positive int64.
func ParseURLParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return val, nil
}

// ParsePageParam parses the "page" query parameter from the request.
// Returns 1 if the parameter is missing, empty, or invalid.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, "page", 1, 1, 0)
}

// ParsePerPageParam parses the "per_page" query parameter from the request.
// Returns the default value if the parameter is missing, empty, or invalid.
// The value is clamped to the range [1, maxPerPage].
func ParsePerPageParam(r *http.Request, defaultPerPage, maxPerPage int) int {
	return ParseIntParam(r, "per_page", defaultPerPage, 1, maxPerPage)
}

// ParseIntParam parses an integer query parameter from the request.
// Returns defaultVal if the parameter is missing, empty, or invalid.
// If minVal > 0, values below minVal return defaultVal.
// If maxVal > 0, values above maxVal return defaultVal.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if minVal > 0 && val < minVal {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return defaultVal
	}
	return val
}

// ParseQueryInt64 parses a named query parameter as a positive int64.
// Returns 0 if the parameter is missing, empty, invalid, or not positive.
func ParseQueryInt64(r *http.Request, name string) int64 {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0
	}
	return val
}

// CalculateTotalPages calculates the number of pages for the given total items and items per page.
func CalculateTotalPages(totalItems, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	totalPages := (totalItems + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return totalPages
}

// ClampPage ensures the page number is within the valid range [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// NormalizePagination calculates total pages and clamps the current page to a valid range.
// Returns the normalized page number and total pages.
func NormalizePagination(page, totalItems, perPage int) (normalizedPage, totalPages int) {
	totalPages = CalculateTotalPages(totalItems, perPage)
	normalizedPage = ClampPage(page, totalPages)
	return normalizedPage, totalPages
}
