// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers for the blogging platform.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/cache"
	"github.com/blogd-app/blogd/internal/config"
	"github.com/blogd-app/blogd/internal/handler"
	"github.com/blogd-app/blogd/internal/imaging"
	"github.com/blogd-app/blogd/internal/mailer"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/store"
	"github.com/blogd-app/blogd/internal/version"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db         *sql.DB
	queries    *store.Queries
	cfg        *config.Config
	issuer     *auth.TokenIssuer
	caches     *cache.Manager
	mailer     *mailer.Mailer
	images     *imaging.Processor
	protection *middleware.LoginProtection
}

// NewHandler creates a new API handler.
func NewHandler(
	db *sql.DB,
	cfg *config.Config,
	issuer *auth.TokenIssuer,
	caches *cache.Manager,
	m *mailer.Mailer,
	images *imaging.Processor,
	protection *middleware.LoginProtection,
) *Handler {
	return &Handler{
		db:         db,
		queries:    store.New(db),
		cfg:        cfg,
		issuer:     issuer,
		caches:     caches,
		mailer:     m,
		images:     images,
		protection: protection,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{
		Data: data,
		Meta: meta,
	})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Data: data,
	})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 response with per-field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// WriteConflict writes a 400 response for state conflicts such as duplicate
// emails or repeated likes. Clients rely on the code to reconcile state.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "conflict", message, nil)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:  "ok",
		Version: version.Version,
	}, nil)
}

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	ident := middleware.GetIdentity(r)
	if ident == nil {
		WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return ident, true
}

// canModify is the single ownership predicate for mutating operations:
// the resource owner or an admin may proceed, nobody else.
func canModify(ident *middleware.Identity, ownerID int64) bool {
	return ident != nil && (ident.UserID == ownerID || ident.IsAdmin())
}

// requireOwnership writes a 403 unless the caller owns the resource or is
// an admin. Returns true when the caller may proceed.
func requireOwnership(w http.ResponseWriter, ident *middleware.Identity, ownerID int64) bool {
	if !canModify(ident, ownerID) {
		WriteForbidden(w, "You do not have permission to modify this resource")
		return false
	}
	return true
}

// EntityFetcher is a function that fetches an entity by ID.
type EntityFetcher[T any] func(id int64) (T, error)

// requireEntityByID parses an ID from the URL and fetches the entity.
// Returns the entity and true if successful, or zero value and false if error
// (response written). The entityName is used for error messages
// (e.g., "post", "comment", "user").
func requireEntityByID[T any](w http.ResponseWriter, r *http.Request, entityName string, fetch EntityFetcher[T]) (T, bool) {
	var zero T

	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid "+entityName+" ID", nil)
		return zero, false
	}

	entity, err := fetch(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, capitalizeFirst(entityName)+" not found")
		} else {
			WriteInternalError(w, "Failed to retrieve "+entityName)
		}
		return zero, false
	}

	return entity, true
}

// decodeJSON decodes the request body into dst, rejecting unknown fields.
// Writes a 400 and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	return true
}

// parsePagination reads the page and limit query parameters. The SPA sends
// "limit"; "per_page" is accepted as an alias.
func parsePagination(r *http.Request) (page, perPage int) {
	page = handler.ParsePageParam(r)
	perPage = handler.ParseIntParam(r, "limit", 0, 1, handler.MaxPerPage)
	if perPage == 0 {
		perPage = handler.ParsePerPageParam(r, handler.DefaultPerPage, handler.MaxPerPage)
	}
	return page, perPage
}

// capitalizeFirst returns s with the first letter capitalized.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
