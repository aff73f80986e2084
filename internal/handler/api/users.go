// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blogd-app/blogd/internal/handler"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

// uploadsURLPrefix is where processed uploads are served from.
const uploadsURLPrefix = "/uploads/"

// UserProfile is the public view of a user, with image paths resolved to
// servable URLs. Password and token hashes never leave the store layer.
type UserProfile struct {
	model.User
	Avatar string `json:"avatar,omitempty"`
	Cover  string `json:"cover,omitempty"`
}

func profileView(user model.User) UserProfile {
	p := UserProfile{User: user}
	if user.AvatarPath.Valid {
		p.Avatar = uploadsURLPrefix + user.AvatarPath.String
	}
	if user.CoverPath.Valid {
		p.Cover = uploadsURLPrefix + user.CoverPath.String
	}
	return p
}

// GetUser handles GET /api/user/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireEntityByID(w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}

	WriteSuccess(w, profileView(user), nil)
}

// ListUsers handles GET /api/user, the paginated member directory.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	total, err := h.queries.CountUsers(r.Context())
	if err != nil {
		slog.Error("list users: count failed", "error", err)
		WriteInternalError(w, "Failed to list users")
		return
	}

	page, pages := handler.NormalizePagination(page, int(total), perPage)
	users, err := h.queries.ListUsers(r.Context(), store.ListUsersParams{
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	})
	if err != nil {
		slog.Error("list users: query failed", "error", err)
		WriteInternalError(w, "Failed to list users")
		return
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, profileView(u))
	}

	WriteSuccess(w, profiles, &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	})
}

// updateUserRequest carries a partial profile update. Nil pointers leave the
// current value untouched.
type updateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	Location   *string `json:"location,omitempty"`
	Occupation *string `json:"occupation,omitempty"`
}

// UpdateUser handles PATCH /api/user/{id}. Self or admin only.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, ok := requireEntityByID(w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, user.ID) {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := store.UpdateUserProfileParams{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		BirthDate:  user.BirthDate,
		Location:   user.Location,
		Occupation: user.Occupation,
		UpdatedAt:  time.Now().UTC(),
	}

	if req.Email != nil {
		email := model.NormalizeEmail(*req.Email)
		if !model.ValidEmail(email) {
			WriteValidationError(w, map[string]string{"email": "Invalid email address"})
			return
		}
		if email != user.Email {
			if other, err := h.queries.GetUserByEmail(r.Context(), email); err == nil && other.ID != user.ID {
				WriteConflict(w, "Email is already registered")
				return
			} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
				slog.Error("update user: email lookup failed", "error", err)
				WriteInternalError(w, "Failed to update user")
				return
			}
		}
		params.Email = email
	}
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			WriteValidationError(w, map[string]string{"first_name": "First name cannot be empty"})
			return
		}
		params.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			WriteValidationError(w, map[string]string{"last_name": "Last name cannot be empty"})
			return
		}
		params.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.BirthDate != nil {
		if *req.BirthDate == "" {
			params.BirthDate = sql.NullTime{}
		} else {
			parsed, err := time.Parse(birthDateLayout, *req.BirthDate)
			if err != nil {
				WriteValidationError(w, map[string]string{"birth_date": "Birth date must be YYYY-MM-DD"})
				return
			}
			params.BirthDate = sql.NullTime{Time: parsed, Valid: true}
		}
	}
	if req.Location != nil {
		params.Location = strings.TrimSpace(*req.Location)
	}
	if req.Occupation != nil {
		params.Occupation = strings.TrimSpace(*req.Occupation)
	}

	if err := h.queries.UpdateUserProfile(r.Context(), params); err != nil {
		slog.Error("update user: write failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to update user")
		return
	}

	updated, err := h.queries.GetUserByID(r.Context(), user.ID)
	if err != nil {
		slog.Error("update user: reload failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to update user")
		return
	}

	slog.Info("user profile updated", "category", model.EventCategoryUser, "user_id", user.ID)
	WriteSuccess(w, profileView(updated), nil)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/user/{id}/status. Self or admin only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, ok := requireEntityByID(w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, user.ID) {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status := strings.TrimSpace(req.Status)
	if err := h.queries.UpdateUserStatus(r.Context(), user.ID, status); err != nil {
		slog.Error("update status: write failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to update status")
		return
	}

	user.Status = status
	WriteSuccess(w, profileView(user), nil)
}

// DeleteUser handles DELETE /api/user/{id}. Self or admin only. Posts,
// comments, likes, and sessions cascade; image files are removed here since
// the store never touches the filesystem.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, ok := requireEntityByID(w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, user.ID) {
		return
	}

	h.deleteUserImages(r, user)

	if err := h.queries.DeleteUser(r.Context(), user.ID); err != nil {
		slog.Error("delete user: write failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to delete user")
		return
	}

	// Deleting the user's posts can change the top-liked ranking.
	if err := h.caches.TopPosts.Invalidate(r.Context()); err != nil {
		slog.Warn("delete user: cache invalidation failed", "error", err)
	}

	slog.Warn("user deleted", "category", model.EventCategoryUser, "user_id", user.ID, "deleted_by", ident.UserID)
	WriteSuccess(w, map[string]string{"message": "User deleted"}, nil)
}

// deleteUserImages removes the avatar, cover, and every post image owned by
// the user. File removal failures are logged, not fatal.
func (h *Handler) deleteUserImages(r *http.Request, user model.User) {
	if user.AvatarPath.Valid {
		if err := h.images.DeleteImage(user.AvatarPath.String); err != nil {
			slog.Warn("delete user: avatar removal failed", "error", err, "user_id", user.ID)
		}
	}
	if user.CoverPath.Valid {
		if err := h.images.DeleteImage(user.CoverPath.String); err != nil {
			slog.Warn("delete user: cover removal failed", "error", err, "user_id", user.ID)
		}
	}

	count, err := h.queries.CountPostsByUser(r.Context(), user.ID, false)
	if err != nil || count == 0 {
		return
	}
	posts, err := h.queries.ListPostsByUser(r.Context(), store.ListPostsByUserParams{
		UserID: user.ID,
		Limit:  count,
		Offset: 0,
	})
	if err != nil {
		slog.Warn("delete user: post listing failed", "error", err, "user_id", user.ID)
		return
	}
	for _, p := range posts {
		if p.ImagePath.Valid {
			if err := h.images.DeleteImage(p.ImagePath.String); err != nil {
				slog.Warn("delete user: post image removal failed", "error", err, "post_id", p.ID)
			}
		}
	}
}
