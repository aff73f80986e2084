// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/blogd-app/blogd/internal/middleware"
)

// Routes assembles the /api router. Everything past registration, login,
// and the token-consuming recovery endpoints requires a bearer token backed
// by a live session; reads use the attached identity to personalize like
// state.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	requireAuth := middleware.BearerAuth(h.db, h.issuer)
	writeLimit := middleware.UserRateLimit(5.0, 10)

	r.Get("/status", h.Status)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.With(h.protection.Middleware()).Post("/login", h.Login)
		r.With(requireAuth).Post("/logout", h.Logout)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.Post("/verify-email", h.VerifyEmail)
	})

	r.With(requireAuth).Get("/session/validate_token", h.ValidateToken)

	r.Route("/user", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.With(writeLimit).Patch("/{id}", h.UpdateUser)
		r.With(writeLimit).Delete("/{id}", h.DeleteUser)
		r.With(writeLimit).Put("/{id}/status", h.UpdateStatus)
	})

	r.Route("/post", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", h.ListPosts)
			r.Get("/top-liked", h.TopLiked)
			r.Get("/user/{id}", h.ListUserPosts)
			r.Get("/specific/{id}", h.GetPost)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(writeLimit)
			r.Post("/", h.CreatePost)
			r.Patch("/{id}", h.UpdatePost)
			r.Delete("/{id}", h.DeletePost)
			r.Put("/like/{id}", h.LikePost)
			r.Put("/unlike/{id}", h.UnlikePost)
			r.Get("/{id}/revisions", h.ListRevisions)
		})
	})

	r.Route("/comment", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/post/{id}", h.ListPostComments)
			r.Get("/{id}", h.GetComment)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(writeLimit)
			r.Post("/", h.CreateComment)
			r.Patch("/{id}", h.UpdateComment)
			r.Delete("/{id}", h.DeleteComment)
			r.Put("/like/{id}", h.LikeComment)
			r.Put("/unlike/{id}", h.UnlikeComment)
		})
	})

	return r
}
