// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blogd-app/blogd/internal/handler"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
	"github.com/blogd-app/blogd/internal/util"
)

// CommentThread is a comment with its direct replies. Threads are derived
// from parent_id at read time; the store never duplicates reply lists.
type CommentThread struct {
	model.Comment
	Replies []model.Comment `json:"replies"`
	Liked   bool            `json:"liked"`
}

type createCommentRequest struct {
	PostID   int64  `json:"post_id"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Content  string `json:"content"`
}

// CreateComment handles POST /api/comment. Replying is the same operation
// with a parent_id; the parent must be a comment on the same post.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if !model.ValidContent(req.Content) {
		WriteValidationError(w, map[string]string{"content": "Content must be between 1 and 10000 characters"})
		return
	}
	if req.PostID <= 0 {
		WriteValidationError(w, map[string]string{"post_id": "Post ID is required"})
		return
	}

	if _, err := h.queries.GetPostByID(r.Context(), req.PostID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Post not found")
			return
		}
		slog.Error("create comment: post lookup failed", "error", err, "post_id", req.PostID)
		WriteInternalError(w, "Failed to create comment")
		return
	}

	if req.ParentID != nil {
		parent, err := h.queries.GetCommentByID(r.Context(), *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				WriteBadRequest(w, "Parent comment not found", nil)
				return
			}
			slog.Error("create comment: parent lookup failed", "error", err, "parent_id", *req.ParentID)
			WriteInternalError(w, "Failed to create comment")
			return
		}
		if parent.PostID != req.PostID {
			WriteBadRequest(w, "Parent comment belongs to a different post", nil)
			return
		}
	}

	now := time.Now().UTC()
	comment, err := h.queries.CreateComment(r.Context(), store.CreateCommentParams{
		PostID:    req.PostID,
		UserID:    ident.UserID,
		ParentID:  util.NullInt64FromPtr(req.ParentID),
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		slog.Error("create comment: insert failed", "error", err, "post_id", req.PostID, "user_id", ident.UserID)
		WriteInternalError(w, "Failed to create comment")
		return
	}

	slog.Info("comment created", "category", model.EventCategoryComment, "user_id", ident.UserID, "post_id", req.PostID, "comment_id", comment.ID)
	WriteCreated(w, comment)
}

// ListPostComments handles GET /api/comment/post/{id}: the post's comments
// threaded one level deep, paginated over top-level comments.
func (h *Handler) ListPostComments(w http.ResponseWriter, r *http.Request) {
	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}

	page, perPage := parsePagination(r)

	total, err := h.queries.CountTopLevelComments(r.Context(), post.ID)
	if err != nil {
		slog.Error("list comments: count failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to list comments")
		return
	}

	page, pages := handler.NormalizePagination(page, int(total), perPage)
	comments, err := h.queries.ListTopLevelComments(r.Context(), store.ListTopLevelCommentsParams{
		PostID: post.ID,
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	})
	if err != nil {
		slog.Error("list comments: query failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to list comments")
		return
	}

	ident := middleware.GetIdentity(r)
	threads := make([]CommentThread, 0, len(comments))
	for _, c := range comments {
		thread, err := h.threadView(r.Context(), c, ident)
		if err != nil {
			slog.Error("list comments: reply load failed", "error", err, "comment_id", c.ID)
			WriteInternalError(w, "Failed to list comments")
			return
		}
		threads = append(threads, thread)
	}

	WriteSuccess(w, threads, &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	})
}

// threadView assembles one comment with its replies and the caller's like
// state.
func (h *Handler) threadView(ctx context.Context, c model.Comment, ident *middleware.Identity) (CommentThread, error) {
	replies, err := h.queries.ListReplies(ctx, c.ID)
	if err != nil {
		return CommentThread{}, err
	}
	if replies == nil {
		replies = []model.Comment{}
	}

	thread := CommentThread{Comment: c, Replies: replies}
	if ident != nil {
		liked, err := h.queries.HasLikedComment(ctx, c.ID, ident.UserID)
		if err != nil {
			return CommentThread{}, err
		}
		thread.Liked = liked
	}
	return thread, nil
}

// GetComment handles GET /api/comment/{id}: a single comment with its
// replies.
func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := requireEntityByID(w, r, "comment", func(id int64) (model.Comment, error) {
		return h.queries.GetCommentByID(r.Context(), id)
	})
	if !ok {
		return
	}

	thread, err := h.threadView(r.Context(), comment, middleware.GetIdentity(r))
	if err != nil {
		slog.Error("get comment: reply load failed", "error", err, "comment_id", comment.ID)
		WriteInternalError(w, "Failed to load comment")
		return
	}

	WriteSuccess(w, thread, nil)
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// UpdateComment handles PATCH /api/comment/{id}. Owner or admin only.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	comment, ok := requireEntityByID(w, r, "comment", func(id int64) (model.Comment, error) {
		return h.queries.GetCommentByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, comment.UserID) {
		return
	}

	var req updateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	content := strings.TrimSpace(req.Content)
	if !model.ValidContent(content) {
		WriteValidationError(w, map[string]string{"content": "Content must be between 1 and 10000 characters"})
		return
	}

	if err := h.queries.UpdateCommentContent(r.Context(), comment.ID, content); err != nil {
		slog.Error("update comment: write failed", "error", err, "comment_id", comment.ID)
		WriteInternalError(w, "Failed to update comment")
		return
	}

	updated, err := h.queries.GetCommentByID(r.Context(), comment.ID)
	if err != nil {
		slog.Error("update comment: reload failed", "error", err, "comment_id", comment.ID)
		WriteInternalError(w, "Failed to update comment")
		return
	}

	slog.Info("comment updated", "category", model.EventCategoryComment, "user_id", ident.UserID, "comment_id", comment.ID)
	WriteSuccess(w, updated, nil)
}

// DeleteComment handles DELETE /api/comment/{id}. Owner or admin only.
// Replies to the deleted comment cascade.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	comment, ok := requireEntityByID(w, r, "comment", func(id int64) (model.Comment, error) {
		return h.queries.GetCommentByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, comment.UserID) {
		return
	}

	if err := h.queries.DeleteComment(r.Context(), comment.ID); err != nil {
		slog.Error("delete comment: write failed", "error", err, "comment_id", comment.ID)
		WriteInternalError(w, "Failed to delete comment")
		return
	}

	slog.Info("comment deleted", "category", model.EventCategoryComment, "user_id", ident.UserID, "comment_id", comment.ID)
	WriteSuccess(w, map[string]string{"message": "Comment deleted"}, nil)
}

// LikeComment handles PUT /api/comment/like/{id}.
func (h *Handler) LikeComment(w http.ResponseWriter, r *http.Request) {
	h.toggleCommentLike(w, r, store.LikeComment, "Comment already liked", "comment liked", true)
}

// UnlikeComment handles PUT /api/comment/unlike/{id}.
func (h *Handler) UnlikeComment(w http.ResponseWriter, r *http.Request) {
	h.toggleCommentLike(w, r, store.UnlikeComment, "Comment not liked", "comment unliked", false)
}

func (h *Handler) toggleCommentLike(
	w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, db *sql.DB, commentID, userID int64) error,
	conflictMsg, logMsg string, liked bool,
) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	comment, ok := requireEntityByID(w, r, "comment", func(id int64) (model.Comment, error) {
		return h.queries.GetCommentByID(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := op(r.Context(), h.db, comment.ID, ident.UserID); err != nil {
		if errors.Is(err, store.ErrAlreadyLiked) || errors.Is(err, store.ErrNotLiked) {
			WriteConflict(w, conflictMsg)
			return
		}
		slog.Error("comment like toggle failed", "error", err, "comment_id", comment.ID, "user_id", ident.UserID)
		WriteInternalError(w, "Failed to update like")
		return
	}

	updated, err := h.queries.GetCommentByID(r.Context(), comment.ID)
	if err != nil {
		slog.Error("comment like: reload failed", "error", err, "comment_id", comment.ID)
		WriteInternalError(w, "Failed to update like")
		return
	}

	slog.Info(logMsg, "category", model.EventCategoryComment, "user_id", ident.UserID, "comment_id", comment.ID)
	WriteSuccess(w, CommentThread{Comment: updated, Replies: []model.Comment{}, Liked: liked}, nil)
}
