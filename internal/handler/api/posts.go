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

	"github.com/microcosm-cc/bluemonday"

	"github.com/blogd-app/blogd/internal/handler"
	"github.com/blogd-app/blogd/internal/imaging"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
	"github.com/blogd-app/blogd/internal/util"
)

// topLikedLimit is how many posts the top-liked feed returns. Fewer liked
// posts than this backfills with the newest posts.
const topLikedLimit = 5

// contentPolicy strips script and event-handler vectors from user HTML while
// keeping the formatting the editor produces.
var contentPolicy = bluemonday.UGCPolicy()

// PostView is a post with image URLs resolved and, where loaded, the tag set
// and the caller's like state.
type PostView struct {
	model.Post
	Image string   `json:"image,omitempty"`
	Thumb string   `json:"thumb,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Liked bool     `json:"liked"`
}

func postView(post model.Post) PostView {
	v := PostView{Post: post}
	if post.ImagePath.Valid {
		v.Image = uploadsURLPrefix + post.ImagePath.String
		v.Thumb = uploadsURLPrefix + imaging.ThumbPath(post.ImagePath.String)
	}
	return v
}

func postViews(posts []model.Post) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView(p))
	}
	return views
}

// postRequest carries post fields from a JSON body or multipart form.
type postRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Status   string   `json:"status,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// normalizeTags trims, deduplicates, and drops empty tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// parsePostForm reads a post payload from either encoding. Multipart forms
// carry tags as a comma-separated "tags" value.
func (h *Handler) parsePostForm(w http.ResponseWriter, r *http.Request) (*postRequest, bool, bool) {
	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if isMultipart {
		if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
			WriteBadRequest(w, "Invalid multipart form", nil)
			return nil, false, false
		}
		req := &postRequest{
			Title:    r.FormValue("title"),
			Content:  r.FormValue("content"),
			Category: r.FormValue("category"),
			Status:   r.FormValue("status"),
		}
		if tags := r.FormValue("tags"); tags != "" {
			req.Tags = strings.Split(tags, ",")
		}
		return req, true, true
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return nil, false, false
	}
	return &req, false, true
}

// CreatePost handles POST /api/post.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	req, isMultipart, ok := h.parsePostForm(w, r)
	if !ok {
		return
	}

	req.Content = contentPolicy.Sanitize(req.Content)

	fieldErrors := make(map[string]string)
	if strings.TrimSpace(req.Title) == "" {
		fieldErrors["title"] = "Title is required"
	}
	if !model.ValidCategory(req.Category) {
		fieldErrors["category"] = "Unknown category"
	}
	if !model.ValidContent(req.Content) {
		fieldErrors["content"] = "Content must be between 1 and 10000 characters"
	}
	if req.Status != "" && !model.ValidPostStatus(req.Status) {
		fieldErrors["status"] = "Unknown status"
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}
	if req.Status == "" {
		req.Status = model.PostStatusPublished
	}

	slug := util.Slugify(req.Title)
	if slug == "" {
		WriteValidationError(w, map[string]string{"title": "Title must contain at least one letter or digit"})
		return
	}
	exists, err := h.queries.SlugExists(r.Context(), slug)
	if err != nil {
		slog.Error("create post: slug check failed", "error", err)
		WriteInternalError(w, "Failed to create post")
		return
	}
	if exists {
		slug = util.UniqueSlug(slug)
	}

	var imagePath sql.NullString
	if isMultipart {
		if imagePath, err = h.formImage(r, "image", imaging.KindPost); err != nil {
			WriteValidationError(w, map[string]string{"image": "Invalid image"})
			return
		}
	}

	now := time.Now().UTC()
	post, err := h.queries.CreatePost(r.Context(), store.CreatePostParams{
		UserID:    ident.UserID,
		Title:     strings.TrimSpace(req.Title),
		Slug:      slug,
		Content:   req.Content,
		Category:  req.Category,
		Status:    req.Status,
		ImagePath: imagePath,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		slog.Error("create post: insert failed", "error", err, "user_id", ident.UserID)
		WriteInternalError(w, "Failed to create post")
		return
	}

	tags := normalizeTags(req.Tags)
	if len(tags) > 0 {
		if err := h.queries.SetPostTags(r.Context(), post.ID, tags); err != nil {
			slog.Error("create post: tag write failed", "error", err, "post_id", post.ID)
			WriteInternalError(w, "Failed to create post")
			return
		}
	}

	if err := h.caches.TopPosts.Invalidate(r.Context()); err != nil {
		slog.Warn("create post: cache invalidation failed", "error", err)
	}

	slog.Info("post created", "category", model.EventCategoryPost, "user_id", ident.UserID, "post_id", post.ID, "slug", post.Slug)

	view := postView(post)
	view.Tags = tags
	WriteCreated(w, view)
}

// ListPosts handles GET /api/post, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	total, err := h.queries.CountPosts(r.Context())
	if err != nil {
		slog.Error("list posts: count failed", "error", err)
		WriteInternalError(w, "Failed to list posts")
		return
	}

	page, pages := handler.NormalizePagination(page, int(total), perPage)
	posts, err := h.queries.ListPosts(r.Context(), store.ListPostsParams{
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	})
	if err != nil {
		slog.Error("list posts: query failed", "error", err)
		WriteInternalError(w, "Failed to list posts")
		return
	}

	WriteSuccess(w, postViews(posts), &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	})
}

// ListUserPosts handles GET /api/post/user/{id}.
func (h *Handler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := requireEntityByID(w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}

	page, perPage := parsePagination(r)

	// Authors and admins see the author's drafts; everyone else only
	// published posts.
	ident := middleware.GetIdentity(r)
	publishedOnly := ident == nil || !canModify(ident, user.ID)

	total, err := h.queries.CountPostsByUser(r.Context(), user.ID, publishedOnly)
	if err != nil {
		slog.Error("list user posts: count failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to list posts")
		return
	}

	page, pages := handler.NormalizePagination(page, int(total), perPage)
	posts, err := h.queries.ListPostsByUser(r.Context(), store.ListPostsByUserParams{
		UserID:        user.ID,
		Limit:         int64(perPage),
		Offset:        int64((page - 1) * perPage),
		PublishedOnly: publishedOnly,
	})
	if err != nil {
		slog.Error("list user posts: query failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to list posts")
		return
	}

	WriteSuccess(w, postViews(posts), &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	})
}

// GetPost handles GET /api/post/specific/{id}: the full post with tags and
// the caller's like state. Each fetch counts as a view.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := h.queries.IncrementPostViews(r.Context(), post.ID); err != nil {
		slog.Warn("get post: view increment failed", "error", err, "post_id", post.ID)
	} else {
		post.ViewsCount++
	}

	view := postView(post)

	tags, err := h.queries.GetPostTags(r.Context(), post.ID)
	if err != nil {
		slog.Warn("get post: tag load failed", "error", err, "post_id", post.ID)
	}
	view.Tags = tags

	if ident := middleware.GetIdentity(r); ident != nil {
		liked, err := h.queries.HasLikedPost(r.Context(), post.ID, ident.UserID)
		if err != nil {
			slog.Warn("get post: like state load failed", "error", err, "post_id", post.ID)
		}
		view.Liked = liked
	}

	WriteSuccess(w, view, nil)
}

// TopLiked handles GET /api/post/top-liked. Served from cache; the ranking
// only needs to be eventually exact.
func (h *Handler) TopLiked(w http.ResponseWriter, r *http.Request) {
	posts, err := h.caches.TopPosts.GetOrFetch(r.Context(), topLikedLimit, func() ([]model.Post, error) {
		return h.queries.TopLikedPosts(r.Context(), topLikedLimit)
	})
	if err != nil {
		slog.Error("top liked: fetch failed", "error", err)
		WriteInternalError(w, "Failed to load top posts")
		return
	}

	WriteSuccess(w, postViews(posts), nil)
}

// updatePostRequest carries a partial post update.
type updatePostRequest struct {
	Title    *string  `json:"title,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Category *string  `json:"category,omitempty"`
	Status   *string  `json:"status,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// UpdatePost handles PATCH /api/post/{id}. Owner or admin only. The prior
// content is snapshotted to the revision history before the update lands.
// Multipart requests may carry a replacement "image" part.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, post.UserID) {
		return
	}

	var req updatePostRequest
	isMultipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if isMultipart {
		if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
			WriteBadRequest(w, "Invalid multipart form", nil)
			return
		}
		if v := r.FormValue("title"); v != "" {
			req.Title = &v
		}
		if v := r.FormValue("content"); v != "" {
			req.Content = &v
		}
		if v := r.FormValue("category"); v != "" {
			req.Category = &v
		}
		if v := r.FormValue("status"); v != "" {
			req.Status = &v
		}
		if v := r.FormValue("tags"); v != "" {
			req.Tags = strings.Split(v, ",")
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	params := store.UpdatePostParams{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Category:  post.Category,
		Status:    post.Status,
		ImagePath: post.ImagePath,
		UpdatedAt: time.Now().UTC(),
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			WriteValidationError(w, map[string]string{"title": "Title cannot be empty"})
			return
		}
		params.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		content := contentPolicy.Sanitize(*req.Content)
		if !model.ValidContent(content) {
			WriteValidationError(w, map[string]string{"content": "Content must be between 1 and 10000 characters"})
			return
		}
		params.Content = content
	}
	if req.Category != nil {
		if !model.ValidCategory(*req.Category) {
			WriteValidationError(w, map[string]string{"category": "Unknown category"})
			return
		}
		params.Category = *req.Category
	}
	if req.Status != nil {
		if !model.ValidPostStatus(*req.Status) {
			WriteValidationError(w, map[string]string{"status": "Unknown status"})
			return
		}
		params.Status = *req.Status
	}

	var oldImage string
	if isMultipart {
		newImage, err := h.formImage(r, "image", imaging.KindPost)
		if err != nil {
			WriteValidationError(w, map[string]string{"image": "Invalid image"})
			return
		}
		if newImage.Valid {
			if post.ImagePath.Valid {
				oldImage = post.ImagePath.String
			}
			params.ImagePath = newImage
		}
	}

	if err := store.UpdatePostWithRevision(r.Context(), h.db, params, ident.UserID); err != nil {
		slog.Error("update post: write failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to update post")
		return
	}

	// The old image is only removed once the new row is committed.
	if oldImage != "" {
		if err := h.images.DeleteImage(oldImage); err != nil {
			slog.Warn("update post: old image removal failed", "error", err, "post_id", post.ID)
		}
	}

	if req.Tags != nil {
		if err := h.queries.SetPostTags(r.Context(), post.ID, normalizeTags(req.Tags)); err != nil {
			slog.Error("update post: tag write failed", "error", err, "post_id", post.ID)
			WriteInternalError(w, "Failed to update post")
			return
		}
	}

	if err := h.caches.TopPosts.Invalidate(r.Context()); err != nil {
		slog.Warn("update post: cache invalidation failed", "error", err)
	}

	updated, err := h.queries.GetPostByID(r.Context(), post.ID)
	if err != nil {
		slog.Error("update post: reload failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to update post")
		return
	}

	slog.Info("post updated", "category", model.EventCategoryPost, "user_id", ident.UserID, "post_id", post.ID)

	view := postView(updated)
	if tags, err := h.queries.GetPostTags(r.Context(), post.ID); err == nil {
		view.Tags = tags
	}
	WriteSuccess(w, view, nil)
}

// DeletePost handles DELETE /api/post/{id}. Owner or admin only.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, post.UserID) {
		return
	}

	if err := h.queries.DeletePost(r.Context(), post.ID); err != nil {
		slog.Error("delete post: write failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to delete post")
		return
	}

	if post.ImagePath.Valid {
		if err := h.images.DeleteImage(post.ImagePath.String); err != nil {
			slog.Warn("delete post: image removal failed", "error", err, "post_id", post.ID)
		}
	}

	if err := h.caches.TopPosts.Invalidate(r.Context()); err != nil {
		slog.Warn("delete post: cache invalidation failed", "error", err)
	}

	slog.Info("post deleted", "category", model.EventCategoryPost, "user_id", ident.UserID, "post_id", post.ID)
	WriteSuccess(w, map[string]string{"message": "Post deleted"}, nil)
}

// LikePost handles PUT /api/post/like/{id}. A repeated like is a 400
// conflict, never a double count.
func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	h.togglePostLike(w, r, store.LikePost, "Post already liked", "post liked", true)
}

// UnlikePost handles PUT /api/post/unlike/{id}. Unliking a post the caller
// never liked is the same class of conflict.
func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	h.togglePostLike(w, r, store.UnlikePost, "Post not liked", "post unliked", false)
}

// togglePostLike runs one of the atomic like set operations and returns the
// refreshed post so the SPA can reconcile its counter.
func (h *Handler) togglePostLike(
	w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, db *sql.DB, postID, userID int64) error,
	conflictMsg, logMsg string, liked bool,
) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := op(r.Context(), h.db, post.ID, ident.UserID); err != nil {
		if errors.Is(err, store.ErrAlreadyLiked) || errors.Is(err, store.ErrNotLiked) {
			WriteConflict(w, conflictMsg)
			return
		}
		slog.Error("post like toggle failed", "error", err, "post_id", post.ID, "user_id", ident.UserID)
		WriteInternalError(w, "Failed to update like")
		return
	}

	if err := h.caches.TopPosts.Invalidate(r.Context()); err != nil {
		slog.Warn("post like: cache invalidation failed", "error", err)
	}

	updated, err := h.queries.GetPostByID(r.Context(), post.ID)
	if err != nil {
		slog.Error("post like: reload failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to update like")
		return
	}

	slog.Info(logMsg, "category", model.EventCategoryPost, "user_id", ident.UserID, "post_id", post.ID)

	view := postView(updated)
	view.Liked = liked
	WriteSuccess(w, view, nil)
}

// ListRevisions handles GET /api/post/{id}/revisions. Owner or admin only;
// the edit history can contain withdrawn content.
func (h *Handler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	post, ok := requireEntityByID(w, r, "post", func(id int64) (model.Post, error) {
		return h.queries.GetPostByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if !requireOwnership(w, ident, post.UserID) {
		return
	}

	revisions, err := h.queries.ListPostRevisions(r.Context(), post.ID)
	if err != nil {
		slog.Error("list revisions: query failed", "error", err, "post_id", post.ID)
		WriteInternalError(w, "Failed to list revisions")
		return
	}

	WriteSuccess(w, revisions, nil)
}
