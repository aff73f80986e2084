// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

// Like guard sentinel errors. A like is a set membership operation; violating
// the membership rule is reported to callers as a conflict, not silently
// absorbed.
var (
	ErrAlreadyLiked = errors.New("already liked")
	ErrNotLiked     = errors.New("not liked")
)

const postColumns = `id, user_id, title, slug, content, category, status,
	likes_count, views_count, image_path, created_at, updated_at`

func scanPost(row rowScanner) (model.Post, error) {
	var p model.Post
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Slug, &p.Content, &p.Category, &p.Status,
		&p.LikesCount, &p.ViewsCount, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func collectPosts(rows *sql.Rows) ([]model.Post, error) {
	defer rows.Close()
	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePostParams holds the fields for creating a post.
type CreatePostParams struct {
	UserID    int64
	Title     string
	Slug      string
	Content   string
	Category  string
	Status    string
	ImagePath sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreatePost inserts a new post and returns the stored row.
func (q *Queries) CreatePost(ctx context.Context, p CreatePostParams) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO posts (
			user_id, title, slug, content, category, status, image_path,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+postColumns,
		p.UserID, p.Title, p.Slug, p.Content, p.Category, p.Status, p.ImagePath,
		p.CreatedAt, p.UpdatedAt,
	)
	return scanPost(row)
}

// GetPostByID fetches a post by primary key.
func (q *Queries) GetPostByID(ctx context.Context, id int64) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// GetPostBySlug fetches a post by its unique slug.
func (q *Queries) GetPostBySlug(ctx context.Context, slug string) (model.Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// SlugExists reports whether a slug is already taken.
func (q *Queries) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE slug = ?)`, slug).Scan(&exists)
	return exists, err
}

// ListPostsParams holds pagination for the main feed.
type ListPostsParams struct {
	Limit  int64
	Offset int64
}

// ListPosts returns published posts ordered newest first. Drafts and
// archived posts never reach the public feed.
func (q *Queries) ListPosts(ctx context.Context, p ListPostsParams) ([]model.Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		model.PostStatusPublished, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// CountPosts returns the number of published posts.
func (q *Queries) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE status = ?`,
		model.PostStatusPublished).Scan(&count)
	return count, err
}

// ListPostsByUserParams holds pagination for one author's posts.
// PublishedOnly hides drafts and archived posts; listings shown to anyone
// other than the author (or an admin) set it.
type ListPostsByUserParams struct {
	UserID        int64
	Limit         int64
	Offset        int64
	PublishedOnly bool
}

// ListPostsByUser returns one author's posts, newest first.
func (q *Queries) ListPostsByUser(ctx context.Context, p ListPostsByUserParams) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = ?`
	args := []any{p.UserID}
	if p.PublishedOnly {
		query += ` AND status = ?`
		args = append(args, model.PostStatusPublished)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// CountPostsByUser returns the number of posts by one author, optionally
// restricted to published ones.
func (q *Queries) CountPostsByUser(ctx context.Context, userID int64, publishedOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM posts WHERE user_id = ?`
	args := []any{userID}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, model.PostStatusPublished)
	}
	var count int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// TopLikedPosts returns the most liked published posts. Posts without likes
// rank after liked ones by recency, so the result backfills with the newest
// published posts when fewer than limit posts have likes.
func (q *Queries) TopLikedPosts(ctx context.Context, limit int64) ([]model.Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE status = ?
		ORDER BY likes_count DESC, created_at DESC, id DESC
		LIMIT ?`,
		model.PostStatusPublished, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// UpdatePostParams holds the full mutable field set. Handlers merge partial
// updates into the current row before calling UpdatePost.
type UpdatePostParams struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	Status    string
	ImagePath sql.NullString
	UpdatedAt time.Time
}

// UpdatePost writes the merged fields back to the row.
func (q *Queries) UpdatePost(ctx context.Context, p UpdatePostParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, content = ?, category = ?, status = ?, image_path = ?,
			updated_at = ?
		WHERE id = ?`,
		p.Title, p.Content, p.Category, p.Status, p.ImagePath, p.UpdatedAt, p.ID,
	)
	return err
}

// DeletePost removes a post. Likes, tags, revisions, and comments cascade.
func (q *Queries) DeletePost(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementPostViews bumps the view counter. Single statement, so concurrent
// readers never lose an increment.
func (q *Queries) IncrementPostViews(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE posts SET views_count = views_count + 1 WHERE id = ?`, id)
	return err
}

// HasLikedPost reports whether the user has liked the post.
func (q *Queries) HasLikedPost(ctx context.Context, postID, userID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM post_likes WHERE post_id = ? AND user_id = ?)`,
		postID, userID).Scan(&exists)
	return exists, err
}

// SetPostTags replaces the tag set for a post.
func (q *Queries) SetPostTags(ctx context.Context, postID int64, tags []string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			postID, tag); err != nil {
			return err
		}
	}
	return nil
}

// GetPostTags returns the tags of a post in lexical order.
func (q *Queries) GetPostTags(ctx context.Context, postID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT tag FROM post_tags WHERE post_id = ? ORDER BY tag`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ListPostRevisions returns the edit history of a post, newest first.
func (q *Queries) ListPostRevisions(ctx context.Context, postID int64) ([]model.PostRevision, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, post_id, content, edited_by, created_at
		FROM post_revisions
		WHERE post_id = ?
		ORDER BY created_at DESC, id DESC`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []model.PostRevision
	for rows.Next() {
		var r model.PostRevision
		if err := rows.Scan(&r.ID, &r.PostID, &r.Content, &r.EditedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// LikePost records a like inside one transaction: set membership first, then
// the counter. A duplicate like leaves the row untouched and returns
// ErrAlreadyLiked, so the counter can never drift from the membership set.
func LikePost(ctx context.Context, db *sql.DB, postID, userID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO post_likes (post_id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		postID, userID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("inserting like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyLiked
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET likes_count = likes_count + 1 WHERE id = ?`, postID); err != nil {
		return fmt.Errorf("updating likes count: %w", err)
	}

	return tx.Commit()
}

// UnlikePost removes a like inside one transaction. Removing a like that was
// never recorded returns ErrNotLiked without touching the counter, and the
// counter is clamped so it never goes below zero.
func UnlikePost(ctx context.Context, db *sql.DB, postID, userID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return fmt.Errorf("deleting like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotLiked
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET likes_count = MAX(likes_count - 1, 0) WHERE id = ?`, postID); err != nil {
		return fmt.Errorf("updating likes count: %w", err)
	}

	return tx.Commit()
}

// UpdatePostWithRevision snapshots the current content to post_revisions and
// applies the update, both inside one transaction.
func UpdatePostWithRevision(ctx context.Context, db *sql.DB, p UpdatePostParams, editedBy int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	if err := tx.QueryRowContext(ctx,
		`SELECT content FROM posts WHERE id = ?`, p.ID).Scan(&current); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO post_revisions (post_id, content, edited_by, created_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, current, editedBy, time.Now(),
	); err != nil {
		return fmt.Errorf("writing revision: %w", err)
	}

	if err := New(tx).UpdatePost(ctx, p); err != nil {
		return fmt.Errorf("updating post: %w", err)
	}

	return tx.Commit()
}
