// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

const commentColumns = `id, post_id, user_id, parent_id, content, likes_count,
	created_at, updated_at`

func scanComment(row rowScanner) (model.Comment, error) {
	var c model.Comment
	err := row.Scan(
		&c.ID, &c.PostID, &c.UserID, &c.ParentID, &c.Content, &c.LikesCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func collectComments(rows *sql.Rows) ([]model.Comment, error) {
	defer rows.Close()
	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateCommentParams holds the fields for creating a comment. ParentID set
// makes the comment a threaded reply.
type CreateCommentParams struct {
	PostID    int64
	UserID    int64
	ParentID  sql.NullInt64
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateComment inserts a new comment and returns the stored row.
func (q *Queries) CreateComment(ctx context.Context, p CreateCommentParams) (model.Comment, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, user_id, parent_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+commentColumns,
		p.PostID, p.UserID, p.ParentID, p.Content, p.CreatedAt, p.UpdatedAt,
	)
	return scanComment(row)
}

// GetCommentByID fetches a comment by primary key.
func (q *Queries) GetCommentByID(ctx context.Context, id int64) (model.Comment, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	return scanComment(row)
}

// ListTopLevelCommentsParams paginates the top-level comments of a post.
// Replies are fetched separately via ListReplies.
type ListTopLevelCommentsParams struct {
	PostID int64
	Limit  int64
	Offset int64
}

// ListTopLevelComments returns a post's top-level comments, oldest first.
func (q *Queries) ListTopLevelComments(ctx context.Context, p ListTopLevelCommentsParams) ([]model.Comment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE post_id = ? AND parent_id IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?`,
		p.PostID, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectComments(rows)
}

// CountTopLevelComments returns the number of top-level comments on a post.
func (q *Queries) CountTopLevelComments(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = ? AND parent_id IS NULL`,
		postID).Scan(&count)
	return count, err
}

// CountCommentsByPost returns the total comment count for a post, replies
// included.
func (q *Queries) CountCommentsByPost(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = ?`, postID).Scan(&count)
	return count, err
}

// ListReplies returns the direct replies to a comment, oldest first.
func (q *Queries) ListReplies(ctx context.Context, parentID int64) ([]model.Comment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE parent_id = ?
		ORDER BY created_at ASC, id ASC`,
		parentID,
	)
	if err != nil {
		return nil, err
	}
	return collectComments(rows)
}

// UpdateCommentContent replaces a comment's content.
func (q *Queries) UpdateCommentContent(ctx context.Context, id int64, content string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now(), id)
	return err
}

// DeleteComment removes a comment. Replies and likes cascade.
func (q *Queries) DeleteComment(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
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

// HasLikedComment reports whether the user has liked the comment.
func (q *Queries) HasLikedComment(ctx context.Context, commentID, userID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM comment_likes WHERE comment_id = ? AND user_id = ?)`,
		commentID, userID).Scan(&exists)
	return exists, err
}

// LikeComment records a comment like with the same membership-then-counter
// transaction as LikePost.
func LikeComment(ctx context.Context, db *sql.DB, commentID, userID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO comment_likes (comment_id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		commentID, userID, time.Now(),
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
		`UPDATE comments SET likes_count = likes_count + 1 WHERE id = ?`, commentID); err != nil {
		return fmt.Errorf("updating likes count: %w", err)
	}

	return tx.Commit()
}

// UnlikeComment removes a comment like, mirroring UnlikePost's guard and
// zero clamp.
func UnlikeComment(ctx context.Context, db *sql.DB, commentID, userID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM comment_likes WHERE comment_id = ? AND user_id = ?`, commentID, userID)
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
		`UPDATE comments SET likes_count = MAX(likes_count - 1, 0) WHERE id = ?`, commentID); err != nil {
		return fmt.Errorf("updating likes count: %w", err)
	}

	return tx.Commit()
}
