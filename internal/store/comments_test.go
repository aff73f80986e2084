// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/util"
)

func createTestComment(t *testing.T, q *Queries, postID, userID int64, parentID sql.NullInt64) model.Comment {
	t.Helper()

	now := time.Now()
	c, err := q.CreateComment(context.Background(), CreateCommentParams{
		PostID:    postID,
		UserID:    userID,
		ParentID:  parentID,
		Content:   "Nice post",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	return c
}

func TestCreateCommentAndReply(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	user := createTestUser(t, q, "commenter@example.com")
	post := createTestPost(t, q, user.ID, "commented-post")

	top := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})
	if top.IsReply() {
		t.Error("top-level comment should not be a reply")
	}

	reply := createTestComment(t, q, post.ID, user.ID, util.NullInt64FromValue(top.ID))
	if !reply.IsReply() {
		t.Error("comment with parent should be a reply")
	}
	if reply.ParentID.Int64 != top.ID {
		t.Errorf("ParentID = %d, want %d", reply.ParentID.Int64, top.ID)
	}

	replies, err := q.ListReplies(ctx, top.ID)
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if len(replies) != 1 || replies[0].ID != reply.ID {
		t.Errorf("ListReplies = %v, want the one reply", replies)
	}
}

func TestListTopLevelComments(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	user := createTestUser(t, q, "commenter@example.com")
	post := createTestPost(t, q, user.ID, "threaded-post")

	first := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})
	second := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})
	createTestComment(t, q, post.ID, user.ID, util.NullInt64FromValue(first.ID))

	comments, err := q.ListTopLevelComments(ctx, ListTopLevelCommentsParams{
		PostID: post.ID, Limit: 10, Offset: 0,
	})
	if err != nil {
		t.Fatalf("ListTopLevelComments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d top-level comments, want 2 (reply excluded)", len(comments))
	}
	if comments[0].ID != first.ID || comments[1].ID != second.ID {
		t.Errorf("comments out of order: %d, %d", comments[0].ID, comments[1].ID)
	}

	topCount, err := q.CountTopLevelComments(ctx, post.ID)
	if err != nil {
		t.Fatalf("CountTopLevelComments: %v", err)
	}
	if topCount != 2 {
		t.Errorf("CountTopLevelComments = %d, want 2", topCount)
	}

	allCount, err := q.CountCommentsByPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("CountCommentsByPost: %v", err)
	}
	if allCount != 3 {
		t.Errorf("CountCommentsByPost = %d, want 3", allCount)
	}
}

func TestCommentLikes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	user := createTestUser(t, q, "commenter@example.com")
	liker := createTestUser(t, q, "liker@example.com")
	post := createTestPost(t, q, user.ID, "liked-comments")
	comment := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})

	if err := LikeComment(ctx, db, comment.ID, liker.ID); err != nil {
		t.Fatalf("LikeComment: %v", err)
	}
	if err := LikeComment(ctx, db, comment.ID, liker.ID); !errors.Is(err, ErrAlreadyLiked) {
		t.Errorf("second like: got %v, want ErrAlreadyLiked", err)
	}

	got, err := q.GetCommentByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("GetCommentByID: %v", err)
	}
	if got.LikesCount != 1 {
		t.Errorf("LikesCount = %d, want 1", got.LikesCount)
	}

	if err := UnlikeComment(ctx, db, comment.ID, liker.ID); err != nil {
		t.Fatalf("UnlikeComment: %v", err)
	}
	if err := UnlikeComment(ctx, db, comment.ID, liker.ID); !errors.Is(err, ErrNotLiked) {
		t.Errorf("second unlike: got %v, want ErrNotLiked", err)
	}

	got, err = q.GetCommentByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("GetCommentByID: %v", err)
	}
	if got.LikesCount != 0 {
		t.Errorf("LikesCount = %d, want 0", got.LikesCount)
	}
}

func TestUpdateCommentContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	user := createTestUser(t, q, "commenter@example.com")
	post := createTestPost(t, q, user.ID, "edited-comments")
	comment := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})

	if err := q.UpdateCommentContent(ctx, comment.ID, "Edited"); err != nil {
		t.Fatalf("UpdateCommentContent: %v", err)
	}

	got, err := q.GetCommentByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("GetCommentByID: %v", err)
	}
	if got.Content != "Edited" {
		t.Errorf("Content = %q, want Edited", got.Content)
	}
}

func TestDeleteCommentCascadesReplies(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	q := New(db)

	user := createTestUser(t, q, "commenter@example.com")
	post := createTestPost(t, q, user.ID, "doomed-thread")

	top := createTestComment(t, q, post.ID, user.ID, sql.NullInt64{})
	reply := createTestComment(t, q, post.ID, user.ID, util.NullInt64FromValue(top.ID))

	if err := q.DeleteComment(ctx, top.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}

	if _, err := q.GetCommentByID(ctx, reply.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("reply should cascade with its parent, got %v", err)
	}
	if err := q.DeleteComment(ctx, top.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete should report sql.ErrNoRows, got %v", err)
	}
}
