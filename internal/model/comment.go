// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Comment represents a reply to a post, or to another comment when ParentID
// is set. Threads are derived by querying parent_id; there is no denormalized
// reply list to keep in sync.
type Comment struct {
	ID         int64         `json:"id"`
	PostID     int64         `json:"post_id"`
	UserID     int64         `json:"user_id"`
	ParentID   sql.NullInt64 `json:"parent_id,omitempty"`
	Content    string        `json:"content"`
	LikesCount int64         `json:"likes"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IsReply returns true if the comment is a threaded reply.
func (c *Comment) IsReply() bool {
	return c.ParentID.Valid
}
