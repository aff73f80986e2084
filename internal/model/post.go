// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
	"unicode/utf8"
)

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// Post categories. Creation is validated against this allow-list.
var PostCategories = []string{
	"Technology",
	"Lifestyle",
	"Travel",
	"Food",
	"Business",
	"Health",
	"Entertainment",
	"Sports",
	"Science",
	"Other",
}

// Content length bounds shared by posts and comments.
const (
	MinContentLength = 1
	MaxContentLength = 10000
)

// Post represents a blog post.
type Post struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	Title      string         `json:"title"`
	Slug       string         `json:"slug"`
	Content    string         `json:"content"`
	Category   string         `json:"category"`
	Status     string         `json:"status"`
	LikesCount int64          `json:"likes"`
	ViewsCount int64          `json:"views"`
	ImagePath  sql.NullString `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsPublished returns true if the post is published.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostRevision is an append-only snapshot of post content taken before an edit.
type PostRevision struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Content   string    `json:"content"`
	EditedBy  int64     `json:"edited_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidCategory checks a category against the allow-list.
func ValidCategory(category string) bool {
	for _, c := range PostCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidPostStatus checks a post status value.
func ValidPostStatus(status string) bool {
	return status == PostStatusDraft || status == PostStatusPublished || status == PostStatusArchived
}

// ValidContent checks the shared content length bounds. Bounds are in
// characters, not bytes, so multibyte text is not penalized.
func ValidContent(content string) bool {
	n := utf8.RuneCountInString(content)
	return n >= MinContentLength && n <= MaxContentLength
}
