// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

// TopPostsTTL bounds how stale the most-liked ranking may get. The ranking
// is recomputed at most once per TTL regardless of like traffic.
const TopPostsTTL = time.Minute

const topPostsKeyPrefix = "top_posts:"

// PrefixDeleter is an optional interface for caches that can remove
// all keys under a prefix without a full clear.
type PrefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// TopPostsCache caches the most-liked post rankings, keyed by requested size.
type TopPostsCache struct {
	backend Cacher
	typed   *TypedCache[[]model.Post]
}

// NewTopPostsCache creates a top-posts cache on the given backend.
func NewTopPostsCache(backend Cacher) *TopPostsCache {
	return &TopPostsCache{
		backend: backend,
		typed:   NewTypedCache[[]model.Post](backend, TopPostsTTL),
	}
}

func topPostsKey(limit int64) string {
	return fmt.Sprintf("%s%d", topPostsKeyPrefix, limit)
}

// Get returns the cached ranking for the given size, if present.
func (c *TopPostsCache) Get(ctx context.Context, limit int64) ([]model.Post, bool) {
	posts, ok := c.typed.Get(ctx, topPostsKey(limit))
	if !ok {
		return nil, false
	}
	return *posts, true
}

// Set stores a ranking for the given size.
func (c *TopPostsCache) Set(ctx context.Context, limit int64, posts []model.Post) error {
	return c.typed.Set(ctx, topPostsKey(limit), &posts)
}

// GetOrFetch returns the cached ranking or computes and stores it via fetch.
func (c *TopPostsCache) GetOrFetch(ctx context.Context, limit int64, fetch func() ([]model.Post, error)) ([]model.Post, error) {
	posts, err := c.typed.GetOrSet(ctx, topPostsKey(limit), func() (*[]model.Post, error) {
		fetched, err := fetch()
		if err != nil {
			return nil, err
		}
		return &fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return *posts, nil
}

// Invalidate drops all cached rankings. Call after any change that can
// reorder the ranking: likes, unlikes, post creation or deletion.
func (c *TopPostsCache) Invalidate(ctx context.Context) error {
	if pd, ok := c.backend.(PrefixDeleter); ok {
		return pd.DeleteByPrefix(ctx, topPostsKeyPrefix)
	}
	return c.backend.Clear(ctx)
}
