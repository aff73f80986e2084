// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
)

// Manager manages all cache instances and provides a unified interface.
type Manager struct {
	backend Cacher

	TopPosts *TopPostsCache
}

// NewManager creates a cache manager backed by Redis when cfg.RedisURL is
// set, and by an in-memory cache otherwise.
func NewManager(cfg Config) (*Manager, error) {
	backend, err := NewCache(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		slog.Info("cache backend initialized", "type", "redis", "prefix", cfg.Prefix)
	} else {
		slog.Info("cache backend initialized", "type", "memory", "max_size", cfg.MaxSize)
	}

	return &Manager{
		backend:  backend,
		TopPosts: NewTopPostsCache(backend),
	}, nil
}

// Backend returns the underlying cache for ad-hoc use.
func (m *Manager) Backend() Cacher {
	return m.backend
}

// Stats returns backend statistics when the backend supports them.
func (m *Manager) Stats() (Stats, bool) {
	if sp, ok := m.backend.(StatsProvider); ok {
		return sp.Stats(), true
	}
	return Stats{}, false
}

// Close releases the backend's resources.
func (m *Manager) Close() error {
	return m.backend.Close()
}
