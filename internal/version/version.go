// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

// Build-time values injected via ldflags.
var (
	Version   = "dev" // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit = ""    // Short git commit hash (e.g., "abc1234")
	BuildTime = ""    // Build timestamp in RFC3339 format
)

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string // Short git commit hash (e.g., "abc1234")
	BuildTime string // Build timestamp in RFC3339 format
}

// Get returns the build-time version information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
}
