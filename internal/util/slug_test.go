// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"mixed case", "My First Post", "my-first-post"},
		{"punctuation", "What's new, in Go 1.25?", "whats-new-in-go-125"},
		{"accents", "Café au Lait", "cafe-au-lait"},
		{"cyrillic transliteration", "Привет мир", "privet-mir"},
		{"multiple spaces", "a   b", "a-b"},
		{"leading and trailing junk", "  --Hi--  ", "hi"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	got := UniqueSlug("hello-world")

	if !strings.HasPrefix(got, "hello-world-") {
		t.Errorf("UniqueSlug() = %q, want hello-world- prefix", got)
	}
	if !IsValidSlug(got) {
		t.Errorf("UniqueSlug() = %q is not a valid slug", got)
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"hello-world", true},
		{"a", true},
		{"post-123", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--hyphen", false},
		{"Upper", false},
		{"with space", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}
