// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

func TestValidCategory(t *testing.T) {
	for _, c := range PostCategories {
		if !ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = false for allow-listed category", c)
		}
	}
	if ValidCategory("Gossip") {
		t.Error("ValidCategory accepted an unknown category")
	}
	if ValidCategory("technology") {
		t.Error("category match must be case-sensitive")
	}
}

func TestValidPostStatus(t *testing.T) {
	for _, s := range []string{PostStatusDraft, PostStatusPublished, PostStatusArchived} {
		if !ValidPostStatus(s) {
			t.Errorf("ValidPostStatus(%q) = false", s)
		}
	}
	if ValidPostStatus("deleted") {
		t.Error("ValidPostStatus accepted an unknown status")
	}
}

func TestValidContent(t *testing.T) {
	if ValidContent("") {
		t.Error("empty content must be rejected")
	}
	if !ValidContent("x") {
		t.Error("single character content must be accepted")
	}
	if !ValidContent(strings.Repeat("a", MaxContentLength)) {
		t.Error("content at the max bound must be accepted")
	}
	if ValidContent(strings.Repeat("a", MaxContentLength+1)) {
		t.Error("content over the max bound must be rejected")
	}
	// Bounds count characters, so multibyte text inside the character limit
	// passes even when its byte length exceeds it.
	if !ValidContent(strings.Repeat("日", MaxContentLength)) {
		t.Error("multibyte content at the max character bound must be accepted")
	}
	if ValidContent(strings.Repeat("日", MaxContentLength+1)) {
		t.Error("multibyte content over the max character bound must be rejected")
	}
}
