// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash prefix = %q, want $argon2id$", hash[:10])
	}

	ok, err := CheckPassword("Secret1!", hash)
	if err != nil {
		t.Fatalf("CheckPassword() error = %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = CheckPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("CheckPassword() error = %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashIsSalted(t *testing.T) {
	hash1, err := HashPassword("Secret1!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	hash2, err := HashPassword("Secret1!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if _, err := CheckPassword("x", "not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
	if _, err := CheckPassword("x", "$bcrypt$a$b$c$d"); err == nil {
		t.Error("expected error for unsupported hash type")
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if NeedsRehash(hash) {
		t.Error("freshly created hash should not need rehash")
	}
	if !NeedsRehash("$argon2id$v=19$m=4096,t=3,p=1$c2FsdA$aGFzaA") {
		t.Error("hash with old parameters should need rehash")
	}
	if !NeedsRehash("garbage") {
		t.Error("malformed hash should need rehash")
	}
}
