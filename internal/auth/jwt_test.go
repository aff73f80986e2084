// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"testing"
	"time"
)

const testSecret = "Kq9!mZx2Vw8#Tn4@Lp7$Jd5%Fh3^Gs6&"

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 24*time.Hour)

	token, expiresAt, err := issuer.Issue(42, "ann@x.com", "basic")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if until := time.Until(expiresAt); until < 23*time.Hour || until > 24*time.Hour {
		t.Errorf("expiry %v not within the 24h window", until)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "ann@x.com" {
		t.Errorf("Email = %q, want ann@x.com", claims.Email)
	}
	if claims.AuthLevel != "basic" {
		t.Errorf("AuthLevel = %q, want basic", claims.AuthLevel)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, -time.Minute)

	token, _, err := issuer.Issue(1, "ann@x.com", "basic")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := issuer.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	other := NewTokenIssuer("X"+testSecret[1:], time.Hour)

	token, _, err := issuer.Issue(1, "ann@x.com", "basic")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestVerifyGarbage(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
	if _, err := issuer.Verify(""); err == nil {
		t.Error("expected error for empty token")
	}
}
