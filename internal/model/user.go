// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including User, Post, Comment, and Session structures.
package model

import (
	"database/sql"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

// Auth levels.
const (
	AuthLevelBasic = "basic"
	AuthLevelAdmin = "admin"
)

// User represents a registered member.
type User struct {
	ID            int64          `json:"id"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"-"` // Never expose in JSON
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	BirthDate     sql.NullTime   `json:"birth_date,omitempty"`
	Location      string         `json:"location,omitempty"`
	Occupation    string         `json:"occupation,omitempty"`
	AuthLevel     string         `json:"auth_level"`
	Status        string         `json:"status,omitempty"`
	AvatarPath    sql.NullString `json:"-"`
	CoverPath     sql.NullString `json:"-"`
	EmailVerified bool           `json:"email_verified"`
	LastLoginAt   sql.NullTime   `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsAdmin returns true if the user has the admin auth level.
func (u *User) IsAdmin() bool {
	return u.AuthLevel == AuthLevelAdmin
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address parses as a single RFC 5322 address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidPassword checks the password policy: at least MinPasswordLength
// characters with at least one letter and one digit.
func ValidPassword(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
