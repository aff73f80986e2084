// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail     = "admin@example.com"
	DefaultAdminPassword  = "changeme1"
	DefaultAdminFirstName = "Admin"
	DefaultAdminLastName  = "User"
)

// Seed creates initial data in the database.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	// Check if admin user already exists
	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:         DefaultAdminEmail,
		PasswordHash:  passwordHash,
		FirstName:     DefaultAdminFirstName,
		LastName:      DefaultAdminLastName,
		AuthLevel:     model.AuthLevelAdmin,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created default admin user",
		"id", user.ID,
		"email", user.Email,
		"password", DefaultAdminPassword,
	)

	return nil
}
