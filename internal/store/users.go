// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

// userColumns is the canonical select list for users. The token hash columns
// are intentionally excluded; they are only reachable through the dedicated
// token queries.
const userColumns = `id, email, password_hash, first_name, last_name, birth_date,
	location, occupation, auth_level, status, avatar_path, cover_path,
	email_verified, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.BirthDate,
		&u.Location, &u.Occupation, &u.AuthLevel, &u.Status, &u.AvatarPath, &u.CoverPath,
		&u.EmailVerified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams holds the fields for creating a user.
type CreateUserParams struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	BirthDate     sql.NullTime
	Location      string
	Occupation    string
	AuthLevel     string
	Status        string
	AvatarPath    sql.NullString
	CoverPath     sql.NullString
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateUser inserts a new user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (
			email, password_hash, first_name, last_name, birth_date,
			location, occupation, auth_level, status, avatar_path, cover_path,
			email_verified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		p.Email, p.PasswordHash, p.FirstName, p.LastName, p.BirthDate,
		p.Location, p.Occupation, p.AuthLevel, p.Status, p.AvatarPath, p.CoverPath,
		p.EmailVerified, p.CreatedAt, p.UpdatedAt,
	)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by email. Callers normalize the address first.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsersParams holds pagination for the member directory.
type ListUsersParams struct {
	Limit  int64
	Offset int64
}

// ListUsers returns users ordered by signup date, newest first.
func (q *Queries) ListUsers(ctx context.Context, p ListUsersParams) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// UpdateUserProfileParams holds the full profile field set. Handlers merge
// partial updates into the current row before calling UpdateUserProfile.
type UpdateUserProfileParams struct {
	ID         int64
	Email      string
	FirstName  string
	LastName   string
	BirthDate  sql.NullTime
	Location   string
	Occupation string
	UpdatedAt  time.Time
}

// UpdateUserProfile writes the merged profile fields back to the row.
func (q *Queries) UpdateUserProfile(ctx context.Context, p UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, birth_date = ?,
			location = ?, occupation = ?, updated_at = ?
		WHERE id = ?`,
		p.Email, p.FirstName, p.LastName, p.BirthDate,
		p.Location, p.Occupation, p.UpdatedAt, p.ID,
	)
	return err
}

// UpdateUserStatus sets the free-text status line.
func (q *Queries) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	return err
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), id)
	return err
}

// UpdateUserAvatar sets or clears the avatar image path.
func (q *Queries) UpdateUserAvatar(ctx context.Context, id int64, path sql.NullString) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET avatar_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now(), id)
	return err
}

// UpdateUserCover sets or clears the cover image path.
func (q *Queries) UpdateUserCover(ctx context.Context, id int64, path sql.NullString) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET cover_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now(), id)
	return err
}

// SetUserLastLogin records a successful login time.
func (q *Queries) SetUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	return err
}

// SetVerifyToken stores the hash of an email verification token.
func (q *Queries) SetVerifyToken(ctx context.Context, id int64, tokenHash string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET verify_token_hash = ? WHERE id = ?`, tokenHash, id)
	return err
}

// GetUserByVerifyToken resolves a verification token hash to its user.
func (q *Queries) GetUserByVerifyToken(ctx context.Context, tokenHash string) (model.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verify_token_hash = ?`, tokenHash)
	return scanUser(row)
}

// VerifyUserEmail marks the email verified and consumes the token.
func (q *Queries) VerifyUserEmail(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = 1, verify_token_hash = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now(), id)
	return err
}

// SetResetTokenParams holds a password reset token hash and its expiry.
type SetResetTokenParams struct {
	ID        int64
	TokenHash string
	ExpiresAt time.Time
}

// SetResetToken stores a single-use password reset token. Issuing a new token
// replaces any outstanding one.
func (q *Queries) SetResetToken(ctx context.Context, p SetResetTokenParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = ?, reset_expires_at = ? WHERE id = ?`,
		p.TokenHash, p.ExpiresAt, p.ID)
	return err
}

// GetUserByResetToken resolves a reset token hash. Expiry is checked by the
// caller so an expired token can be reported distinctly.
func (q *Queries) GetUserByResetToken(ctx context.Context, tokenHash string) (model.User, sql.NullTime, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`, reset_expires_at FROM users WHERE reset_token_hash = ?`,
		tokenHash)

	var u model.User
	var expiresAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.BirthDate,
		&u.Location, &u.Occupation, &u.AuthLevel, &u.Status, &u.AvatarPath, &u.CoverPath,
		&u.EmailVerified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
		&expiresAt,
	)
	return u, expiresAt, err
}

// ClearResetToken invalidates any outstanding reset token.
func (q *Queries) ClearResetToken(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL WHERE id = ?`, id)
	return err
}

// ClearStaleResetTokens drops reset tokens whose expiry has passed.
// Called by the scheduler.
func (q *Queries) ClearStaleResetTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token_hash = NULL, reset_expires_at = NULL
		WHERE reset_expires_at IS NOT NULL AND reset_expires_at < ?`,
		before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteUser removes a user. Posts, comments, likes, and sessions cascade
// through foreign keys.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
