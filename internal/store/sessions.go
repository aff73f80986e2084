// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

const sessionColumns = `id, token_hash, user_id, user_agent, ip, expires_at, created_at`

func scanSession(row rowScanner) (model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID, &s.TokenHash, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt,
	)
	return s, err
}

// CreateSessionParams holds the fields for recording an issued token.
type CreateSessionParams struct {
	TokenHash string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateSession records a freshly issued bearer token.
func (q *Queries) CreateSession(ctx context.Context, p CreateSessionParams) (model.Session, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, user_agent, ip, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+sessionColumns,
		p.TokenHash, p.UserID, p.UserAgent, p.IP, p.ExpiresAt, p.CreatedAt,
	)
	return scanSession(row)
}

// GetSessionByTokenHash fetches the session recorded for a token hash.
func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, tokenHash)
	return scanSession(row)
}

// DeleteSessionByTokenHash removes the session for a presented token.
// Returns sql.ErrNoRows when no session matches.
func (q *Queries) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
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

// DeleteSessionsByUser invalidates every session of a user, e.g. after a
// password reset.
func (q *Queries) DeleteSessionsByUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredSessions purges sessions past their expiry. Called by the
// scheduler.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActiveSessions returns the number of unexpired sessions.
func (q *Queries) CountActiveSessions(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE expires_at >= ?`, now).Scan(&count)
	return count, err
}
