// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/blogd-app/blogd/internal/model"
)

// CreateEventParams holds the fields for recording an event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    int64 // zero means no associated user
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent inserts a structured event row.
func (q *Queries) CreateEvent(ctx context.Context, p CreateEventParams) error {
	metadata := p.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	var userID any
	if p.UserID != 0 {
		userID = p.UserID
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO events (level, category, message, user_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Level, p.Category, p.Message, userID, metadata, p.CreatedAt,
	)
	return err
}

// ListEventsParams paginates the event log.
type ListEventsParams struct {
	Limit  int64
	Offset int64
}

// ListEvents returns events newest first.
func (q *Queries) ListEvents(ctx context.Context, p ListEventsParams) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, level, category, message, user_id, metadata, created_at
		FROM events
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID,
			&e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneEventsBefore drops events older than the cutoff. Called by the
// scheduler to keep the log bounded.
func (q *Queries) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
