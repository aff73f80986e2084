// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/blogd-app/blogd/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "blogd-scheduler-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	return db
}

func testScheduler(t *testing.T) (*Scheduler, *sql.DB) {
	t.Helper()
	db := testDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, logger), db
}

func createUser(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	now := time.Now()
	user, err := store.New(db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        "jobs@example.com",
		PasswordHash: "hash",
		FirstName:    "Sched",
		LastName:     "User",
		AuthLevel:    "basic",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user.ID
}

func TestPurgeExpiredSessions(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)
	userID := createUser(t, db)

	now := time.Now()
	mustCreateSession := func(hash string, expiresAt time.Time) {
		t.Helper()
		if _, err := q.CreateSession(ctx, store.CreateSessionParams{
			TokenHash: hash,
			UserID:    userID,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	mustCreateSession("expired", now.Add(-time.Hour))
	mustCreateSession("active", now.Add(time.Hour))

	if err := s.PurgeExpiredSessions(ctx); err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}

	if _, err := q.GetSessionByTokenHash(ctx, "expired"); err != sql.ErrNoRows {
		t.Errorf("expired session should be gone, err = %v", err)
	}
	if _, err := q.GetSessionByTokenHash(ctx, "active"); err != nil {
		t.Errorf("active session should survive: %v", err)
	}
}

func TestClearStaleResetTokens(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)
	userID := createUser(t, db)

	if err := q.SetResetToken(ctx, store.SetResetTokenParams{
		ID:        userID,
		TokenHash: "stale-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	if err := s.ClearStaleResetTokens(ctx); err != nil {
		t.Fatalf("ClearStaleResetTokens: %v", err)
	}

	if _, _, err := q.GetUserByResetToken(ctx, "stale-token"); err != sql.ErrNoRows {
		t.Errorf("stale token should be cleared, err = %v", err)
	}
}

func TestPruneOldEvents(t *testing.T) {
	s, db := testScheduler(t)
	ctx := context.Background()
	q := store.New(db)

	old := time.Now().Add(-EventRetention - 24*time.Hour)
	if err := q.CreateEvent(ctx, store.CreateEventParams{
		Level: "info", Category: "system", Message: "ancient", CreatedAt: old,
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := q.CreateEvent(ctx, store.CreateEventParams{
		Level: "info", Category: "system", Message: "recent", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if err := s.PruneOldEvents(ctx); err != nil {
		t.Fatalf("PruneOldEvents: %v", err)
	}

	events, err := q.ListEvents(ctx, store.ListEventsParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Message != "recent" {
		t.Errorf("events = %+v, want only the recent one", events)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, _ := testScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
