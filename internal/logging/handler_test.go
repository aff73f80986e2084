package logging

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
)

// testDB creates an in-memory database with just the events table. The
// handler only ever writes events, so the full migration set is not needed.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			level      TEXT NOT NULL,
			category   TEXT NOT NULL,
			message    TEXT NOT NULL,
			user_id    INTEGER,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func listEvents(t *testing.T, db *sql.DB) []model.Event {
	t.Helper()
	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{
		Limit:  10,
		Offset: 0,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func TestEventLogHandlerErrorLevel(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Error("database connection failed", "host", "localhost", "port", 5432)

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	event := events[0]
	if event.Level != model.EventLevelError {
		t.Errorf("level = %q, want %q", event.Level, model.EventLevelError)
	}
	if event.Message != "database connection failed" {
		t.Errorf("message = %q", event.Message)
	}
	if event.Metadata == "{}" {
		t.Errorf("metadata should carry the log attributes, got %q", event.Metadata)
	}
}

func TestEventLogHandlerInfoNotMirrored(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Info("routine startup message")

	if events := listEvents(t, db); len(events) != 0 {
		t.Errorf("info logs must not reach the event log, got %d events", len(events))
	}
}

func TestEventLogHandlerCategoryAttr(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("suspicious activity", "category", model.EventCategoryAuth, "user_id", int64(42))

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	event := events[0]
	if event.Category != model.EventCategoryAuth {
		t.Errorf("category = %q, want %q", event.Category, model.EventCategoryAuth)
	}
	if !event.UserID.Valid || event.UserID.Int64 != 42 {
		t.Errorf("user_id = %+v, want 42", event.UserID)
	}
}

func TestEventLogHandlerCategoryInference(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"login failed for account", model.EventCategoryAuth},
		{"post slug collision resolved", model.EventCategoryPost},
		{"comment removed by moderator", model.EventCategoryComment},
		{"user profile incomplete", model.EventCategoryUser},
		{"disk space low", model.EventCategorySystem},
	}

	db := testDB(t)
	handler := NewEventLogHandler(discardHandler{}, db)

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			var r slog.Record
			r.Message = tt.message
			if got := handler.extractCategory(r); got != tt.want {
				t.Errorf("extractCategory(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestEventLogHandlerCustomLevel(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, db, slog.LevelInfo))
	logger.Info("tracked info message")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Level != model.EventLevelInfo {
		t.Errorf("level = %q, want info", events[0].Level)
	}
}

func TestEscapeJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`quo"te`, `quo\"te`},
		{"line\nbreak", `line\nbreak`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeJSON(tt.in); got != tt.want {
			t.Errorf("escapeJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
