// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs: purging expired
// sessions, clearing stale password reset tokens, and pruning old events.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blogd-app/blogd/internal/store"
)

// EventRetention is how long event log rows are kept before pruning.
const EventRetention = 90 * 24 * time.Hour

// Scheduler handles periodic maintenance tasks.
type Scheduler struct {
	db     *sql.DB
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:     db,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the maintenance jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	// Hourly: drop sessions past their expiry and stale reset tokens.
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.PurgeExpiredSessions(context.Background()); err != nil {
			s.logger.Error("failed to purge expired sessions", "error", err)
		}
		if err := s.ClearStaleResetTokens(context.Background()); err != nil {
			s.logger.Error("failed to clear stale reset tokens", "error", err)
		}
	}); err != nil {
		return err
	}

	// Daily at 03:10: prune old event log rows.
	if _, err := s.cron.AddFunc("10 3 * * *", func() {
		if err := s.PruneOldEvents(context.Background()); err != nil {
			s.logger.Error("failed to prune old events", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// PurgeExpiredSessions deletes sessions whose expiry has passed.
func (s *Scheduler) PurgeExpiredSessions(ctx context.Context) error {
	queries := store.New(s.db)

	deleted, err := queries.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("purged expired sessions", "count", deleted)
	}
	return nil
}

// ClearStaleResetTokens removes password reset tokens past their expiry.
func (s *Scheduler) ClearStaleResetTokens(ctx context.Context) error {
	queries := store.New(s.db)

	cleared, err := queries.ClearStaleResetTokens(ctx, time.Now())
	if err != nil {
		return err
	}
	if cleared > 0 {
		s.logger.Info("cleared stale reset tokens", "count", cleared)
	}
	return nil
}

// PruneOldEvents deletes event log rows older than the retention window.
func (s *Scheduler) PruneOldEvents(ctx context.Context) error {
	queries := store.New(s.db)

	cutoff := time.Now().Add(-EventRetention)
	pruned, err := queries.PruneEventsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 {
		s.logger.Info("pruned old events", "count", pruned, "cutoff", cutoff)
	}
	return nil
}
