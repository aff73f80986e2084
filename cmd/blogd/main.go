// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Blogd is the backend server for a social blogging platform: accounts,
// posts, comments, likes, and the REST API the SPA talks to.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/cache"
	"github.com/blogd-app/blogd/internal/config"
	"github.com/blogd-app/blogd/internal/handler"
	"github.com/blogd-app/blogd/internal/handler/api"
	"github.com/blogd-app/blogd/internal/imaging"
	"github.com/blogd-app/blogd/internal/logging"
	"github.com/blogd-app/blogd/internal/mailer"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/scheduler"
	"github.com/blogd-app/blogd/internal/store"
	"github.com/blogd-app/blogd/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Blogd - Social blogging platform backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_JWT_SECRET       Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_DB_PATH          SQLite database path (default: ./data/blogd.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_UPLOADS_DIR      Processed upload directory (default: ./uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_REDIS_URL        Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_EMAIL_FROM       SES sender address; empty logs mail instead of sending\n")
		_, _ = fmt.Fprintf(os.Stderr, "  BLOGD_VERIFY_EMAIL     Require email verification on signup (default: false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("blogd %s (commit: %s, built: %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data and upload directories exist
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to mirror WARN and ERROR records into the events table
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		slog.Info("database seeded")
	}

	// Cache layer: Redis when configured, in-process memory otherwise
	cacheConfig := cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}
	caches, err := cache.NewManager(cacheConfig)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() {
		if err := caches.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	m, err := mailer.New(mailer.Config{
		From:    cfg.EmailFrom,
		Region:  cfg.SESRegion,
		SiteURL: cfg.SiteURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing mailer: %w", err)
	}
	slog.Info("mailer initialized", "enabled", m.Enabled(), "region", cfg.SESRegion)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.SessionHours)*time.Hour)
	images := imaging.NewProcessor(cfg.UploadsDir)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	slog.Info("login protection initialized",
		"ip_rate_limit", "0.5 req/s",
		"max_failed_attempts", 5,
		"lockout_duration", "15m",
	)

	// Background maintenance: session purge, stale token cleanup, event pruning
	sched := scheduler.New(db, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	apiHandler := api.NewHandler(db, cfg, issuer, caches, m, images, loginProtection)
	healthHandler := handler.NewHealthHandler(db, cfg.UploadsDir)

	// API rate limiter: 10 requests per second with burst of 20 per IP
	apiRateLimiter := middleware.NewGlobalRateLimiter(10.0, 20)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	// Health checks (public, details for authenticated callers)
	optionalAuth := middleware.OptionalBearerAuth(db, issuer)
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/health", healthHandler.Health)
		r.Get("/health/live", healthHandler.Liveness)
		r.Get("/health/ready", healthHandler.Readiness)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Mount("/", apiHandler.Routes())
	})

	// Processed uploads (avatars, covers, post images)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.UploadsDir))))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
