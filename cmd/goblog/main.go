// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
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

	"github.com/olegiv/goblog/internal/blob"
	"github.com/olegiv/goblog/internal/config"
	"github.com/olegiv/goblog/internal/geoip"
	"github.com/olegiv/goblog/internal/handler"
	"github.com/olegiv/goblog/internal/logging"
	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/msauth"
	"github.com/olegiv/goblog/internal/render"
	"github.com/olegiv/goblog/internal/service"
	"github.com/olegiv/goblog/internal/session"
	"github.com/olegiv/goblog/internal/store"
	"github.com/olegiv/goblog/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "GoBlog - a small authenticated blog\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_SECRET_KEY        Session/CSRF key (required in production, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_DB_PATH           SQLite database path (default: ./data/goblog.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_SQL_SERVER        MySQL server host; switches storage off SQLite\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_CLIENT_ID         OAuth2 client id for Microsoft sign-in (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GOBLOG_EXTERNAL_URL      Public base URL, used for the OAuth redirect URI\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nFor more information, see: https://github.com/olegiv/goblog\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("goblog %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
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

	// Ensure the data directory exists; the session store lives
	// alongside the content database.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Open the content database: embedded SQLite by default, MySQL when
	// an external SQL server is configured.
	var db *sql.DB
	dialect := "sqlite3"
	if cfg.UseMySQL() {
		slog.Info("connecting to MySQL", "server", cfg.SQLServer, "database", cfg.SQLDatabase)
		db, err = store.NewMySQL(cfg.SQLConnString())
		dialect = "mysql"
	} else {
		slog.Info("initializing database", "path", cfg.DBPath)
		db, err = store.NewDB(cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db, dialect); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also persist WARN and ERROR logs to the events table
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	seededID, err := store.Seed(ctx, db, cfg.DoSeed)
	if err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	// Session store is always a local SQLite file, independent of the
	// content database backend.
	sessionManager, sessionDB, err := session.New(filepath.Join(dbDir, "sessions.db"), cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("initializing session store: %w", err)
	}
	defer func() { _ = sessionDB.Close() }()

	// GeoIP enrichment for auth audit events (optional)
	var geo *geoip.Lookup
	if cfg.GeoIPEnabled() {
		geo, err = geoip.NewLookup(cfg.GeoIPDBPath)
		if err != nil {
			slog.Warn("GeoIP disabled", "error", err)
		} else {
			defer func() { _ = geo.Close() }()
			slog.Info("GeoIP lookup enabled", "path", cfg.GeoIPDBPath)
		}
	}

	eventService := service.NewEventService(db, geo)

	if seededID != 0 {
		_ = eventService.LogUserEvent(ctx, model.EventLevelInfo,
			"Default admin account created", &seededID, "",
			map[string]any{"username": store.DefaultAdminUsername})
	}
	_ = eventService.LogSystemEvent(ctx, model.EventLevelInfo,
		"Application started", map[string]any{"version": appVersion, "env": cfg.Env})

	// Blob store for uploaded post images
	blobAccount := ""
	if cfg.BlobConfigured() {
		blobAccount = cfg.BlobAccount
	}
	blobs, err := blob.NewStore(cfg.UploadsDir, blobAccount, cfg.BlobContainer)
	if err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}

	// Identity provider client (optional; the login page falls back to
	// local accounts only)
	var provider *msauth.Provider
	if cfg.OAuthConfigured() {
		provider = msauth.New(cfg.ClientID, cfg.ClientSecret, cfg.Authority, cfg.RedirectURL(), cfg.Scopes)
		slog.Info("identity provider sign-in enabled",
			"authority", cfg.Authority, "redirect_url", cfg.RedirectURL())
	}

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("templates filesystem: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	authHandler := handler.NewAuthHandler(db, renderer, sessionManager, eventService, loginProtection, provider, cfg.ExternalURL)
	postsHandler := handler.NewPostsHandler(db, renderer, sessionManager, eventService, blobs)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SecretKey), cfg.IsDevelopment())))

	// Authenticated pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessionManager))
		r.Use(middleware.LoadUser(sessionManager, db))

		r.Get(handler.RouteRoot, postsHandler.Home)
		r.Get(handler.RouteHome, postsHandler.Home)
		r.Get(handler.RouteNewPost, postsHandler.NewForm)
		r.Post(handler.RouteNewPost, postsHandler.Create)
		r.Get(handler.RoutePost, postsHandler.EditForm)
		r.Post(handler.RoutePost, postsHandler.Update)
		r.Get(handler.RouteLogout, authHandler.Logout)
	})

	// Public pages
	r.Get(handler.RouteLogin, authHandler.LoginForm)
	r.Post(handler.RouteLogin, authHandler.Login)

	if provider != nil {
		oauthHandler := handler.NewOAuthHandler(db, renderer, sessionManager, eventService, provider, cfg.BoundUsername)
		r.Get(cfg.RedirectPath, oauthHandler.Authorized)
	}

	// Static assets and locally stored uploads
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("static filesystem: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Handle(blob.LocalPrefix+"*", http.StripPrefix(blob.LocalPrefix, http.FileServer(http.Dir(blobs.Dir()))))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
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
