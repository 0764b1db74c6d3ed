// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/olegiv/goblog/internal/auth"
	"github.com/olegiv/goblog/internal/blob"
	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/msauth"
	"github.com/olegiv/goblog/internal/render"
	"github.com/olegiv/goblog/internal/service"
	"github.com/olegiv/goblog/internal/store"
	"github.com/olegiv/goblog/web"
)

// testDB creates an in-memory SQLite database with the required schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One shared in-memory database for every statement
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login_at DATETIME
		);

		CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			image_path TEXT,
			author_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (author_id) REFERENCES users(id)
		);

		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			level TEXT NOT NULL DEFAULT 'info',
			category TEXT NOT NULL DEFAULT 'system',
			message TEXT NOT NULL,
			user_id INTEGER,
			ip_address TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// testSessionManager creates an in-memory session manager.
func testSessionManager(t *testing.T) *scs.SessionManager {
	t.Helper()
	sm := scs.New()
	sm.Lifetime = 24 * time.Hour
	return sm
}

// testRenderer parses the real embedded templates.
func testRenderer(t *testing.T, sm *scs.SessionManager) *render.Renderer {
	t.Helper()

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("templates filesystem: %v", err)
	}
	r, err := render.New(render.Config{TemplatesFS: templatesFS, SessionManager: sm})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	return r
}

// testApp is the application wired up behind an httptest server.
type testApp struct {
	ts     *httptest.Server
	client *http.Client
	db     *sql.DB
	sm     *scs.SessionManager
	blobs  *blob.Store
}

// newTestApp wires handlers, middleware and routes the way the server
// binary does. provider may be nil to disable the OAuth callback route.
func newTestApp(t *testing.T, provider *msauth.Provider, boundUsername string) *testApp {
	t.Helper()

	db := testDB(t)
	sm := testSessionManager(t)
	renderer := testRenderer(t, sm)
	eventService := service.NewEventService(db, nil)

	blobs, err := blob.NewStore(t.TempDir(), "", "")
	if err != nil {
		t.Fatalf("blob.NewStore: %v", err)
	}

	authHandler := NewAuthHandler(db, renderer, sm, eventService, nil, provider, "http://app.test")
	postsHandler := NewPostsHandler(db, renderer, sm, eventService, blobs)

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, db))

		r.Get(RouteRoot, postsHandler.Home)
		r.Get(RouteHome, postsHandler.Home)
		r.Get(RouteNewPost, postsHandler.NewForm)
		r.Post(RouteNewPost, postsHandler.Create)
		r.Get(RoutePost, postsHandler.EditForm)
		r.Post(RoutePost, postsHandler.Update)
		r.Get(RouteLogout, authHandler.Logout)
	})

	r.Get(RouteLogin, authHandler.LoginForm)
	r.Post(RouteLogin, authHandler.Login)

	if provider != nil {
		oauthHandler := NewOAuthHandler(db, renderer, sm, eventService, provider, boundUsername)
		r.Get("/getAToken", oauthHandler.Authorized)
	}

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}

	return &testApp{
		ts:     ts,
		client: &http.Client{Jar: jar},
		db:     db,
		sm:     sm,
		blobs:  blobs,
	}
}

// noRedirectClient returns a client sharing the app's cookie jar that
// does not follow redirects.
func (a *testApp) noRedirectClient() *http.Client {
	return &http.Client{
		Jar: a.client.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// createTestUser creates a local-password user.
func createTestUser(t *testing.T, db *sql.DB, username, password string) model.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	now := time.Now()
	user, err := store.New(db).CreateUser(t.Context(), store.CreateUserParams{
		Username:     username,
		PasswordHash: sql.NullString{String: hash, Valid: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

// login authenticates through the login form.
func (a *testApp) login(t *testing.T, username, password string) {
	t.Helper()

	resp, err := a.client.PostForm(a.ts.URL+RouteLogin, url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login final status = %d", resp.StatusCode)
	}
}

// get fetches a path with the session client and returns the response.
func (a *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := a.client.Get(a.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
