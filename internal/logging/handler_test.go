// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"

	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/store"
)

// testDB creates a temporary test database with migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "goblog-logging-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	return db
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func latestEvents(t *testing.T, db *sql.DB) []model.Event {
	t.Helper()
	events, err := store.New(db).ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func TestEventLogHandler_Handle_ErrorLevel(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Error("database connection failed", "host", "localhost")

	events := latestEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Level != model.EventLevelError {
		t.Errorf("level = %q, want %q", ev.Level, model.EventLevelError)
	}
	if ev.Message != "database connection failed" {
		t.Errorf("message = %q", ev.Message)
	}
	if ev.Metadata != `{"host":"localhost"}` {
		t.Errorf("metadata = %q", ev.Metadata)
	}
}

func TestEventLogHandler_Handle_WarnLevel(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("failed login attempt", "category", model.EventCategoryAuth,
		"username", "admin", "ip", "203.0.113.9")

	events := latestEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Level != model.EventLevelWarning {
		t.Errorf("level = %q, want %q", ev.Level, model.EventLevelWarning)
	}
	if ev.Category != model.EventCategoryAuth {
		t.Errorf("category = %q, want %q", ev.Category, model.EventCategoryAuth)
	}
	if ev.IPAddress != "203.0.113.9" {
		t.Errorf("ip_address = %q, want 203.0.113.9", ev.IPAddress)
	}
	if ev.Metadata != `{"username":"admin"}` {
		t.Errorf("metadata = %q", ev.Metadata)
	}
}

func TestEventLogHandler_Handle_InfoNotPersisted(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Info("user signed in", "username", "admin")

	if events := latestEvents(t, db); len(events) != 0 {
		t.Errorf("got %d events for info log, want 0", len(events))
	}
}

func TestEventLogHandler_UserIDAttr(t *testing.T) {
	db := testDB(t)

	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("post update rejected", "user_id", int64(42))

	events := latestEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].UserID.Valid || events[0].UserID.Int64 != 42 {
		t.Errorf("user_id = %+v, want 42", events[0].UserID)
	}
}

func TestExtractCategory_Inference(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"login failed", model.EventCategoryAuth},
		{"post created", model.EventCategoryPost},
		{"user not found", model.EventCategoryUser},
		{"disk almost full", model.EventCategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			r := slog.Record{Message: tt.message}
			if got := extractCategory(r); got != tt.want {
				t.Errorf("extractCategory(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestEscapeJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{"line\nbreak", `line\nbreak`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeJSON(tt.in); got != tt.want {
			t.Errorf("escapeJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
