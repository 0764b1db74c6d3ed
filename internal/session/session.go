// Package session configures the server-side session store. Sessions always
// live in a local SQLite file, separate from the content database, so the
// same store works whether content is on SQLite or MySQL.
package session

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	_ "modernc.org/sqlite" // SQLite driver for the session store
)

// Session keys. OAuth-derived state is kept alongside the local identity so
// logout can tell an external session from a purely local one.
const (
	KeyUserID          = "user_id"
	KeyOAuthState      = "oauth_state"
	KeyOAuthClaims     = "oauth_claims"
	KeyOAuthTokenCache = "oauth_token_cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);`

// New opens the session database at path and returns a configured session
// manager together with the underlying connection, which the caller owns.
func New(path string, isDev bool) (*scs.SessionManager, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("configuring session database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("creating sessions table: %w", err)
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(db)
	sm.Lifetime = 24 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm, db, nil
}
