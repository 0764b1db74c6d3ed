// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/goblog/internal/auth"
	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/msauth"
	"github.com/olegiv/goblog/internal/render"
	"github.com/olegiv/goblog/internal/service"
	"github.com/olegiv/goblog/internal/session"
	"github.com/olegiv/goblog/internal/store"
	"github.com/olegiv/goblog/internal/util"
)

// AuthHandler handles the local login form and logout.
type AuthHandler struct {
	queries         *store.Queries
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
	provider        *msauth.Provider // nil when OAuth sign-in is not configured
	externalURL     string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *sql.DB, renderer *render.Renderer, sm *scs.SessionManager, es *service.EventService, lp *middleware.LoginProtection, provider *msauth.Provider, externalURL string) *AuthHandler {
	return &AuthHandler{
		queries:         store.New(db),
		renderer:        renderer,
		sessionManager:  sm,
		eventService:    es,
		loginProtection: lp,
		provider:        provider,
		externalURL:     externalURL,
	}
}

// loginPageData is the template payload for the login page.
type loginPageData struct {
	Username string
	Next     string
	AuthURL  string
	Errors   FormErrors
}

// LoginForm renders the login page. Each render mints a fresh state
// nonce for the provider sign-in link; the nonce is single-use and
// checked on the callback.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if userID := h.sessionManager.GetInt64(r.Context(), session.KeyUserID); userID > 0 {
		http.Redirect(w, r, redirectHome, http.StatusSeeOther)
		return
	}

	h.renderLogin(w, r, loginPageData{
		Next: r.URL.Query().Get("next"),
	})
}

// renderLogin renders the login template, minting a new OAuth state.
func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData) {
	if h.provider != nil {
		state := msauth.NewState()
		h.sessionManager.Put(r.Context(), session.KeyOAuthState, state)
		data.AuthURL = h.provider.AuthCodeURL(state)
	}

	if err := h.renderer.Render(w, r, "login", render.TemplateData{
		Title: "Log In",
		Data:  data,
	}); err != nil {
		logAndInternalError(w, "failed to render login page", "error", err)
	}
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, redirectLogin, "Invalid form data")
		return
	}

	form, formErrs := parseLoginForm(r)
	next := r.PostFormValue("next")
	if formErrs.HasErrors() {
		h.renderLogin(w, r, loginPageData{Username: form.Username, Next: next, Errors: formErrs})
		return
	}

	clientIP := middleware.GetRemoteIP(r)

	if h.loginProtection != nil {
		if !h.loginProtection.CheckIPRateLimit(clientIP) {
			flashError(w, r, h.renderer, redirectLogin, "Too many login attempts, slow down")
			return
		}
		if locked, remaining := h.loginProtection.IsAccountLocked(form.Username); locked {
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning,
				"Login attempt on locked account", nil, r, map[string]any{"username": form.Username})
			flashError(w, r, h.renderer, redirectLogin,
				"Account temporarily locked, try again in "+formatDuration(remaining))
			return
		}
	}

	user, err := h.queries.GetUserByUsername(r.Context(), form.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning,
				"Login failed: user not found", nil, r, map[string]any{"username": form.Username})
		} else {
			slog.Error("database error during login", "error", err)
		}
		h.failLogin(w, r, form.Username)
		return
	}

	// Accounts provisioned through the identity provider may have no
	// local password; they cannot use the password form.
	if !user.HasLocalPassword() {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning,
			"Login failed: no local password", &user.ID, r, map[string]any{"username": form.Username})
		h.failLogin(w, r, form.Username)
		return
	}

	valid, err := auth.CheckPassword(form.Password, user.PasswordHash.String)
	if err != nil {
		slog.Error("password check error", "error", err)
		h.failLogin(w, r, form.Username)
		return
	}
	if !valid {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning,
			"Login failed: invalid password", &user.ID, r, map[string]any{"username": form.Username})
		h.failLogin(w, r, form.Username)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(form.Username)
	}

	// Re-hash if the stored hash uses outdated parameters
	if auth.NeedsRehash(user.PasswordHash.String) {
		if newHash, err := auth.HashPassword(form.Password); err == nil {
			if err := h.queries.UpdateUserPassword(r.Context(), store.UpdateUserPasswordParams{
				PasswordHash: util.NullStringFromValue(newHash),
				UpdatedAt:    time.Now(),
				ID:           user.ID,
			}); err != nil {
				slog.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			}
		}
	}

	if err := h.completeLogin(r, user); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}

	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo,
		"User logged in", &user.ID, r, map[string]any{"username": user.Username})

	http.Redirect(w, r, util.SafeNextPath(next, redirectHome), http.StatusSeeOther)
}

// failLogin records the failed attempt and re-renders the login page
// with the same generic message regardless of the failure cause.
func (h *AuthHandler) failLogin(w http.ResponseWriter, r *http.Request, username string) {
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(username); locked {
			flashError(w, r, h.renderer, redirectLogin,
				"Too many failed attempts, account locked for "+formatDuration(lockDuration))
			return
		}
	}
	flashError(w, r, h.renderer, redirectLogin, "Invalid username or password")
}

// completeLogin renews the session token and stores the user identity.
func (h *AuthHandler) completeLogin(r *http.Request, user model.User) error {
	// Regenerate session ID to prevent session fixation
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	h.sessionManager.Put(r.Context(), session.KeyUserID, user.ID)

	if err := h.queries.UpdateUserLastLogin(r.Context(), store.UpdateUserLastLoginParams{
		LastLoginAt: sql.NullTime{Time: time.Now(), Valid: true},
		ID:          user.ID,
	}); err != nil {
		// Don't block login on this error
		slog.Error("failed to update last login time", "error", err, "user_id", user.ID)
	}

	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return nil
}

// Logout ends the session. Sessions established through the identity
// provider are also signed out upstream via the provider's end-session
// endpoint; local sessions return to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), session.KeyUserID)
	oauthSession := h.sessionManager.GetString(r.Context(), session.KeyOAuthClaims) != ""

	if userID > 0 {
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo,
			"User logged out", &userID, r, nil)
	}

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
	}

	if oauthSession && h.provider != nil {
		http.Redirect(w, r, h.provider.LogoutURL(h.externalURL+RouteLogin), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
