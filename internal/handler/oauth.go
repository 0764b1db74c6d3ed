// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/msauth"
	"github.com/olegiv/goblog/internal/render"
	"github.com/olegiv/goblog/internal/service"
	"github.com/olegiv/goblog/internal/session"
	"github.com/olegiv/goblog/internal/store"
)

// OAuthHandler handles the authorization-code callback from the
// identity provider.
type OAuthHandler struct {
	queries        *store.Queries
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
	eventService   *service.EventService
	provider       *msauth.Provider
	boundUsername  string
}

// NewOAuthHandler creates a new OAuthHandler. boundUsername names the
// local account a successful provider sign-in is mapped onto.
func NewOAuthHandler(db *sql.DB, renderer *render.Renderer, sm *scs.SessionManager, es *service.EventService, provider *msauth.Provider, boundUsername string) *OAuthHandler {
	return &OAuthHandler{
		queries:        store.New(db),
		renderer:       renderer,
		sessionManager: sm,
		eventService:   es,
		provider:       provider,
		boundUsername:  boundUsername,
	}
}

// authErrorData is the template payload for the provider error page.
type authErrorData struct {
	Code        string
	Description string
}

// Authorized is the redirect target of the authorization-code flow.
// The state nonce is single-use: it is removed from the session before
// any comparison, so a replayed callback always fails closed.
func (h *OAuthHandler) Authorized(w http.ResponseWriter, r *http.Request) {
	expectedState := h.sessionManager.PopString(r.Context(), session.KeyOAuthState)
	gotState := r.URL.Query().Get("state")

	if expectedState == "" || subtle.ConstantTimeCompare([]byte(expectedState), []byte(gotState)) != 1 {
		// Info level: the auth event below is the single audit row for
		// this attempt (the event log handler persists WARN and above).
		slog.Info("auth callback state mismatch", "ip", middleware.GetRemoteIP(r))
		_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelWarning,
			"Provider callback rejected: state mismatch", nil, r, nil)
		http.Redirect(w, r, redirectHome, http.StatusSeeOther)
		return
	}

	// The provider reports user-denied consent and its own failures as
	// error/error_description query parameters.
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.renderAuthError(w, r, &msauth.Error{
			Code:        errCode,
			Description: r.URL.Query().Get("error_description"),
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		// Neither error nor code: nothing to do.
		http.Redirect(w, r, redirectHome, http.StatusSeeOther)
		return
	}

	cache := msauth.LoadCacheFromSession(r.Context(), h.sessionManager)

	result, err := h.provider.Exchange(r.Context(), code, cache)
	if err != nil {
		var provErr *msauth.Error
		if errors.As(err, &provErr) {
			h.renderAuthError(w, r, provErr)
			return
		}
		logAndInternalError(w, "token exchange failed", "error", err)
		return
	}

	user, err := h.queries.GetUserByUsername(r.Context(), h.boundUsername)
	if err != nil {
		// Without the designated local account the sign-in cannot be
		// completed; fail closed rather than provisioning on the fly.
		logAndInternalError(w, "designated account for provider sign-in missing",
			"username", h.boundUsername, "error", err)
		return
	}

	if err := h.establishSession(r, user, result); err != nil {
		logAndInternalError(w, "failed to establish provider session", "error", err)
		return
	}

	msauth.SaveCacheToSession(r.Context(), h.sessionManager, cache)

	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelInfo,
		"User logged in via identity provider", &user.ID, r,
		map[string]any{"preferred_username": result.PreferredUsername()})

	http.Redirect(w, r, redirectHome, http.StatusSeeOther)
}

// establishSession renews the session token and stores the local user
// identity plus the provider claims.
func (h *OAuthHandler) establishSession(r *http.Request, user model.User, result *msauth.Result) error {
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}

	h.sessionManager.Put(r.Context(), session.KeyUserID, user.ID)

	claims, err := json.Marshal(result.Claims)
	if err != nil {
		return err
	}
	h.sessionManager.Put(r.Context(), session.KeyOAuthClaims, string(claims))

	slog.Info("provider sign-in completed", "user_id", user.ID,
		"preferred_username", result.PreferredUsername())
	return nil
}

// renderAuthError shows the provider's diagnostic payload.
func (h *OAuthHandler) renderAuthError(w http.ResponseWriter, r *http.Request, provErr *msauth.Error) {
	slog.Error("provider sign-in failed", "code", provErr.Code, "description", provErr.Description)
	_ = h.eventService.LogAuthEvent(r.Context(), model.EventLevelError,
		"Provider sign-in failed", nil, r,
		map[string]any{"code": provErr.Code, "description": provErr.Description})

	if err := h.renderer.Render(w, r, "auth_error", render.TemplateData{
		Title: "Login Failure",
		Data: authErrorData{
			Code:        provErr.Code,
			Description: provErr.Description,
		},
	}); err != nil {
		logAndInternalError(w, "failed to render auth error page", "error", err)
	}
}
