// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package msauth

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/oauth2"

	"github.com/olegiv/goblog/internal/session"
)

// TokenCache is the serializable per-session token cache. Contents are
// opaque to callers; only the adapter reads or writes it.
type TokenCache struct {
	Token  *oauth2.Token  `json:"token,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`

	changed bool
}

// update records a fresh exchange result and marks the cache dirty.
func (c *TokenCache) update(r *Result) {
	c.Token = r.Token
	c.Claims = r.Claims
	c.changed = true
}

// HasChanged reports whether the cache state differs from what it was
// deserialized with.
func (c *TokenCache) HasChanged() bool {
	return c.changed
}

// Serialize encodes the cache for session storage.
func (c *TokenCache) Serialize() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadCache reconstructs a token cache from its serialized session form.
// An empty or corrupt blob yields a fresh cache.
func LoadCache(serialized string) *TokenCache {
	cache := &TokenCache{}
	if serialized == "" {
		return cache
	}
	if err := json.Unmarshal([]byte(serialized), cache); err != nil {
		slog.Warn("discarding corrupt session token cache", "error", err)
		return &TokenCache{}
	}
	return cache
}

// LoadCacheFromSession deserializes the current session's token cache.
func LoadCacheFromSession(ctx context.Context, sm *scs.SessionManager) *TokenCache {
	return LoadCache(sm.GetString(ctx, session.KeyOAuthTokenCache))
}

// SaveCacheToSession persists the cache into the session. A no-op when the
// cache's internal state is unchanged, avoiding needless session writes.
func SaveCacheToSession(ctx context.Context, sm *scs.SessionManager, cache *TokenCache) {
	if cache == nil || !cache.HasChanged() {
		return
	}
	serialized, err := cache.Serialize()
	if err != nil {
		slog.Error("serializing token cache", "error", err)
		return
	}
	sm.Put(ctx, session.KeyOAuthTokenCache, serialized)
}
