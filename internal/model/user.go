// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the
// application including User, Post and Event structures.
package model

import (
	"database/sql"
	"time"
)

// User represents a blog account. An account with an invalid (NULL)
// password hash can only sign in through the external identity provider.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	PasswordHash sql.NullString `json:"-"` // Never expose in JSON
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastLoginAt  sql.NullTime   `json:"last_login_at,omitempty"`
}

// HasLocalPassword reports whether local username/password login is
// possible for this account.
func (u *User) HasLocalPassword() bool {
	return u.PasswordHash.Valid && u.PasswordHash.String != ""
}
