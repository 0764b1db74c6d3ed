// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Post represents a blog post. ImagePath is either invalid (no image) or
// a reference into the blob store, relative to its public base URL.
type Post struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	ImagePath sql.NullString `json:"image_path,omitempty"`
	AuthorID  int64          `json:"author_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HasImage reports whether the post carries an uploaded image reference.
func (p *Post) HasImage() bool {
	return p.ImagePath.Valid && p.ImagePath.String != ""
}
