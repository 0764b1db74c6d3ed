// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package blob stores uploaded post images in a container directory on
// disk and composes the public URLs they are served under. When a blob
// storage account is configured the URLs point at the account's public
// container; otherwise files are served from the local /uploads/ prefix.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/olegiv/goblog/internal/util"
)

// LocalPrefix is the URL prefix files are served under when no blob
// storage account is configured.
const LocalPrefix = "/uploads/"

// ThumbPrefix prefixes the thumbnail variant of a stored image.
const ThumbPrefix = "thumb-"

// ThumbName returns the stored name of the thumbnail variant.
func ThumbName(name string) string {
	return ThumbPrefix + name
}

// Store is a disk-backed image container.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the container directory if needed. account and
// container select the public base URL; either may be empty, in which
// case files are addressed under LocalPrefix.
func NewStore(dir, account, container string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	baseURL := LocalPrefix
	if account != "" && container != "" {
		baseURL = fmt.Sprintf("https://%s.blob.core.windows.net/%s/", account, container)
	}

	return &Store{dir: dir, baseURL: baseURL}, nil
}

// Save writes data under a collision-free name derived from the original
// filename and returns the stored name. The name has the shape
// {uuid}-{slugified-name}{ext}.
func (s *Store) Save(originalName, ext string, data []byte) (string, error) {
	name := storedName(originalName, ext)

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", name, err)
	}

	return name, nil
}

// Put writes data under an exact stored name, used for variants whose
// name is derived from an already stored blob.
func (s *Store) Put(name string, data []byte) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid blob name %q", name)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

// Delete removes a stored blob. Missing files are not an error.
func (s *Store) Delete(name string) error {
	// Stored names never contain separators; reject anything else.
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid blob name %q", name)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// URL returns the public URL for a stored blob name.
func (s *Store) URL(name string) string {
	return s.baseURL + name
}

// Dir returns the container directory, for the local file server.
func (s *Store) Dir() string {
	return s.dir
}

// storedName composes {uuid}-{slug}{ext} from an uploaded filename.
func storedName(originalName, ext string) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	slug := util.Slugify(base)
	if slug == "" {
		slug = "image"
	}
	return uuid.New().String() + "-" + slug + ext
}
