// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose utility functions.
package util

import (
	"net/url"
	"strings"
)

// SafeNextPath validates a post-login redirect target. Any target whose
// parsed network location is non-empty (an absolute URL to another host) is
// rejected and replaced by fallback, closing the open-redirect hole
// (CWE-601). Backslashes are normalized first since browsers treat them as
// slashes.
func SafeNextPath(next, fallback string) string {
	if next == "" {
		return fallback
	}

	target, err := url.Parse(strings.ReplaceAll(next, "\\", "/"))
	if err != nil || target.Hostname() != "" || target.Scheme != "" {
		return fallback
	}
	if !strings.HasPrefix(target.Path, "/") || strings.HasPrefix(target.Path, "//") {
		return fallback
	}

	return target.String()
}
