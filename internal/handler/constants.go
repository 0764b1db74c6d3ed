// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteHome is the post list alias.
	RouteHome = "/home"
	// RouteNewPost is the post creation route.
	RouteNewPost = "/new_post"
	// RoutePost is the post edit route pattern.
	RoutePost = "/post/{id}"
	// RouteLogin is the login route.
	RouteLogin = "/login"
	// RouteLogout is the logout route.
	RouteLogout = "/logout"

	redirectHome  = RouteHome
	redirectLogin = RouteLogin
)

// Form limits.
const (
	maxTitleLength = 120
	maxBodyLength  = 20000
	// maxUploadBytes bounds a post image upload (8 MiB).
	maxUploadBytes = 8 << 20
)
