// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Placeholder defaults. Each configuration value is overridable from the
// environment; these defaults are deliberately non-functional so a
// misconfigured deployment is obvious.
const (
	PlaceholderSecretKey    = "ENTER_SECRET_KEY_HERE"
	PlaceholderBlobAccount  = "ENTER_STORAGE_ACCOUNT_NAME"
	PlaceholderClientID     = "ENTER_CLIENT_ID_HERE"
	PlaceholderClientSecret = "ENTER_CLIENT_SECRET_HERE"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SecretKey  string `env:"GOBLOG_SECRET_KEY" envDefault:"ENTER_SECRET_KEY_HERE"`
	DBPath     string `env:"GOBLOG_DB_PATH" envDefault:"./data/goblog.db"`
	ServerHost string `env:"GOBLOG_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"GOBLOG_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"GOBLOG_ENV" envDefault:"development"`
	LogLevel   string `env:"GOBLOG_LOG_LEVEL" envDefault:"info"`

	// ExternalURL is the public base URL of this deployment. Used to build
	// the OAuth redirect URI, which must match the value registered with the
	// identity provider exactly.
	ExternalURL string `env:"GOBLOG_EXTERNAL_URL" envDefault:"http://localhost:8080"`

	// Blob storage for uploaded post images. When the account is left at its
	// placeholder, images are stored and served from UploadsDir instead.
	BlobAccount   string `env:"GOBLOG_BLOB_ACCOUNT" envDefault:"ENTER_STORAGE_ACCOUNT_NAME"`
	BlobKey       string `env:"GOBLOG_BLOB_STORAGE_KEY" envDefault:"ENTER_BLOB_STORAGE_KEY"`
	BlobContainer string `env:"GOBLOG_BLOB_CONTAINER" envDefault:"images"`
	UploadsDir    string `env:"GOBLOG_UPLOADS_DIR" envDefault:"./uploads"`

	// SQL database. When SQLServer is set, a MySQL connection string is
	// composed from these four values; otherwise the embedded SQLite
	// database at DBPath is used.
	SQLServer   string `env:"GOBLOG_SQL_SERVER"`
	SQLDatabase string `env:"GOBLOG_SQL_DATABASE" envDefault:"goblog"`
	SQLUserName string `env:"GOBLOG_SQL_USER_NAME" envDefault:"goblog"`
	SQLPassword string `env:"GOBLOG_SQL_PASSWORD"`

	// OAuth2/OIDC identity provider (confidential client).
	ClientID      string   `env:"GOBLOG_CLIENT_ID" envDefault:"ENTER_CLIENT_ID_HERE"`
	ClientSecret  string   `env:"GOBLOG_CLIENT_SECRET" envDefault:"ENTER_CLIENT_SECRET_HERE"`
	Authority     string   `env:"GOBLOG_AUTHORITY" envDefault:"https://login.microsoftonline.com/common"`
	RedirectPath  string   `env:"GOBLOG_REDIRECT_PATH" envDefault:"/getAToken"`
	Scopes        []string `env:"GOBLOG_SCOPE" envDefault:"User.Read"`
	BoundUsername string   `env:"GOBLOG_OAUTH_BOUND_USERNAME" envDefault:"admin"`

	// GeoIP configuration. Optional; enriches auth audit events.
	GeoIPDBPath string `env:"GOBLOG_GEOIP_DB_PATH"`

	// Seeding configuration
	DoSeed bool `env:"GOBLOG_DO_SEED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseMySQL returns true if an external SQL server is configured.
func (c Config) UseMySQL() bool {
	return c.SQLServer != ""
}

// SQLConnString composes the MySQL connection string from the configured
// server, database, user and password.
func (c Config) SQLConnString() string {
	return fmt.Sprintf("%s:%s@tcp(%s:3306)/%s?parseTime=true&charset=utf8mb4",
		c.SQLUserName, c.SQLPassword, c.SQLServer, c.SQLDatabase)
}

// BlobConfigured returns true if real blob storage credentials are set.
func (c Config) BlobConfigured() bool {
	return c.BlobAccount != "" && c.BlobAccount != PlaceholderBlobAccount
}

// OAuthConfigured returns true if the identity provider client is configured.
func (c Config) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientID != PlaceholderClientID
}

// RedirectURL returns the absolute OAuth callback URL.
func (c Config) RedirectURL() string {
	return strings.TrimRight(c.ExternalURL, "/") + c.RedirectPath
}

// GeoIPEnabled returns true if a GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MinSecretKeyLength is the minimum required length for the secret key.
const MinSecretKeyLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.SecretKey == PlaceholderSecretKey {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("GOBLOG_SECRET_KEY is the placeholder default and must be set in production; " +
				"generate a secure key with: openssl rand -base64 32")
		}
		slog.Warn("GOBLOG_SECRET_KEY is the placeholder default; do not deploy this configuration")
	} else if len(cfg.SecretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("GOBLOG_SECRET_KEY must be at least %d bytes long, got %d bytes; "+
			"generate a secure key with: openssl rand -base64 32",
			MinSecretKeyLength, len(cfg.SecretKey))
	}

	if !cfg.OAuthConfigured() {
		slog.Warn("OAuth client is not configured; external sign-in is disabled")
	}

	return cfg, nil
}
