// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the audit event layer. Every
// authentication-relevant outcome is recorded as a structured event row
// enriched with the client IP, its GeoIP country when available, and
// the parsed User-Agent.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/goblog/internal/geoip"
	"github.com/olegiv/goblog/internal/middleware"
	"github.com/olegiv/goblog/internal/model"
	"github.com/olegiv/goblog/internal/store"
	"github.com/olegiv/goblog/internal/util"
)

// EventService writes audit events.
type EventService struct {
	queries *store.Queries
	geo     *geoip.Lookup
}

// NewEventService creates a new EventService. geo may be nil when GeoIP
// enrichment is not configured.
func NewEventService(db *sql.DB, geo *geoip.Lookup) *EventService {
	return &EventService{
		queries: store.New(db),
		geo:     geo,
	}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if jsonBytes, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    util.NullInt64FromPtr(userID),
		IPAddress: ipAddress,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to write audit event", "category", category, "err", err)
		return err
	}

	return nil
}

// LogAuthEvent records an authentication outcome enriched with client
// details taken from the request.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, userID *int64, r *http.Request, metadata map[string]any) error {
	ip := middleware.GetRemoteIP(r)

	enriched := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		enriched[k] = v
	}
	if s.geo != nil {
		if country := s.geo.LookupCountry(ip); country != "" {
			enriched["country"] = country
		}
	}
	if browser, os, device := parseUserAgent(r.UserAgent()); browser != "" {
		enriched["browser"] = browser
		enriched["os"] = os
		enriched["device"] = device
	}

	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, ip, enriched)
}

// LogPostEvent records a post create/update outcome.
func (s *EventService) LogPostEvent(ctx context.Context, level, message string, userID *int64, r *http.Request, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryPost, message, userID, middleware.GetRemoteIP(r), metadata)
}

// LogUserEvent records a user lifecycle outcome.
func (s *EventService) LogUserEvent(ctx context.Context, level, message string, userID *int64, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, ipAddress, metadata)
}

// LogSystemEvent records a system-level outcome.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, nil, "", metadata)
}

// parseUserAgent extracts browser, OS, and device type from a
// User-Agent header. Empty input yields empty results.
func parseUserAgent(uaString string) (browser, os, device string) {
	if uaString == "" {
		return "", "", ""
	}

	ua := useragent.Parse(uaString)

	browser = ua.Name
	os = ua.OS
	if browser == "" {
		browser = "Unknown"
	}
	if os == "" {
		os = "Unknown"
	}

	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	default:
		device = "desktop"
	}

	return browser, os, device
}
