// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package geoip

import "testing"

func TestLookupCountryWithoutDatabase(t *testing.T) {
	g, err := NewLookup("")
	if err != nil {
		t.Fatalf("NewLookup() error = %v", err)
	}
	defer func() { _ = g.Close() }()

	if g.IsEnabled() {
		t.Error("IsEnabled() = true without a database")
	}

	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", "LOCAL"},
		{"::1", "LOCAL"},
		{"10.1.2.3", "LOCAL"},
		{"172.20.0.1", "LOCAL"},
		{"192.168.1.50", "LOCAL"},
		{"fe80::1", "LOCAL"},
		{"203.0.113.9", ""}, // public IP, no database loaded
		{"not-an-ip", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := g.LookupCountry(tt.ip); got != tt.want {
				t.Errorf("LookupCountry(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}
}

func TestNewLookupMissingFile(t *testing.T) {
	if _, err := NewLookup("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Error("expected error for missing database file")
	}
}
