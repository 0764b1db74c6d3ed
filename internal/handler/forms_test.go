// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		wantErrors map[string]string
	}{
		{
			name:       "valid",
			values:     url.Values{"title": {"Hello"}, "body": {"World"}},
			wantErrors: map[string]string{},
		},
		{
			name:       "missing title",
			values:     url.Values{"body": {"World"}},
			wantErrors: map[string]string{"title": "Title is required"},
		},
		{
			name:       "whitespace only is missing",
			values:     url.Values{"title": {"   "}, "body": {"World"}},
			wantErrors: map[string]string{"title": "Title is required"},
		},
		{
			name:   "both missing",
			values: url.Values{},
			wantErrors: map[string]string{
				"title": "Title is required",
				"body":  "Body is required",
			},
		},
		{
			name:   "title too long",
			values: url.Values{"title": {strings.Repeat("a", maxTitleLength+1)}, "body": {"World"}},
			wantErrors: map[string]string{
				"title": "Title must be at most 120 characters",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/new_post", strings.NewReader(tt.values.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			_, errs := validateFields(req, postFormFields)

			if len(errs) != len(tt.wantErrors) {
				t.Fatalf("got %d errors, want %d: %v", len(errs), len(tt.wantErrors), errs)
			}
			for field, want := range tt.wantErrors {
				if got := errs[field]; got != want {
					t.Errorf("errs[%q] = %q, want %q", field, got, want)
				}
			}
		})
	}
}

func TestValidateFieldsCountsRunes(t *testing.T) {
	// 120 multi-byte runes must pass the 120-rune title limit.
	title := strings.Repeat("日", maxTitleLength)
	values := url.Values{"title": {title}, "body": {"x"}}

	req := httptest.NewRequest("POST", "/new_post", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, errs := validateFields(req, postFormFields)
	if errs.HasErrors() {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestParsePostFormTrims(t *testing.T) {
	values := url.Values{"title": {"  Hello  "}, "body": {"  World  "}}
	req := httptest.NewRequest("POST", "/new_post", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, errs := parsePostForm(req)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if form.Title != "Hello" {
		t.Errorf("Title = %q, want %q", form.Title, "Hello")
	}
	if form.Body != "World" {
		t.Errorf("Body = %q, want %q", form.Body, "World")
	}
}

func TestParseLoginFormKeepsPasswordVerbatim(t *testing.T) {
	values := url.Values{"username": {"  admin  "}, "password": {"  secret  "}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, errs := parseLoginForm(req)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if form.Username != "admin" {
		t.Errorf("Username = %q, want %q", form.Username, "admin")
	}
	if form.Password != "  secret  " {
		t.Errorf("Password = %q, want it untrimmed", form.Password)
	}
}

func TestFormErrorsHasErrors(t *testing.T) {
	if (FormErrors{}).HasErrors() {
		t.Error("empty FormErrors reported errors")
	}
	if !(FormErrors{"title": "Title is required"}).HasErrors() {
		t.Error("non-empty FormErrors reported no errors")
	}
}
