// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// FormErrors maps field names to validation messages. An empty map
// means the form passed validation.
type FormErrors map[string]string

// HasErrors reports whether any field failed validation.
func (e FormErrors) HasErrors() bool {
	return len(e) > 0
}

// Field describes one entry in a form schema. Fields are validated in
// declaration order so error reporting is deterministic.
type Field struct {
	Name      string
	Label     string
	Required  bool
	MaxLength int // runes; 0 means unlimited
}

// postFormFields is the declared schema for the post create/edit form.
var postFormFields = []Field{
	{Name: "title", Label: "Title", Required: true, MaxLength: maxTitleLength},
	{Name: "body", Label: "Body", Required: true, MaxLength: maxBodyLength},
}

// loginFormFields is the declared schema for the local login form.
var loginFormFields = []Field{
	{Name: "username", Label: "Username", Required: true, MaxLength: 64},
	{Name: "password", Label: "Password", Required: true},
}

// validateFields checks submitted values against a schema and returns
// trimmed values keyed by field name plus any validation errors.
func validateFields(r *http.Request, fields []Field) (map[string]string, FormErrors) {
	values := make(map[string]string, len(fields))
	errs := make(FormErrors)

	for _, f := range fields {
		v := strings.TrimSpace(r.PostFormValue(f.Name))
		values[f.Name] = v

		if f.Required && v == "" {
			errs[f.Name] = f.Label + " is required"
			continue
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength {
			errs[f.Name] = fmt.Sprintf("%s must be at most %d characters", f.Label, f.MaxLength)
		}
	}

	return values, errs
}

// PostForm holds the validated values of the post form.
type PostForm struct {
	Title string
	Body  string
}

// parsePostForm validates a submitted post form.
func parsePostForm(r *http.Request) (PostForm, FormErrors) {
	values, errs := validateFields(r, postFormFields)
	return PostForm{Title: values["title"], Body: values["body"]}, errs
}

// LoginForm holds the validated values of the local login form.
type LoginForm struct {
	Username string
	Password string
}

// parseLoginForm validates a submitted login form. The password is
// intentionally not trimmed.
func parseLoginForm(r *http.Request) (LoginForm, FormErrors) {
	values, errs := validateFields(r, loginFormFields)
	return LoginForm{
		Username: values["username"],
		Password: r.PostFormValue("password"),
	}, errs
}
