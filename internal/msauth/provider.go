// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package msauth wraps the confidential-client OAuth2/OIDC
// authorization-code flow against an external identity provider, plus a
// serializable per-session token cache.
package msauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Provider is a confidential OAuth2 client bound to one authority.
type Provider struct {
	authority string
	config    oauth2.Config
}

// New creates a Provider for the given authority. Endpoints follow the
// v2.0 authority layout: {authority}/oauth2/v2.0/{authorize,token,logout}.
// redirectURL must match the value registered with the provider exactly.
func New(clientID, clientSecret, authority, redirectURL string, scopes []string) *Provider {
	authority = strings.TrimRight(authority, "/")
	return &Provider{
		authority: authority,
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authority + "/oauth2/v2.0/authorize",
				TokenURL:  authority + "/oauth2/v2.0/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// NewState returns a fresh anti-CSRF state nonce.
func NewState() string {
	return uuid.New().String()
}

// AuthCodeURL builds the authorization URL the browser is redirected to.
// No side effects; the caller stores state in the session.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// LogoutURL builds the provider's end-session URL with the local
// post-logout redirect target.
func (p *Provider) LogoutURL(postLogoutRedirect string) string {
	return p.authority + "/oauth2/v2.0/logout?post_logout_redirect_uri=" +
		url.QueryEscape(postLogoutRedirect)
}

// Result is a successful code exchange: the identity claims from the ID
// token plus the raw token set.
type Result struct {
	Claims map[string]any
	Token  *oauth2.Token
}

// PreferredUsername returns the provider's preferred_username claim, if any.
func (r *Result) PreferredUsername() string {
	if s, ok := r.Claims["preferred_username"].(string); ok {
		return s
	}
	return ""
}

// Error carries the provider-side diagnostic payload of a failed exchange
// or a callback error parameter. The payload is rendered on the error page
// and logged; it never feeds back into the flow.
type Error struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// Exchange redeems an authorization code for tokens and identity claims,
// updating cache on success. Network and provider-side failures are
// returned as errors, never panics; provider diagnostics surface as *Error.
func (p *Provider) Exchange(ctx context.Context, code string, cache *TokenCache) (*Result, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return nil, retrieveError(rErr)
		}
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, &Error{Code: "invalid_token_response", Description: "token response carried no id_token"}
	}

	claims, err := parseIDTokenClaims(idToken)
	if err != nil {
		return nil, fmt.Errorf("parsing id_token: %w", err)
	}

	result := &Result{Claims: claims, Token: token}
	if cache != nil {
		cache.update(result)
	}
	return result, nil
}

// retrieveError extracts the provider's error/error_description fields from
// a failed token endpoint response.
func retrieveError(rErr *oauth2.RetrieveError) error {
	e := &Error{Code: rErr.ErrorCode, Description: rErr.ErrorDescription}
	if e.Code == "" {
		var payload struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if jsonErr := json.Unmarshal(rErr.Body, &payload); jsonErr == nil && payload.Error != "" {
			e.Code = payload.Error
			e.Description = payload.ErrorDescription
		}
	}
	if e.Code == "" {
		e.Code = "token_exchange_failed"
		e.Description = strings.TrimSpace(string(rErr.Body))
	}
	return e
}

// parseIDTokenClaims extracts the claim set from an ID token. The token was
// just received from the provider's token endpoint over TLS in a
// confidential-client exchange, so no local signature check is performed.
func parseIDTokenClaims(idToken string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
