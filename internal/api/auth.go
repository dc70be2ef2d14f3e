// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
)

// ErrEmptyToken is returned when login or register succeeds without a token.
var ErrEmptyToken = errors.New("backend returned an empty access token")

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp TokenResponse
	body := Credentials{Username: username, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return resp.AccessToken, nil
}

// Register creates an account and returns its bearer token.
// Field-level failures are reported through APIError.Fields.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var resp TokenResponse
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrEmptyToken
	}
	return resp.AccessToken, nil
}

// Me resolves the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (*Me, error) {
	var resp Me
	if err := c.do(ctx, "me", http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the backend the token is being discarded.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/logout", token, struct{}{}, nil)
}
