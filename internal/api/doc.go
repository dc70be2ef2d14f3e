// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the moderated chat backend.
//
// The backend owns moderation, age banding and response generation; this
// package only moves requests and responses. Every authenticated call takes
// the bearer token explicitly so callers never depend on ambient state.
//
// # Endpoints
//
//   - POST /api/chat/session/new       NewSession
//   - GET  /api/chat/history/{id}      History
//   - POST /api/chat                   Chat
//   - POST /api/auth/login             Login
//   - POST /api/auth/register          Register
//   - GET  /api/auth/me                Me
//   - POST /api/auth/logout            Logout
//
// # Errors
//
// Non-2xx responses become *APIError. Use errors.Is with ErrUnauthorized,
// ErrValidation, ErrNotFound or ErrRateLimited to classify them; field-level
// registration errors are in APIError.Fields.
//
// # Usage
//
//	c := api.New("http://localhost:8000", api.WithTimeout(20*time.Second))
//	token, err := c.Login(ctx, "ada", "secret")
//	id, err := c.NewSession(ctx, token)
//	resp, err := c.Chat(ctx, token, api.ChatRequest{Message: "hello", SessionID: id})
package api
