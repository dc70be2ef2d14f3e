// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrEmptySessionID is returned when the backend issues a session without an id.
var ErrEmptySessionID = errors.New("backend returned an empty session id")

// NewSession requests a fresh conversation id.
func (c *Client) NewSession(ctx context.Context, token string) (string, error) {
	var resp NewSessionResponse
	if err := c.do(ctx, "new session", http.MethodPost, "/chat/session/new", token, struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", ErrEmptySessionID
	}
	return resp.SessionID, nil
}

// History fetches the stored transcript of a session in backend order.
func (c *Client) History(ctx context.Context, token, sessionID string) (*HistoryResponse, error) {
	var resp HistoryResponse
	path := "/chat/history/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "history", http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		resp.SessionID = sessionID
	}
	return &resp, nil
}

// Chat submits one user turn and returns the bot reply.
func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, "chat", http.MethodPost, "/chat", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
