// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	Age       *int   `json:"age,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Risk is the backend's conversation risk assessment.
type Risk struct {
	RiskLevel string   `json:"risk_level"`
	Flags     []string `json:"flags,omitempty"`
}

// ModerationExplain is the backend's reason for altering or blocking a turn.
type ModerationExplain struct {
	Reason     string             `json:"reason"`
	Categories map[string]float64 `json:"categories,omitempty"`
	AgeBand    string             `json:"age_band,omitempty"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Response          string             `json:"response"`
	SessionID         string             `json:"session_id,omitempty"`
	AgeBand           string             `json:"age_band,omitempty"`
	LiteracyInjected  bool               `json:"literacy_injected,omitempty"`
	Risk              *Risk              `json:"risk,omitempty"`
	ModerationExplain *ModerationExplain `json:"moderation_explain,omitempty"`
	Adjusted          *bool              `json:"adjusted,omitempty"`
	AgeGate           bool               `json:"age_gate,omitempty"`
}

// =============================================================================
// SESSIONS AND HISTORY
// =============================================================================

// NewSessionResponse is the body returned by POST /api/chat/session/new.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
	Created   bool   `json:"created,omitempty"`
}

// HistoryEntry is one stored turn.
type HistoryEntry struct {
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	Timestamp  Timestamp          `json:"timestamp"`
	Categories map[string]float64 `json:"categories,omitempty"`
	AgeBand    string             `json:"age_band,omitempty"`
}

// HistoryResponse is the body returned by GET /api/chat/history/{id}.
type HistoryResponse struct {
	SessionID  string         `json:"session_id"`
	Messages   []HistoryEntry `json:"messages"`
	TotalCount int            `json:"total_count,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

// Credentials is the body of POST /api/auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Age      *int   `json:"age,omitempty"`
}

// TokenResponse is returned by login and register.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Me is the identity behind a token.
type Me struct {
	Username string `json:"username"`
	Age      *int   `json:"age,omitempty"`
	UserID   any    `json:"user_id,omitempty"`
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// Timestamp decodes epoch seconds (integer or fractional) or an ISO-8601
// string. A missing or null value decodes to the zero time.
type Timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromEpoch(secs)
			return nil
		}
		for _, layout := range isoLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("timestamp: unrecognized format %q", s)
	}

	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = fromEpoch(secs)
	return nil
}

// MarshalJSON encodes epoch seconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(secs, 'f', -1, 64)), nil
}

func fromEpoch(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
