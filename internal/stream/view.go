// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"time"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/session"
)

// Notice is a transient user-visible error.
type Notice struct {
	Text string
	At   time.Time
	Err  error
}

// Expired reports whether the notice is older than ttl.
func (n *Notice) Expired(now time.Time, ttl time.Duration) bool {
	return n == nil || now.Sub(n.At) >= ttl
}

// View is a read-only snapshot for presentation.
type View struct {
	Messages    []model.Message
	Submitting  bool
	Notice      *Notice
	AgeBand     model.AgeBand
	SessionID   string
	Username    string
	AgeOverride int
}

// View returns a snapshot. The caller owns the returned slices.
func (c *Controller) View() View {
	id := c.ident.Current()
	sid := c.sessions.ID()

	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Messages:    c.transcript.Messages(),
		Submitting:  c.submitting,
		AgeBand:     model.ActiveBand(c.transcript.LatestBand(), c.requestAgeLocked()),
		SessionID:   sid,
		Username:    id.Username,
		AgeOverride: c.ageOverride,
	}
	if c.notice != nil {
		n := *c.notice
		v.Notice = &n
	}
	return v
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, api.ErrUnauthorized):
		return "Please sign in again to keep chatting."
	case errors.Is(err, api.ErrRateLimited):
		return "You're sending messages too quickly. Try again in a moment."
	default:
		return "Sorry, something went wrong. Please try again."
	}
}
