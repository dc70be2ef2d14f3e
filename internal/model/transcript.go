// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"time"
)

// Transcript errors.
var (
	// ErrTurnPending is returned when a speculative turn is already open.
	ErrTurnPending = errors.New("transcript: a turn is already pending")

	// ErrPlaceholderID is returned when a caller tries to append a typing entry directly.
	ErrPlaceholderID = errors.New("transcript: placeholder ids are reserved")
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered message list of one conversation.
// Insertion order is chronological order.
//
// At most one typing placeholder exists, always as the last element.
// Transcript is not safe for concurrent use; its owner serializes access.
type Transcript struct {
	messages []Message
	epoch    uint64
	pending  *Pending
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]Message, 0, 32)}
}

// Len returns the number of entries, placeholder included.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Epoch changes every time the transcript is replaced or cleared.
func (t *Transcript) Epoch() uint64 {
	return t.epoch
}

// Messages returns a deep copy of the entries in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the last entry.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// HasPending reports whether a speculative turn is open.
func (t *Transcript) HasPending() bool {
	return t.pending != nil
}

// Append adds a settled message at the end.
func (t *Transcript) Append(m Message) error {
	if m.IsPlaceholder() {
		return ErrPlaceholderID
	}
	if t.pending != nil {
		return ErrTurnPending
	}
	t.messages = append(t.messages, m.Clone())
	return nil
}

// Replace swaps the whole transcript for msgs, keeping their order.
// Any open speculative turn is abandoned.
func (t *Transcript) Replace(msgs []Message) {
	next := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsPlaceholder() {
			continue
		}
		next = append(next, m.Clone())
	}
	t.messages = next
	t.reset()
}

// Clear empties the transcript. Any open speculative turn is abandoned.
func (t *Transcript) Clear() {
	t.messages = t.messages[:0:0]
	t.reset()
}

func (t *Transcript) reset() {
	t.epoch++
	if t.pending != nil {
		t.pending.done = true
		t.pending = nil
	}
}

// LatestBand returns the band of the most recent entry that carries one.
func (t *Transcript) LatestBand() AgeBand {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].AgeBand != BandNone {
			return t.messages[i].AgeBand
		}
	}
	return BandNone
}

// =============================================================================
// SPECULATIVE TURN
// =============================================================================

// Pending is one open speculative turn: a user message followed by a typing
// placeholder. It settles exactly once, by Commit or Revert.
type Pending struct {
	t             *Transcript
	epoch         uint64
	userID        string
	placeholderID string
	done          bool
}

// Speculate appends the user message and a typing placeholder.
func (t *Transcript) Speculate(user Message, now time.Time) (*Pending, error) {
	if t.pending != nil {
		return nil, ErrTurnPending
	}
	if user.IsPlaceholder() {
		return nil, ErrPlaceholderID
	}
	ph := NewPlaceholder(now)
	t.messages = append(t.messages, user.Clone(), ph)
	t.pending = &Pending{
		t:             t,
		epoch:         t.epoch,
		userID:        user.ID,
		placeholderID: ph.ID,
	}
	return t.pending, nil
}

// UserID returns the id of the speculative user message.
func (p *Pending) UserID() string {
	return p.userID
}

// PlaceholderID returns the id of the typing placeholder.
func (p *Pending) PlaceholderID() string {
	return p.placeholderID
}

// Stale reports whether the transcript was replaced or cleared since Speculate.
func (p *Pending) Stale() bool {
	return p.done || p.t.epoch != p.epoch
}

// Commit removes the placeholder and appends the bot reply.
// It returns false when the turn was already settled or abandoned.
func (p *Pending) Commit(bot Message) bool {
	if p.Stale() {
		return false
	}
	p.t.removePlaceholder(p.placeholderID)
	p.t.messages = append(p.t.messages, bot.Clone())
	p.settle()
	return true
}

// Revert removes the placeholder and leaves the user message in place.
// It returns false when the turn was already settled or abandoned.
func (p *Pending) Revert() bool {
	if p.Stale() {
		return false
	}
	p.t.removePlaceholder(p.placeholderID)
	p.settle()
	return true
}

func (p *Pending) settle() {
	p.done = true
	if p.t.pending == p {
		p.t.pending = nil
	}
}

func (t *Transcript) removePlaceholder(id string) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}
