// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleBot:
		return "SafeChat"
	default:
		return string(r)
	}
}

// ParseRole maps a backend role string onto a Role.
// Anything that is not "user" is treated as bot-authored.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleBot
}

// =============================================================================
// PLACEHOLDER AND MARKERS
// =============================================================================

const (
	// PlaceholderPrefix prefixes the id of the provisional typing entry.
	PlaceholderPrefix = "typing-"

	// TypingMarker is the content of the provisional typing entry.
	TypingMarker = "..."

	// HistoryPrefix prefixes ids reconstructed from a backend history index.
	HistoryPrefix = "history-"

	// AdjustedMarker is the phrase the backend embeds in rewritten replies.
	AdjustedMarker = "Adjusted to keep things clear and safe"
)

// IsPlaceholderID reports whether id names a typing placeholder.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// HistoryID returns the id for the i-th entry of a backend history.
func HistoryID(i int) string {
	return fmt.Sprintf("%s%d", HistoryPrefix, i)
}

// DetectAdjusted returns the adjusted flag for a bot reply.
// An explicit backend value wins; otherwise the marker phrase is searched for.
func DetectAdjusted(explicit *bool, content string) bool {
	if explicit != nil {
		return *explicit
	}
	return strings.Contains(content, AdjustedMarker)
}

// =============================================================================
// MODERATION EXPLANATION
// =============================================================================

// CategoryScore is one moderation category with its score.
type CategoryScore struct {
	Name  string
	Score float64
}

// ModerationExplain is the backend's reason for altering or blocking content.
type ModerationExplain struct {
	Reason     string             `json:"reason"`
	Categories map[string]float64 `json:"categories,omitempty"`
	AgeBand    AgeBand            `json:"age_band,omitempty"`
}

// Label returns the short user-facing label for the reason.
func (m ModerationExplain) Label() string {
	switch m.Reason {
	case "content_safety_block":
		return "Blocked for safety"
	case "jailbreak_detected":
		return "Attempt blocked"
	default:
		return "Safety notice"
	}
}

// SortedCategories returns categories ordered by descending score, then name.
func (m ModerationExplain) SortedCategories() []CategoryScore {
	return sortCategories(m.Categories)
}

func sortCategories(in map[string]float64) []CategoryScore {
	out := make([]CategoryScore, 0, len(in))
	for name, score := range in {
		out = append(out, CategoryScore{Name: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single transcript entry.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Safety metadata (bot turns)
	AgeBand          AgeBand            `json:"age_band,omitempty"`
	RiskLevel        RiskLevel          `json:"risk_level,omitempty"`
	LiteracyInjected bool               `json:"literacy_injected,omitempty"`
	Adjusted         bool               `json:"adjusted,omitempty"`
	AgeGated         bool               `json:"age_gated,omitempty"`
	Moderation       *ModerationExplain `json:"moderation_explain,omitempty"`

	// Categories recorded by the backend for history entries
	Categories map[string]float64 `json:"categories,omitempty"`
}

// NewUserMessage creates a user message with a client-generated id.
func NewUserMessage(content string, now time.Time) Message {
	return Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewBotMessage creates a bot message with a client-generated id.
func NewBotMessage(content string, now time.Time) Message {
	return Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      RoleBot,
		Content:   content,
		Timestamp: now,
	}
}

// NewPlaceholder creates the provisional typing entry.
func NewPlaceholder(now time.Time) Message {
	return Message{
		ID:        fmt.Sprintf("%s%d", PlaceholderPrefix, now.UnixNano()),
		Role:      RoleBot,
		Content:   TypingMarker,
		Timestamp: now,
	}
}

// IsPlaceholder reports whether the message is the typing placeholder.
func (m Message) IsPlaceholder() bool {
	return IsPlaceholderID(m.ID)
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// SortedCategories returns history categories ordered by descending score.
func (m Message) SortedCategories() []CategoryScore {
	return sortCategories(m.Categories)
}

// Clone returns a deep copy so snapshots never alias transcript state.
func (m Message) Clone() Message {
	c := m
	if m.Categories != nil {
		c.Categories = make(map[string]float64, len(m.Categories))
		for k, v := range m.Categories {
			c.Categories[k] = v
		}
	}
	if m.Moderation != nil {
		mod := *m.Moderation
		if m.Moderation.Categories != nil {
			mod.Categories = make(map[string]float64, len(m.Moderation.Categories))
			for k, v := range m.Moderation.Categories {
				mod.Categories[k] = v
			}
		}
		c.Moderation = &mod
	}
	return c
}

// FormatTime returns the time of day the message was recorded.
func (m Message) FormatTime() string {
	if m.Timestamp.IsZero() {
		return ""
	}
	return m.Timestamp.Local().Format("15:04")
}
