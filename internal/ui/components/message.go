// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE
// =============================================================================

// MessageBubble renders one transcript entry.
type MessageBubble struct {
	Message        model.Message
	Width          int
	ShowModeration bool
	TypingFrame    string

	markdown *glamour.TermRenderer
	theme    *styles.Theme
}

// NewMessageBubble creates a bubble for msg.
func NewMessageBubble(msg model.Message, theme *styles.Theme) *MessageBubble {
	return &MessageBubble{Message: msg, Width: 80, theme: theme}
}

// View renders the bubble.
func (b *MessageBubble) View() string {
	switch {
	case b.Message.IsPlaceholder():
		return b.renderTyping()
	case b.Message.IsUser():
		return b.renderUser()
	default:
		return b.renderBot()
	}
}

func (b *MessageBubble) renderUser() string {
	t := b.theme
	label := t.RoleLabel.Render("You") + " " + t.Timestamp.Render(b.Message.FormatTime())
	body := t.UserBubble.Width(bubbleWidth(b.Message.Content, b.Width*3/4)).Render(b.Message.Content)

	block := lipgloss.JoinVertical(lipgloss.Right, label, body)
	return lipgloss.PlaceHorizontal(b.Width, lipgloss.Right, block)
}

func (b *MessageBubble) renderBot() string {
	t := b.theme
	m := b.Message

	head := []string{t.RoleLabel.Render("Bot"), t.Timestamp.Render(m.FormatTime())}
	if badge := t.BandBadge(string(m.AgeBand)); badge != "" {
		head = append(head, badge)
	}
	if risk := t.RiskBadge(string(m.RiskLevel)); risk != "" {
		head = append(head, risk)
	}

	content := m.Content
	if b.markdown != nil {
		if out, err := b.markdown.Render(content); err == nil {
			content = strings.Trim(out, "\n")
		} else {
			logging.UI().Debug("markdown render failed", "error", err)
		}
	}

	lines := []string{
		strings.Join(head, " "),
		t.BotBubble.Width(maxInt(b.Width-4, 10)).Render(content),
	}
	lines = append(lines, b.markers()...)
	return strings.Join(lines, "\n")
}

// markers renders the safety annotations below a bot reply.
func (b *MessageBubble) markers() []string {
	t := b.theme
	m := b.Message

	var out []string
	if m.Adjusted {
		out = append(out, t.Marker.Render("  ✎ Adjusted for your age"))
	}
	if m.LiteracyInjected {
		out = append(out, t.Literacy.Render("  ℹ Includes a media-literacy tip"))
	}
	if m.AgeGated {
		out = append(out, t.AgeGate.Render("  ⚠ Tell us your age to continue"))
	}
	if !b.ShowModeration {
		return out
	}

	var cats []model.CategoryScore
	if m.Moderation != nil {
		line := "  ⚠ " + m.Moderation.Label()
		out = append(out, t.Moderation.Render(line))
		cats = m.Moderation.SortedCategories()
	} else {
		cats = m.SortedCategories()
	}
	if len(cats) > 0 {
		parts := make([]string, len(cats))
		for i, c := range cats {
			parts[i] = fmt.Sprintf("%s %.2f", c.Name, c.Score)
		}
		out = append(out, t.Category.Render("    "+strings.Join(parts, " · ")))
	}
	return out
}

func (b *MessageBubble) renderTyping() string {
	frame := b.TypingFrame
	if frame == "" {
		frame = model.TypingMarker
	}
	return b.theme.RoleLabel.Render("Bot") + " " + b.theme.Typing.Render("is typing "+frame)
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// MessageList renders a transcript.
type MessageList struct {
	messages       []model.Message
	width          int
	showModeration bool
	useMarkdown    bool
	typingFrame    string

	markdown *glamour.TermRenderer
	theme    *styles.Theme
}

// NewMessageList creates an empty list.
func NewMessageList(theme *styles.Theme) *MessageList {
	return &MessageList{width: 80, theme: theme}
}

// SetMessages replaces the rendered transcript.
func (l *MessageList) SetMessages(msgs []model.Message) {
	l.messages = msgs
}

// Messages returns the current transcript.
func (l *MessageList) Messages() []model.Message {
	return l.messages
}

// SetWidth sets the width and rebuilds the markdown renderer.
func (l *MessageList) SetWidth(width int) {
	if width == l.width && (l.markdown != nil || !l.useMarkdown) {
		return
	}
	l.width = width
	l.rebuildMarkdown()
}

// SetShowModeration toggles moderation details under bot replies.
func (l *MessageList) SetShowModeration(show bool) {
	l.showModeration = show
}

// SetMarkdown toggles markdown rendering of bot replies.
func (l *MessageList) SetMarkdown(enabled bool) {
	l.useMarkdown = enabled
	l.rebuildMarkdown()
}

// SetTypingFrame sets the animation frame of the typing placeholder.
func (l *MessageList) SetTypingFrame(frame string) {
	l.typingFrame = frame
}

func (l *MessageList) rebuildMarkdown() {
	l.markdown = nil
	if !l.useMarkdown {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(l.theme.GlamourStyle()),
		glamour.WithWordWrap(maxInt(l.width-8, 20)),
	)
	if err != nil {
		logging.UI().Warn("markdown renderer unavailable", "error", err)
		return
	}
	l.markdown = r
}

// View renders every message separated by a blank line.
func (l *MessageList) View() string {
	if len(l.messages) == 0 {
		return l.theme.EmptyState.Render("Say hi to start a conversation.")
	}
	parts := make([]string, 0, len(l.messages))
	for _, m := range l.messages {
		b := NewMessageBubble(m, l.theme)
		b.Width = l.width
		b.ShowModeration = l.showModeration
		b.TypingFrame = l.typingFrame
		if !m.IsUser() {
			b.markdown = l.markdown
		}
		parts = append(parts, b.View())
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// HELPERS
// =============================================================================

// bubbleWidth fits a bubble to its content, capped at max.
func bubbleWidth(content string, max int) int {
	w := 0
	for _, line := range strings.Split(content, "\n") {
		if lw := lipgloss.Width(line); lw > w {
			w = lw
		}
	}
	w += 2 // padding
	if w > max {
		w = max
	}
	return maxInt(w, 4)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
