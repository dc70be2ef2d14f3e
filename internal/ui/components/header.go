// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// =============================================================================
// HEADER
// =============================================================================

// Header shows who is chatting, the active band and the session.
type Header struct {
	Title       string
	Username    string
	AgeBand     model.AgeBand
	AgeOverride int
	SessionID   string
	Width       int

	theme *styles.Theme
}

// NewHeader creates a header with the default title.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{Title: "SafeChat", Width: 80, theme: theme}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// Height is the number of rows View renders.
func (h *Header) Height() int {
	if h.AgeBand == model.BandNone {
		return 2
	}
	return 3
}

// View renders the header.
func (h *Header) View() string {
	t := h.theme

	left := t.HeaderTitle.Render(h.Title)
	if badge := t.BandBadge(string(h.AgeBand)); badge != "" {
		left += " " + badge
	}

	who := "not signed in"
	if h.Username != "" {
		who = h.Username
	}
	if h.AgeOverride > 0 {
		who += fmt.Sprintf(" · age %d", h.AgeOverride)
	}
	if h.SessionID != "" && t.GetLayoutMode() != styles.LayoutNarrow {
		who += " · " + runewidth.Truncate(h.SessionID, 12, "…")
	}
	right := t.HeaderMeta.Render(who)

	gap := h.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = t.HeaderMeta.Render(runewidth.Truncate(who, maxInt(h.Width-4-lipgloss.Width(left), 1), "…"))
		gap = 1
	}
	top := left + lipgloss.NewStyle().Width(gap).Render("") + right

	rows := top
	if copyText := h.AgeBand.Copy(); copyText != "" {
		rows += "\n" + t.HeaderCopy.Render(runewidth.Truncate(copyText, maxInt(h.Width-2, 8), "…"))
	}
	return t.Header.Width(h.Width).Render(rows)
}
