// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// Shortcut is a key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the hints shown on wide terminals.
var DefaultShortcuts = []Shortcut{
	{"enter", "send"},
	{"ctrl+n", "new chat"},
	{"end", "bottom"},
	{"ctrl+l", "sign out"},
	{"ctrl+c", "quit"},
}

// StatusBar is the bottom line.
type StatusBar struct {
	Width         int
	Submitting    bool
	SpinnerView   string
	AtBottom      bool
	ScrollPercent float64

	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, AtBottom: true, theme: theme}
}

// View renders the bar.
func (s *StatusBar) View() string {
	t := s.theme

	var left string
	switch {
	case s.Submitting:
		left = s.SpinnerView + " " + t.Typing.Render("waiting for reply")
	case !s.AtBottom:
		left = t.ShortcutDesc.Render(fmt.Sprintf("%3.0f%%", s.ScrollPercent*100))
	}

	shortcuts := DefaultShortcuts
	switch t.GetLayoutMode() {
	case styles.LayoutNarrow:
		shortcuts = shortcuts[:1]
	case styles.LayoutMedium:
		shortcuts = shortcuts[:3]
	}
	hints := make([]string, len(shortcuts))
	for i, sc := range shortcuts {
		hints[i] = t.ShortcutKey.Render(sc.Key) + " " + t.ShortcutDesc.Render(sc.Desc)
	}
	right := strings.Join(hints, "  ")

	gap := maxInt(s.Width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return t.StatusBar.Width(s.Width).Render(left + strings.Repeat(" ", gap) + right)
}
