// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/ui/components"
)

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	parts := []string{
		m.header.View(),
		m.viewport.View(),
	}
	if toast := m.activeToast(); toast != nil {
		parts = append(parts, components.RenderToast(m.theme, toast, m.width))
	}
	parts = append(parts,
		m.theme.InputContainer.Width(maxInt(m.width-2, 10)).Render(m.input.View()),
		m.statusBar.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
