// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/scroll"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// NewMessagesLabel is the text of the jump-to-bottom affordance.
const NewMessagesLabel = "New messages ↓"

// =============================================================================
// CHAT VIEWPORT
// =============================================================================

// ChatViewport is the scrollable transcript. Follow/hold decisions are made
// by a scroll.Coordinator against the geometry from before each change.
type ChatViewport struct {
	viewport    viewport.Model
	list        *MessageList
	coordinator *scroll.Coordinator
	theme       *styles.Theme

	width  int
	height int
	sized  bool

	// signature of the last rendered transcript, to tell real mutations
	// from redraws
	signature string
}

// NewChatViewport creates a viewport that follows within threshold rows.
func NewChatViewport(theme *styles.Theme, threshold int) *ChatViewport {
	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	return &ChatViewport{
		viewport:    vp,
		list:        NewMessageList(theme),
		coordinator: scroll.New(threshold),
		theme:       theme,
		width:       80,
		height:      20,
	}
}

// List exposes the message list for rendering options.
func (cv *ChatViewport) List() *MessageList {
	return cv.list
}

// SetSize updates the dimensions and keeps a following viewer at the bottom.
func (cv *ChatViewport) SetSize(width, height int) {
	height = maxInt(height, 1)
	if cv.sized && width == cv.width && height == cv.height {
		return
	}
	cv.sized = true
	cv.width = width
	cv.height = height
	cv.viewport.Width = width
	cv.viewport.Height = cv.height
	cv.list.SetWidth(maxInt(width-2, 10))
	cv.render()
	if cv.coordinator.AtBottom() {
		cv.viewport.GotoBottom()
	}
}

// SetMessages renders a new transcript snapshot. A changed transcript is a
// mutation: the coordinator decides from the pre-change geometry whether to
// follow the bottom or hold position and raise the indicator.
func (cv *ChatViewport) SetMessages(msgs []model.Message) {
	sig := transcriptSignature(msgs)
	changed := sig != cv.signature
	cv.signature = sig

	cv.list.SetMessages(msgs)
	if !changed {
		cv.render()
		return
	}

	if len(msgs) == 0 {
		cv.coordinator.ScrollToBottom()
		cv.render()
		cv.viewport.GotoTop()
		return
	}

	decision := cv.coordinator.OnMutation(cv.Geometry())
	cv.render()
	if decision == scroll.Follow {
		cv.viewport.GotoBottom()
	}
}

// Refresh re-renders without treating the content as a mutation.
func (cv *ChatViewport) Refresh() {
	cv.render()
}

func (cv *ChatViewport) render() {
	offset := cv.viewport.YOffset
	cv.viewport.SetContent(cv.list.View())
	cv.viewport.SetYOffset(offset)
}

// Geometry returns the current scroll geometry in rows.
func (cv *ChatViewport) Geometry() scroll.Geometry {
	return scroll.Geometry{
		Offset:         cv.viewport.YOffset,
		ViewportHeight: cv.viewport.Height,
		ContentHeight:  cv.viewport.TotalLineCount(),
	}
}

// Update forwards keys and mouse events to the viewport and reports the new
// position to the coordinator.
func (cv *ChatViewport) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	cv.viewport, cmd = cv.viewport.Update(msg)
	cv.coordinator.OnScroll(cv.Geometry())
	return cmd
}

// ScrollUp moves up by n rows.
func (cv *ChatViewport) ScrollUp(n int) {
	cv.viewport.LineUp(n)
	cv.coordinator.OnScroll(cv.Geometry())
}

// ScrollDown moves down by n rows.
func (cv *ChatViewport) ScrollDown(n int) {
	cv.viewport.LineDown(n)
	cv.coordinator.OnScroll(cv.Geometry())
}

// PageUp moves up one screen.
func (cv *ChatViewport) PageUp() {
	cv.viewport.ViewUp()
	cv.coordinator.OnScroll(cv.Geometry())
}

// PageDown moves down one screen.
func (cv *ChatViewport) PageDown() {
	cv.viewport.ViewDown()
	cv.coordinator.OnScroll(cv.Geometry())
}

// ScrollToTop jumps to the first row.
func (cv *ChatViewport) ScrollToTop() {
	cv.viewport.GotoTop()
	cv.coordinator.OnScroll(cv.Geometry())
}

// ScrollToBottom jumps to the last row and clears the indicator.
func (cv *ChatViewport) ScrollToBottom() {
	cv.viewport.GotoBottom()
	cv.coordinator.ScrollToBottom()
}

// AtBottom reports whether the viewer is following the conversation.
func (cv *ChatViewport) AtBottom() bool {
	return cv.coordinator.AtBottom()
}

// ShowIndicator reports whether new content arrived out of view.
func (cv *ChatViewport) ShowIndicator() bool {
	return cv.coordinator.ShowIndicator()
}

// ScrollPercent returns the position in the range [0, 1].
func (cv *ChatViewport) ScrollPercent() float64 {
	return cv.viewport.ScrollPercent()
}

// View renders the visible rows, with the indicator over the last row.
func (cv *ChatViewport) View() string {
	out := cv.viewport.View()
	if !cv.ShowIndicator() {
		return out
	}
	lines := strings.Split(out, "\n")
	badge := cv.theme.NewMessages.Render(NewMessagesLabel)
	lines[len(lines)-1] = lipgloss.PlaceHorizontal(cv.width, lipgloss.Center, badge)
	return strings.Join(lines, "\n")
}

// transcriptSignature identifies transcript content cheaply: ids in order
// plus the length of the final entry.
func transcriptSignature(msgs []model.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.ID)
		sb.WriteByte('|')
	}
	sb.WriteString(strconv.Itoa(len(msgs[len(msgs)-1].Content)))
	return sb.String()
}
