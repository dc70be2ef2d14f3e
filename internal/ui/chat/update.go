// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/ui/components"
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true

	case StreamChangedMsg:
		m.refresh()
		cmds = append(cmds, waitForChange(m.changes, m.done))

	case SubmitDoneMsg:
		cmds = append(cmds, m.handleSubmitDone(msg))

	case NewChatDoneMsg:
		m.refresh()
		text := "New chat started"
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrNotAuthenticated) && !errors.Is(msg.Err, context.Canceled) {
			logging.UI().Warn("new chat without session", "error", msg.Err)
			text += " (session pending)"
		}
		m.setStatus(text)

	case ResumeDoneMsg:
		if msg.Err != nil {
			logging.UI().Warn("resume failed", "session", msg.SessionID, "error", msg.Err)
			m.setError("Could not load that conversation.")
		} else {
			m.viewport.ScrollToBottom()
			m.setStatus("Resumed conversation")
		}

	case LogoutDoneMsg:
		m.refresh()
		m.setStatus("Signed out")

	case ExportDoneMsg:
		if msg.Err != nil {
			logging.UI().Warn("export failed", "error", msg.Err)
			m.setError("Export failed: " + msg.Err.Error())
		} else {
			m.setStatus("Saved " + msg.Path)
		}

	case spinner.TickMsg:
		if !m.view.Submitting {
			m.spinning = false
			break
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.viewport.List().SetTypingFrame(m.spinner.View())
		m.viewport.Refresh()
		cmds = append(cmds, cmd)

	case components.ToastTickMsg:
		m.ticking = false
		if m.view.Notice != nil && m.view.Notice.Expired(msg.Time, components.ErrorToastDuration) {
			m.stream.DismissNotice()
			m.refresh()
		}
		if m.status.IsExpired(msg.Time) {
			m.status = nil
		}

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		cmds = append(cmds, m.viewport.Update(msg))
	}

	if m.view.Submitting && !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	if !m.ticking && (m.view.Notice != nil || m.status != nil) {
		m.ticking = true
		cmds = append(cmds, components.ToastTickCmd())
	}

	m.layout()
	m.syncStatusBar()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleSubmitDone(msg SubmitDoneMsg) tea.Cmd {
	switch {
	case msg.Err == nil:
	case errors.Is(msg.Err, stream.ErrBusy):
		m.setStatus("Still waiting for the last reply")
	case errors.Is(msg.Err, stream.ErrDiscarded), errors.Is(msg.Err, stream.ErrEmptyMessage), errors.Is(msg.Err, context.Canceled):
		logging.UI().Debug("submission settled without reply", "error", msg.Err)
	default:
		// The controller already raised a notice.
		logging.UI().Debug("submission failed", "error", msg.Err)
	}
	return nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	inputEmpty := m.input.Value() == ""
	s := msg.String()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		if m.view.Notice != nil {
			m.stream.DismissNotice()
			m.refresh()
		} else {
			m.status = nil
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		return m, m.newChatCmd()

	case key.Matches(msg, m.keys.Logout):
		return m, m.logoutCmd()

	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		return m, nil

	case key.Matches(msg, m.keys.Top) && (inputEmpty || s == "ctrl+home"):
		m.viewport.ScrollToTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom) && (inputEmpty || s == "ctrl+end"):
		m.viewport.ScrollToBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or runs it as a slash command.
func (m Model) submit() (Model, tea.Cmd) {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}
	if m.view.Submitting {
		m.setStatus("Still waiting for the last reply")
		return m, nil
	}

	m.input.Reset()
	return m, m.submitCmd(raw)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) submitCmd(text string) tea.Cmd {
	ctx, st := m.ctx, m.stream
	return func() tea.Msg {
		_, err := st.Submit(ctx, text)
		return SubmitDoneMsg{Err: err}
	}
}

func (m Model) newChatCmd() tea.Cmd {
	ctx, sessions := m.ctx, m.sessions
	return func() tea.Msg {
		id, err := sessions.StartNewChat(ctx)
		return NewChatDoneMsg{SessionID: id, Err: err}
	}
}

func (m Model) resumeCmd(id string) tea.Cmd {
	ctx, st := m.ctx, m.stream
	return func() tea.Msg {
		return ResumeDoneMsg{SessionID: id, Err: st.Resume(ctx, id)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	ctx, ident := m.ctx, m.identity
	return func() tea.Msg {
		ident.Logout(ctx)
		return LogoutDoneMsg{}
	}
}

func (m Model) exportCmd(format, path string) tea.Cmd {
	save, view := m.opts.Export, m.view
	return func() tea.Msg {
		written, err := save(view, format, path)
		return ExportDoneMsg{Path: written, Err: err}
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) setStatus(text string) {
	t := components.NewStatusToast(text, time.Now())
	m.status = &t
}

func (m *Model) setError(text string) {
	m.status = &components.Toast{
		Message:   text,
		Kind:      components.ToastKindError,
		CreatedAt: time.Now(),
		Duration:  components.ErrorToastDuration,
	}
}

// activeToast prefers the controller notice over the local status.
func (m Model) activeToast() *components.Toast {
	if n := components.ToastFromNotice(m.view.Notice); n != nil {
		return n
	}
	return m.status
}

// layout sizes the components for the current window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.header.SetWidth(m.width)
	m.statusBar.Width = m.width
	m.input.Width = maxInt(m.width-8, 10)

	used := m.header.Height() + inputHeight + statusHeight
	if toast := m.activeToast(); toast != nil {
		used += lipgloss.Height(components.RenderToast(m.theme, toast, m.width))
	}
	m.viewport.SetSize(m.width, maxInt(m.height-used, 1))
}

const (
	inputHeight  = 3
	statusHeight = 1
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
