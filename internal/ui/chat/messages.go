// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import tea "github.com/charmbracelet/bubbletea"

// StreamChangedMsg reports that the controller snapshot changed.
type StreamChangedMsg struct{}

// SubmitDoneMsg is sent when a submission settles.
type SubmitDoneMsg struct {
	Err error
}

// NewChatDoneMsg is sent when a new chat was requested.
type NewChatDoneMsg struct {
	SessionID string
	Err       error
}

// ResumeDoneMsg is sent when a session resume finished.
type ResumeDoneMsg struct {
	SessionID string
	Err       error
}

// LogoutDoneMsg is sent after sign-out.
type LogoutDoneMsg struct{}

// ExportDoneMsg is sent when an export finished.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// waitForChange blocks until the controller signals a change or done closes.
func waitForChange(changes <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changes:
			return StreamChangedMsg{}
		case <-done:
			return nil
		}
	}
}
