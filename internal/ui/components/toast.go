// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind is the severity of a toast.
type ToastKind int

const (
	// ToastKindStatus is informational.
	ToastKindStatus ToastKind = iota
	// ToastKindError reports a failed operation.
	ToastKindError
)

// StatusToastDuration is how long a status toast stays up.
const StatusToastDuration = 4 * time.Second

// ErrorToastDuration is how long an error notice stays up.
const ErrorToastDuration = 8 * time.Second

// ToastTickInterval is how often expiry is checked.
const ToastTickInterval = 500 * time.Millisecond

// Toast is a non-blocking notification shown above the input.
type Toast struct {
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// NewStatusToast creates an informational toast.
func NewStatusToast(message string, now time.Time) Toast {
	return Toast{Message: message, Kind: ToastKindStatus, CreatedAt: now, Duration: StatusToastDuration}
}

// ToastFromNotice converts a controller notice. A nil notice gives nil.
func ToastFromNotice(n *stream.Notice) *Toast {
	if n == nil {
		return nil
	}
	return &Toast{Message: n.Text, Kind: ToastKindError, CreatedAt: n.At, Duration: ErrorToastDuration}
}

// IsExpired reports whether the toast should be dismissed.
func (t *Toast) IsExpired(now time.Time) bool {
	return t == nil || now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TICKS
// =============================================================================

// ToastTickMsg triggers an expiry check.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next expiry check.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(ToastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderToast renders a toast no wider than width. Errors carry a dismiss hint.
func RenderToast(theme *styles.Theme, toast *Toast, width int) string {
	if toast == nil {
		return ""
	}
	text := toast.Message
	style := theme.NoticeInfo
	if toast.Kind == ToastKindError {
		style = theme.Notice
		text = "✗ " + text + "  (esc)"
	}
	// border and padding take four columns
	text = runewidth.Truncate(text, maxInt(width-4, 8), "…")
	return style.Render(text)
}
