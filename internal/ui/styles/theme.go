// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// LayoutMode is the width class of the terminal.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota
	LayoutMedium
	LayoutWide
)

// Theme holds all the styled components of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderCopy  lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble  lipgloss.Style
	BotBubble   lipgloss.Style
	Typing      lipgloss.Style
	Timestamp   lipgloss.Style
	RoleLabel   lipgloss.Style
	Marker      lipgloss.Style
	Literacy    lipgloss.Style
	AgeGate     lipgloss.Style
	Moderation  lipgloss.Style
	Category    lipgloss.Style
	EmptyState  lipgloss.Style
	NewMessages lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Spinner        lipgloss.Style

	// ==========================================================================
	// NOTICES
	// ==========================================================================

	Notice     lipgloss.Style
	NoticeInfo lipgloss.Style
}

// NewTheme creates a theme. mode is one of "auto", "dark" or "light";
// anything else is treated as "auto".
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ThemeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ThemeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		Width:        80,
		Height:       24,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderCopy = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.HeaderMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(BotBubbleBorder).
		Padding(0, 1)
	t.Typing = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.RoleLabel = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.Marker = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.Literacy = lipgloss.NewStyle().Foreground(Cyan)
	t.AgeGate = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.Moderation = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.Category = lipgloss.NewStyle().Foreground(TextMuted)
	t.EmptyState = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).Padding(1, 2)
	t.NewMessages = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 1)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Background(SurfaceDim).Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	t.Notice = lipgloss.NewStyle().
		Foreground(NoticeFg).
		Background(NoticeBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.NoticeInfo = t.Notice.
		Foreground(TextPrimary).
		Background(Surface).
		BorderForeground(Cyan)
}

// SetSize records the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode classifies the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// BandBadge renders an age band as a colored pill. Empty for no band.
func (t *Theme) BandBadge(band string) string {
	if band == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(BandColor(band)).
		Padding(0, 1).
		Render(band)
}

// RiskBadge renders a risk level. Empty for no risk.
func (t *Theme) RiskBadge(risk string) string {
	if risk == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(RiskColor(risk)).
		Render("risk " + risk)
}
