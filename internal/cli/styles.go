// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for command output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/model"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	// ValueStyle is used for regular values
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	// ErrorStyle is used for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// WarningStyle is used for warnings and safety notices
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints and metadata
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// PromptStyle is the REPL prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	// BotStyle labels bot replies in the REPL
	BotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)
)

// bandStyles color the age band badge.
var bandStyles = map[model.AgeBand]lipgloss.Style{
	model.BandChild: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	model.BandTeen:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	model.BandAdult: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
}

// riskStyles color the risk badge.
var riskStyles = map[model.RiskLevel]lipgloss.Style{
	model.RiskLow:    DimStyle,
	model.RiskMedium: WarningStyle,
	model.RiskHigh:   ErrorStyle,
}

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule, 70 columns by default.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return DimStyle.Render(strings.Repeat("-", w))
}

// RenderLabel renders a fixed-width label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderBand renders the band badge, or "" for BandNone.
func RenderBand(b model.AgeBand) string {
	if b == model.BandNone {
		return ""
	}
	style, ok := bandStyles[b]
	if !ok {
		style = DimStyle
	}
	return style.Render("[" + string(b) + "]")
}

// RenderRisk renders the risk badge, or "" when no risk was reported.
func RenderRisk(r model.RiskLevel) string {
	if r == model.RiskNone {
		return ""
	}
	style, ok := riskStyles[r]
	if !ok {
		style = DimStyle
	}
	return style.Render("risk:" + string(r))
}
