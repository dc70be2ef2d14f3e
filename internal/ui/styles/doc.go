// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colors and lipgloss styles of the chat screen.
//
// Colors are lipgloss.AdaptiveColor values so the same palette works on light
// and dark terminals. Theme resolves the background once with termenv and
// builds every style the components use.
//
// # Key Types
//
//   - Theme: precomputed styles plus the detected color profile
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	theme.SetSize(width, height)
//	out := theme.UserBubble.Render(text)
//
// Badge helpers render the age band and risk level of a reply:
//
//	theme.BandBadge("teen")   // " teen "
//	theme.RiskBadge("high")   // " risk high "
package styles
