// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/safechat-tui/internal/util"
)

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions as a table: id, last used, turns, preview.
func FormatSessionList(sessions []SessionMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("---------------------------------------------------------------\n")
	sb.WriteString(pad("ID", 14) + " " + pad("Last used", 17) + " " + pad("Turns", 5) + " Preview\n")
	sb.WriteString("---------------------------------------------------------------\n")

	for _, s := range sessions {
		sb.WriteString(pad(util.TruncateWidth(s.ID, 14), 14) + " " +
			pad(s.LastUsed.Local().Format("2006-01-02 15:04"), 17) + " " +
			pad(strconv.Itoa(s.TurnCount), 5) + " " +
			util.TruncateWidth(s.Preview, 30) + "\n")
	}
	return sb.String()
}

// pad pads s with spaces to the given display width.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FormatAge returns a short relative age such as "5m ago".
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h ago"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d ago"
	}
}
