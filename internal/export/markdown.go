// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown with a YAML front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(tr *Transcript) ([]byte, error) {
	if err := tr.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "session: %s\n", escapeYAML(tr.SessionID))
	if tr.Username != "" {
		fmt.Fprintf(&sb, "user: %s\n", escapeYAML(tr.Username))
	}
	fmt.Fprintf(&sb, "messages: %d\n", len(tr.Messages))
	fmt.Fprintf(&sb, "exported: %s\n", tr.ExportedAt.Format(time.RFC3339))
	sb.WriteString("generator: safechat-tui\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# Session %s\n\n", tr.SessionID)

	for i, msg := range tr.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**")
		if e.options.IncludeTimestamps {
			if ts := msg.FormatTime(); ts != "" {
				sb.WriteString(" <sub>" + ts + "</sub>")
			}
		}
		if e.options.IncludeSafety {
			if notes := annotations(msg); len(notes) > 0 {
				sb.WriteString(" _" + strings.Join(notes, ", ") + "_")
			}
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimRight(msg.Content, "\n"))
		sb.WriteString("\n\n")
		if i < len(tr.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeYAML quotes values that would confuse a YAML parser.
func escapeYAML(s string) string {
	if s == "" || strings.ContainsAny(s, ":#'\"\n[]{}&*!|>%@`") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
	}
	return s
}
