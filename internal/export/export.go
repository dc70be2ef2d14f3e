// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is one conversation as handed to an Exporter.
type Transcript struct {
	SessionID  string          `json:"session_id"`
	Username   string          `json:"username,omitempty"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// NewTranscript builds a Transcript, dropping typing placeholders.
func NewTranscript(sessionID, username string, msgs []model.Message) *Transcript {
	tr := &Transcript{
		SessionID:  sessionID,
		Username:   username,
		ExportedAt: time.Now(),
		Messages:   make([]model.Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		if m.IsPlaceholder() {
			continue
		}
		tr.Messages = append(tr.Messages, m)
	}
	return tr
}

func (tr *Transcript) validate() error {
	if tr == nil {
		return fmt.Errorf("transcript is nil")
	}
	if len(tr.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to one output format.
type Exporter interface {
	Export(tr *Transcript) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want markdown, json or html)", s)
}

// Options configures export behavior.
type Options struct {
	// IncludeTimestamps adds the time of day to each message.
	IncludeTimestamps bool

	// IncludeSafety adds band, risk and moderation annotations.
	IncludeSafety bool

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeTimestamps: true,
		IncludeSafety:     true,
		Theme:             "dark",
	}
}

// New returns the Exporter for f.
func New(f Format, opts *Options) (Exporter, error) {
	switch f {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// =============================================================================
// FILES
// =============================================================================

// ExportToFile writes tr to path and returns the path written. An empty
// path or an existing directory gets a generated file name.
func ExportToFile(tr *Transcript, exp Exporter, path string) (string, error) {
	content, err := exp.Export(tr)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		path = "."
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFilename(tr, exp, time.Now()))
	}

	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// DefaultFilename returns safechat_<session>_<timestamp><ext>.
func DefaultFilename(tr *Transcript, exp Exporter, now time.Time) string {
	return fmt.Sprintf("safechat_%s_%s%s",
		sanitizeFilename(tr.SessionID),
		now.Format("20060102_150405"),
		exp.FileExtension(),
	)
}

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 40)

	var sb strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			sb.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			sb.WriteRune('_')
		case r < 32 || r == 127:
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "conversation"
	}
	return sb.String()
}

// =============================================================================
// HELPERS
// =============================================================================

// annotations lists the safety notes shown beside a message.
func annotations(m model.Message) []string {
	var out []string
	if m.AgeBand != model.BandNone {
		out = append(out, "band "+string(m.AgeBand))
	}
	if m.RiskLevel != model.RiskNone {
		out = append(out, "risk "+string(m.RiskLevel))
	}
	if m.Adjusted {
		out = append(out, "adjusted")
	}
	if m.LiteracyInjected {
		out = append(out, "media-literacy tip")
	}
	if m.AgeGated {
		out = append(out, "age requested")
	}
	if m.Moderation != nil {
		out = append(out, m.Moderation.Label())
		for _, c := range m.Moderation.SortedCategories() {
			out = append(out, c.Name+" "+strconv.FormatFloat(c.Score, 'f', 2, 64))
		}
	}
	for _, c := range m.SortedCategories() {
		out = append(out, c.Name+" "+strconv.FormatFloat(c.Score, 'f', 2, 64))
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
