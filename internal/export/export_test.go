// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/safechat-tui/internal/model"
)

func sampleTranscript() *Transcript {
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.Local)
	user := model.NewUserMessage("hello <b>there</b>", now)
	bot := model.NewBotMessage("Hi! Here is a **tip**.\n\n<script>alert(1)</script>", now)
	bot.AgeBand = model.BandTeen
	bot.RiskLevel = model.RiskLow
	bot.Moderation = &model.ModerationExplain{Reason: "jailbreak_detected", Categories: map[string]float64{"violence": 0.91}}
	return NewTranscript("s1", "mia", []model.Message{user, bot, model.NewPlaceholder(now)})
}

func TestNewTranscript_DropsPlaceholder(t *testing.T) {
	tr := sampleTranscript()
	require.Len(t, tr.Messages, 2)
	for _, m := range tr.Messages {
		assert.False(t, m.IsPlaceholder())
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatMarkdown, "md": FormatMarkdown, ".html": FormatHTML, "HTM": FormatHTML, "json": FormatJSON}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)
	assert.True(t, strings.HasPrefix(md, "---\nsession: s1\nuser: mia\nmessages: 2\n"))
	assert.Contains(t, md, "# Session s1")
	assert.Contains(t, md, "**You**")
	assert.Contains(t, md, "**SafeChat**")
	assert.Contains(t, md, "band teen")
	assert.Contains(t, md, "Attempt blocked")
	assert.Contains(t, md, "violence 0.91")
	assert.NotContains(t, md, model.TypingMarker)
}

func TestMarkdownExport_NoSafety(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(sampleTranscript())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "band teen")
	assert.NotContains(t, string(out), "<sub>")
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter().Export(sampleTranscript())
	require.NoError(t, err)

	var decoded struct {
		SessionID string          `json:"session_id"`
		Messages  []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "s1", decoded.SessionID)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, model.BandTeen, decoded.Messages[1].AgeBand)
}

func TestHTMLExport_SanitizesAndEscapes(t *testing.T) {
	out, err := NewHTMLExporter(&Options{IncludeSafety: true, Theme: "light"}).Export(sampleTranscript())
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, `<body class="light">`)
	assert.Contains(t, page, "hello &lt;b&gt;there&lt;/b&gt;")
	assert.Contains(t, page, "<strong>tip</strong>")
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "msg bot blocked")
	assert.Contains(t, page, "band teen")
}

func TestExport_EmptyTranscript(t *testing.T) {
	tr := NewTranscript("s1", "", nil)
	for _, f := range []Format{FormatMarkdown, FormatJSON, FormatHTML} {
		exp, err := New(f, nil)
		require.NoError(t, err)
		_, err = exp.Export(tr)
		assert.ErrorIs(t, err, ErrEmptyTranscript, string(f))
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(FormatMarkdown, nil)
	require.NoError(t, err)

	path, err := ExportToFile(sampleTranscript(), exp, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "safechat_s1_"))
	assert.Equal(t, ".md", filepath.Ext(path))

	explicit := filepath.Join(dir, "out.html")
	html, err := New(FormatHTML, nil)
	require.NoError(t, err)
	got, err := ExportToFile(sampleTranscript(), html, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	info, err := os.Stat(explicit)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c_d", sanitizeFilename("a/b:c d"))
	assert.Equal(t, "conversation", sanitizeFilename(""))
}
