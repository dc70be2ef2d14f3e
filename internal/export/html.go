// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page. Bot replies
// are rendered from Markdown and sanitized; user text is escaped.
type HTMLExporter struct {
	options   *Options
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

type htmlMessage struct {
	Role    string
	Name    string
	Time    string
	Notes   []string
	Body    template.HTML
	Blocked bool
}

type htmlPage struct {
	Title    string
	Username string
	Exported string
	Theme    string
	Messages []htmlMessage
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(tr *Transcript) ([]byte, error) {
	if err := tr.validate(); err != nil {
		return nil, err
	}

	page := htmlPage{
		Title:    "Session " + tr.SessionID,
		Username: tr.Username,
		Exported: formatTimestamp(tr.ExportedAt),
		Theme:    e.options.Theme,
	}
	if page.Theme != "light" {
		page.Theme = "dark"
	}

	for _, msg := range tr.Messages {
		hm := htmlMessage{
			Role:    msg.Role.String(),
			Name:    msg.Role.DisplayName(),
			Blocked: msg.Moderation != nil,
		}
		if e.options.IncludeTimestamps {
			hm.Time = msg.FormatTime()
		}
		if e.options.IncludeSafety {
			hm.Notes = annotations(msg)
		}
		body, err := e.renderBody(msg.IsUser(), msg.Content)
		if err != nil {
			return nil, err
		}
		hm.Body = body
		page.Messages = append(page.Messages, hm)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *HTMLExporter) renderBody(user bool, content string) (template.HTML, error) {
	if user {
		escaped := template.HTMLEscapeString(content)
		return template.HTML("<p>" + strings.ReplaceAll(escaped, "\n", "<br/>") + "</p>"), nil
	}
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return template.HTML(e.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="generator" content="safechat-tui">
<title>{{.Title}}</title>
<style>
:root { --bg:#0f172a; --fg:#e2e8f0; --muted:#94a3b8; --user:#1e3a8a; --bot:#1e293b; --warn:#f59e0b; }
.light { --bg:#f8fafc; --fg:#0f172a; --muted:#64748b; --user:#dbeafe; --bot:#ffffff; --warn:#b45309; }
body { margin:0; background:var(--bg); color:var(--fg); font:15px/1.5 system-ui, sans-serif; }
main { max-width:760px; margin:0 auto; padding:24px; }
header { border-bottom:1px solid var(--muted); margin-bottom:16px; }
.meta, .time, .notes { color:var(--muted); font-size:13px; }
.msg { border-radius:10px; padding:10px 14px; margin:10px 0; }
.user { background:var(--user); margin-left:15%; }
.bot { background:var(--bot); margin-right:15%; }
.blocked { border-left:3px solid var(--warn); }
pre { overflow-x:auto; }
</style>
</head>
<body class="{{.Theme}}">
<main>
<header>
<h1>{{.Title}}</h1>
<p class="meta">{{if .Username}}{{.Username}} · {{end}}exported {{.Exported}}</p>
</header>
{{range .Messages}}<section class="msg {{.Role}}{{if .Blocked}} blocked{{end}}">
<div><strong>{{.Name}}</strong>{{if .Time}} <span class="time">{{.Time}}</span>{{end}}</div>
{{.Body}}
{{if .Notes}}<div class="notes">{{range $i, $n := .Notes}}{{if $i}} · {{end}}{{$n}}{{end}}</div>{{end}}
</section>
{{end}}</main>
</body>
</html>
`))
