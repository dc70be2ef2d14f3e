// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
//
// # Supported Formats
//
//   - Markdown: human-readable, safety annotations inline
//   - JSON: every message field, for tooling
//   - HTML: standalone page; bot replies rendered from Markdown and sanitized
//
// # Usage
//
//	exp, err := export.New(export.FormatHTML, nil)
//	path, err := export.ExportToFile(tr, exp, "")
package export
