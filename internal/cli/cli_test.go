// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"go/format"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/config"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/stream"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		booleans []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--limit", "50"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "50" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "50")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"prune", "--older-than=48h"},
			wantSub: "prune",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("older-than") != "48h" {
					t.Errorf("Flag(older-than) = %q, want %q", p.Flag("older-than"), "48h")
				}
			},
		},
		{
			name:     "declared boolean keeps next positional",
			args:     []string{"history", "--json", "s12"},
			booleans: []string{"json"},
			wantSub:  "history",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
				if p.Positional(1) != "s12" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "s12")
				}
			},
		},
		{
			name:    "undeclared flag consumes value",
			args:    []string{"history", "--json", "s12"},
			wantSub: "history",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("json") != "s12" {
					t.Errorf("Flag(json) = %q, want %q", p.Flag("json"), "s12")
				}
			},
		},
		{
			name:     "explicit boolean value",
			args:     []string{"list", "--all=false"},
			booleans: []string{"all"},
			wantSub:  "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("all") {
					t.Error("BoolFlag(all) should be false")
				}
				if !p.HasFlag("all") {
					t.Error("HasFlag(all) should be true")
				}
			},
		},
		{
			name:    "terminator keeps dashes positional",
			args:    []string{"set", "--", "-5"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "-5" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "-5")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.booleans...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	p := NewArgParser(nil)
	if p.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", p.Subcommand())
	}
	if p.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", p.PositionalCount())
	}
	if len(p.PositionalFrom(1)) != 0 {
		t.Error("PositionalFrom(1) should be empty")
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	p := NewArgParser([]string{"--user", "mia"})
	if got := p.FlagOrDefault("user", "x"); got != "mia" {
		t.Errorf("FlagOrDefault(user) = %q, want mia", got)
	}
	if got := p.FlagOrDefault("missing", "x"); got != "x" {
		t.Errorf("FlagOrDefault(missing) = %q, want x", got)
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"12", 12, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "age")
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIntWithValidation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		if v, err := ParseBoolString(s); err != nil || !v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"false", "no", "0", "off"} {
		if v, err := ParseBoolString(s); err != nil || v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		want     Command
		validate func(*testing.T, Args)
	}{
		{name: "no args launches tui", argv: nil, want: CmdTUI},
		{
			name: "tui with age",
			argv: []string{"--age", "11"},
			want: CmdTUI,
			validate: func(t *testing.T, a Args) {
				if a.Age != 11 {
					t.Errorf("Age = %d, want 11", a.Age)
				}
			},
		},
		{
			name: "chat with backend",
			argv: []string{"chat", "--backend", "http://example.test"},
			want: CmdChat,
			validate: func(t *testing.T, a Args) {
				if a.Backend != "http://example.test" {
					t.Errorf("Backend = %q", a.Backend)
				}
			},
		},
		{
			name: "login user flag",
			argv: []string{"login", "--user", "mia"},
			want: CmdLogin,
			validate: func(t *testing.T, a Args) {
				if a.User != "mia" {
					t.Errorf("User = %q, want mia", a.User)
				}
			},
		},
		{
			name: "login positional user",
			argv: []string{"login", "mia"},
			want: CmdLogin,
			validate: func(t *testing.T, a Args) {
				if a.User != "mia" {
					t.Errorf("User = %q, want mia", a.User)
				}
			},
		},
		{name: "logout", argv: []string{"logout"}, want: CmdLogout},
		{name: "whoami alias", argv: []string{"me", "--json"}, want: CmdWhoami},
		{
			name: "sessions defaults to list",
			argv: []string{"sessions"},
			want: CmdSessions,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "list" {
					t.Errorf("Subcommand = %q, want list", a.Subcommand)
				}
			},
		},
		{
			name: "sessions prune confirm",
			argv: []string{"sessions", "prune", "--confirm", "--older-than", "48h"},
			want: CmdSessions,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "prune" || !a.Confirm || a.OlderThan != "48h" {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name: "history json before id",
			argv: []string{"history", "--json", "s12"},
			want: CmdHistory,
			validate: func(t *testing.T, a Args) {
				if a.SessionID != "s12" || !a.JSON {
					t.Errorf("SessionID = %q JSON = %v", a.SessionID, a.JSON)
				}
			},
		},
		{
			name: "resume",
			argv: []string{"resume", "s7"},
			want: CmdResume,
			validate: func(t *testing.T, a Args) {
				if a.SessionID != "s7" {
					t.Errorf("SessionID = %q, want s7", a.SessionID)
				}
			},
		},
		{
			name: "config set joins value",
			argv: []string{"config", "set", "ui.theme", "light"},
			want: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "set" || a.ConfigKey != "ui.theme" || a.ConfigVal != "light" {
					t.Errorf("got %+v", a)
				}
			},
		},
		{name: "doctor alias", argv: []string{"diag", "--json"}, want: CmdDoctor},
		{name: "version flag", argv: []string{"--version"}, want: CmdVersion},
		{name: "help flag wins", argv: []string{"chat", "-h"}, want: CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseArgs(tt.argv)
			if err != nil {
				t.Fatalf("ParseArgs(%v) error = %v", tt.argv, err)
			}
			if cmd != tt.want {
				t.Errorf("command = %v, want %v", cmd, tt.want)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := [][]string{
		{"history"},
		{"resume"},
		{"frobnicate"},
		{"chat", "--age", "eleven"},
		{"chat", "--age", "0"},
	}
	for _, argv := range tests {
		_, _, err := ParseArgs(argv)
		if err == nil {
			t.Errorf("ParseArgs(%v) should fail", argv)
		}
	}

	_, _, err := ParseArgs([]string{"frobnicate"})
	if GetExitCode(err) != ExitUsageError {
		t.Errorf("unknown command exit code = %d, want %d", GetExitCode(err), ExitUsageError)
	}
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"usage", NewUsageError("x", "bad", ""), ExitUsageError},
		{"empty message", fmt.Errorf("submit: %w", stream.ErrEmptyMessage), ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad toml")}, ExitConfigError},
		{"validate", config.ValidateErrors{{Field: "backend.url", Message: "required"}}, ExitConfigError},
		{"unauthorized", fmt.Errorf("chat: %w", &api.APIError{Op: "chat", Status: http.StatusUnauthorized}), ExitAuthError},
		{"not signed in", session.ErrNotAuthenticated, ExitAuthError},
		{"api not found", &api.APIError{Op: "history", Status: http.StatusNotFound}, ExitNotFoundError},
		{"index not found", fmt.Errorf("delete: %w", storage.ErrSessionNotFound), ExitNotFoundError},
		{"deadline", fmt.Errorf("chat: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"network", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, ExitNetworkError},
		{"server error", &api.APIError{Op: "chat", Status: http.StatusInternalServerError}, ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	err := &api.APIError{Op: "register", Status: http.StatusUnprocessableEntity, Fields: map[string]string{"username": "too short"}}
	if got := FormatError(err); got != "username: too short" {
		t.Errorf("FormatError = %q", got)
	}
	if got := FormatError(session.ErrNotAuthenticated); got != "not signed in. Run 'safechat login' first." {
		t.Errorf("FormatError = %q", got)
	}
}

func TestCommandString(t *testing.T) {
	if CmdSessions.String() != "sessions" {
		t.Errorf("CmdSessions.String() = %q", CmdSessions.String())
	}
	if Command(99).String() != "unknown" {
		t.Errorf("Command(99).String() = %q", Command(99).String())
	}
}

// =============================================================================
// TERMINAL TESTS (terminal.go)
// =============================================================================

func TestWrapText(t *testing.T) {
	got := WrapText("one two three four five", 12)
	want := "one two\nthree four\nfive"
	if got != want {
		t.Errorf("WrapText = %q, want %q", got, want)
	}

	// Wide characters count two columns each.
	got = WrapText("日本語 日本語 日本語", 16)
	want = "日本語 日本語\n日本語"
	if got != want {
		t.Errorf("WrapText(wide) = %q, want %q", got, want)
	}
}

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"logni", "login"},
		{"sesions", "sessions"},
		{"doctr", "doctor"},
		{"login", ""},
		{"x", ""},
		{"completely-unrelated", ""},
	}
	for _, tt := range tests {
		if got := SuggestCommand(tt.in); got != tt.want {
			t.Errorf("SuggestCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	_, _, err := ParseArgs([]string{"whomai"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(FormatError(err), "whoami") {
		t.Errorf("error %q does not suggest whoami", FormatError(err))
	}
}

// =============================================================================
// SOURCE FORMAT
// =============================================================================

func TestArgsStructIsGofmted(t *testing.T) {
	src, err := os.ReadFile("cli.go")
	if err != nil {
		t.Fatal(err)
	}
	start := strings.Index(string(src), "type Args struct {")
	if start < 0 {
		t.Fatal("Args not found in cli.go")
	}
	end := strings.Index(string(src[start:]), "\n}\n")
	decl := "package cli\n\n" + string(src[start:start+end]) + "\n}\n"

	formatted, err := format.Source([]byte(decl))
	if err != nil {
		t.Fatal(err)
	}
	if string(formatted) != decl {
		t.Errorf("Args is not gofmt-formatted:\n%s", formatted)
	}
}
