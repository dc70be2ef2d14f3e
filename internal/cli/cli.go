// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for safechat.
//
// Parses os.Args into a Command and Args. Each HandleX wrapper runs its
// command and exits with the code GetExitCode assigns to the error.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Version information (set via ldflags or from main).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command represents a CLI command.
type Command int

const (
	CmdTUI      Command = iota // Default: launch TUI
	CmdChat                    // Line-mode REPL
	CmdLogin                   // Sign in and store the token
	CmdRegister                // Create an account
	CmdLogout                  // Revoke and forget the token
	CmdWhoami                  // Show the signed-in identity
	CmdSessions                // List/delete/prune known sessions
	CmdHistory                 // Print a session transcript
	CmdResume                  // TUI with a session loaded
	CmdConfig                  // Show/get/set configuration
	CmdDoctor                  // Health checks
	CmdVersion                 // Show version
	CmdHelp                    // Show help
)

var commandNames = map[Command]string{
	CmdTUI:      "tui",
	CmdChat:     "chat",
	CmdLogin:    "login",
	CmdRegister: "register",
	CmdLogout:   "logout",
	CmdWhoami:   "whoami",
	CmdSessions: "sessions",
	CmdHistory:  "history",
	CmdResume:   "resume",
	CmdConfig:   "config",
	CmdDoctor:   "doctor",
	CmdVersion:  "version",
	CmdHelp:     "help",
}

// String returns the command name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Backend    string // --backend URL, overrides backend.url
	ConfigPath string // --config PATH
	Verbose    bool
	Quiet      bool
	JSON       bool

	// Command-specific
	Age        int    // --age N (chat, register, tui)
	User       string // --user U (login, register)
	Subcommand string // sessions/config action
	SessionID  string // history/resume/sessions delete
	ConfigKey  string
	ConfigVal  string
	Confirm    bool // sessions prune --confirm
	OlderThan  string
	Limit      int
	All        bool   // sessions list --all
	Format     string // history --format md|json|html
	Output     string // history --output PATH

	// Raw holds the arguments after the command name.
	Raw []string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `safechat - age-aware moderated chat client

USAGE:
  safechat [command] [flags]

COMMANDS:
  (none)                        Launch the interactive TUI
  chat [--age N]                Line-mode chat REPL
  login [--user U]              Sign in (prompts for password)
  register [--user U] [--age N] Create an account
  logout                        Sign out and forget the stored token
  whoami                        Show the signed-in user
  sessions [list|show <id>|delete <id>|prune --confirm]
                                Manage locally known sessions
  history <session-id> [--json] Print a session transcript
          [--format md|json|html] [--output PATH]
                                Export it to a file instead
  resume <session-id>           Open the TUI with a session loaded
  config [show|get <key>|set <key> <value>|reset|path]
                                Show or change configuration
  doctor [--json]               Check config, backend and local state
  version [--json]              Show version information
  help                          Show this help

GLOBAL FLAGS:
  --backend URL                 Backend base URL (overrides config)
  --config PATH                 Config file (default ~/.safechat/config.toml)
  -v, --verbose                 Verbose logging to stderr
  -q, --quiet                   Minimal output
  --json                        Machine-readable output where supported

SESSIONS FLAGS:
  --all                         List sessions of every user
  --limit N                     Maximum rows to list (default 20)
  --older-than DURATION         Prune cutoff, e.g. 720h (default 720h)

ENVIRONMENT:
  SAFECHAT_HOME                 Config directory (default ~/.safechat)
  SAFECHAT_BACKEND_URL          Backend base URL
  SAFECHAT_TIMEOUT              Request timeout in seconds
  SAFECHAT_LOG_LEVEL            debug, info, warn, error
  SAFECHAT_AGE                  Default age sent with each message
  SAFECHAT_TOKEN_PASSPHRASE     Passphrase for the encrypted token file
  SAFECHAT_THEME                dark, light or auto

Version: %s
`

// PrintUsage prints usage to stdout.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("safechat %s\n", Version)
	fmt.Printf("  Commit: %s\n", GitCommit)
	fmt.Printf("  Built:  %s\n", BuildDate)
	fmt.Printf("  Go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// booleanFlags never consume the following argument as a value.
var booleanFlags = []string{"json", "verbose", "v", "quiet", "q", "confirm", "all", "help", "h", "version"}

// Parse parses os.Args.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		PrintUsage()
		os.Exit(ExitUsageError)
	}
	return cmd, args
}

// ParseArgs parses argv without the program name.
func ParseArgs(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, booleanFlags...)
	args := Args{
		Backend:    p.Flag("backend"),
		ConfigPath: p.Flag("config"),
		Verbose:    p.BoolFlag("verbose") || p.BoolFlag("v"),
		Quiet:      p.BoolFlag("quiet") || p.BoolFlag("q"),
		JSON:       p.BoolFlag("json"),
		User:       p.FlagOrDefault("user", p.Flag("u")),
		Confirm:    p.BoolFlag("confirm"),
		All:        p.BoolFlag("all"),
		OlderThan:  p.Flag("older-than"),
		Format:     p.Flag("format"),
		Output:     p.FlagOrDefault("output", p.Flag("o")),
	}

	if p.HasFlag("age") {
		age, err := ParseIntWithValidation(p.Flag("age"), "age")
		if err != nil {
			return CmdHelp, args, err
		}
		args.Age = age
	}
	if p.HasFlag("limit") {
		limit, err := ParseIntWithValidation(p.Flag("limit"), "limit")
		if err != nil {
			return CmdHelp, args, err
		}
		args.Limit = limit
	}

	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") && p.Subcommand() == "" {
		return CmdVersion, args, nil
	}

	name := strings.ToLower(p.Subcommand())
	args.Raw = p.PositionalFrom(1)

	switch name {
	case "", "tui":
		return CmdTUI, args, nil
	case "chat":
		return CmdChat, args, nil
	case "login", "signin":
		if args.User == "" {
			args.User = p.Positional(1)
		}
		return CmdLogin, args, nil
	case "register", "signup":
		if args.User == "" {
			args.User = p.Positional(1)
		}
		return CmdRegister, args, nil
	case "logout", "signout":
		return CmdLogout, args, nil
	case "whoami", "me":
		return CmdWhoami, args, nil
	case "sessions", "session":
		args.Subcommand = strings.ToLower(p.Positional(1))
		if args.Subcommand == "" {
			args.Subcommand = "list"
		}
		args.SessionID = p.Positional(2)
		return CmdSessions, args, nil
	case "history":
		args.SessionID = p.Positional(1)
		if args.SessionID == "" {
			return CmdHistory, args, NewUsageError("history", "session id is required", "safechat history <session-id>")
		}
		return CmdHistory, args, nil
	case "resume":
		args.SessionID = p.Positional(1)
		if args.SessionID == "" {
			return CmdResume, args, NewUsageError("resume", "session id is required", "safechat resume <session-id>")
		}
		return CmdResume, args, nil
	case "config":
		args.Subcommand = strings.ToLower(p.Positional(1))
		if args.Subcommand == "" {
			args.Subcommand = "show"
		}
		args.ConfigKey = p.Positional(2)
		args.ConfigVal = JoinPositionalArgs(p, 3)
		return CmdConfig, args, nil
	case "doctor", "diag", "diagnose":
		return CmdDoctor, args, nil
	case "version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, unknownCommandError(name)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// run executes fn and exits on error with the mapped exit code.
func run(cmd Command, args Args, fn func(Args) error) {
	if err := fn(args); err != nil {
		if args.JSON {
			_ = NewJSONErrorResponse(cmd.String(), err).Print()
		} else {
			fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), FormatError(err))
		}
		os.Exit(GetExitCode(err))
	}
}

// HandleTUI opens an interactive App, hands it to ui and exits on error.
func HandleTUI(args Args, ui func(ctx context.Context, app *App, args Args) error) {
	run(CmdTUI, args, func(args Args) error {
		ctx := context.Background()
		app, err := OpenTUI(ctx, args)
		if err != nil {
			return err
		}
		defer app.Close()
		return ui(ctx, app, args)
	})
}

// HandleDoctor runs the health checks.
func HandleDoctor(args Args) { run(CmdDoctor, args, HandleDoctorCommand) }

// HandleChat runs the line-mode REPL.
func HandleChat(args Args) { run(CmdChat, args, HandleChatCommand) }

// HandleLogin signs in.
func HandleLogin(args Args) { run(CmdLogin, args, HandleLoginCommand) }

// HandleRegister creates an account.
func HandleRegister(args Args) { run(CmdRegister, args, HandleRegisterCommand) }

// HandleLogout signs out.
func HandleLogout(args Args) { run(CmdLogout, args, HandleLogoutCommand) }

// HandleWhoami prints the current identity.
func HandleWhoami(args Args) { run(CmdWhoami, args, HandleWhoamiCommand) }

// HandleSessions manages the local session index.
func HandleSessions(args Args) { run(CmdSessions, args, HandleSessionsCommand) }

// HandleHistory prints a backend transcript.
func HandleHistory(args Args) { run(CmdHistory, args, HandleHistoryCommand) }

// HandleConfig manages configuration.
func HandleConfig(args Args) { run(CmdConfig, args, HandleConfigCommand) }

// HandleHelp prints usage.
func HandleHelp() {
	PrintUsage()
}

// VersionData is the --json payload of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersionWithJSON prints version information, as JSON when requested.
func HandleVersionWithJSON(args Args) {
	if !args.JSON {
		PrintVersion()
		return
	}
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if err := NewJSONResponse("version", data).Print(); err != nil {
		os.Exit(ExitGeneralError)
	}
}

// limitOrDefault returns args.Limit or def when unset.
func limitOrDefault(args Args, def int) int {
	if args.Limit > 0 {
		return args.Limit
	}
	return def
}

// quoteID renders a session id for messages.
func quoteID(id string) string {
	return strconv.Quote(id)
}
