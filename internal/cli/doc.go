// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// safechat.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global and command-specific flags
//   - App: The wired identity, session and stream controllers
//   - Repl: Line-mode chat driven by plain strings
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    cli.HandleChat(args)
//	case cli.CmdLogin:
//	    cli.HandleLogin(args)
//	}
//
// # Commands Overview
//
//   - chat: Line-mode REPL with slash commands
//   - login, register, logout, whoami: Account and token handling
//   - sessions, history: Local session index and backend transcripts
//   - config: Show and change ~/.safechat/config.toml
//
// Errors map to exit codes through GetExitCode: 2 usage, 3 config, 4 auth,
// 5 network, 7 not found, 8 timeout.
package cli
