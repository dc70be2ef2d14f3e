// safechat - terminal client for a moderated chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/safechat-tui/internal/cli"
	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/ui/chat"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI, cli.CmdResume:
		cli.HandleTUI(args, runTUI)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdLogin:
		cli.HandleLogin(args)
	case cli.CmdRegister:
		cli.HandleRegister(args)
	case cli.CmdLogout:
		cli.HandleLogout(args)
	case cli.CmdWhoami:
		cli.HandleWhoami(args)
	case cli.CmdSessions:
		cli.HandleSessions(args)
	case cli.CmdHistory:
		cli.HandleHistory(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdDoctor:
		cli.HandleDoctor(args)
	case cli.CmdVersion:
		cli.HandleVersionWithJSON(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleHelp()
	}
}

// runTUI runs the full-screen chat until the user quits.
func runTUI(ctx context.Context, app *cli.App, args cli.Args) error {
	if !cli.IsTTY() {
		return &cli.TTYRequiredError{Operation: "open the chat screen"}
	}

	ui := app.Config.UI
	m := chat.New(app.Stream, app.Sessions, app.Identity, chat.Options{
		Theme:           styles.NewTheme(ui.Theme),
		ScrollThreshold: ui.ScrollThresholdRows,
		ShowModeration:  ui.ShowModeration,
		Markdown:        ui.Markdown,
		ResumeID:        args.SessionID,
		Export: func(view stream.View, format, path string) (string, error) {
			return cli.ExportView(app, view, format, path)
		},
	})
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	logging.UI().Info("tui started", "resume", args.SessionID)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
