// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - sessions and history commands.
//
// Examples:
//   safechat sessions                       Your recent sessions
//   safechat sessions list --all            Sessions of every local user
//   safechat sessions show s12              Locally journaled turns
//   safechat sessions delete s12            Forget a session locally
//   safechat sessions prune --older-than 168h --confirm
//   safechat history s12 --json             Transcript from the backend
//   safechat history s12 --format html -o chat.html
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/safechat-tui/internal/export"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/stream"
)

// DefaultPruneAge is the prune cutoff when --older-than is not given.
const DefaultPruneAge = 30 * 24 * time.Hour

// HandleSessionsCommand dispatches sessions subcommands.
func HandleSessionsCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()
	return runSessions(ctx, app, confirmPrompter(), args, os.Stdout)
}

// HandleHistoryCommand prints a backend transcript.
func HandleHistoryCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()
	return runHistory(ctx, app, args, os.Stdout)
}

func runSessions(ctx context.Context, app *App, p Prompter, args Args, out io.Writer) error {
	if app.Index == nil {
		return NewCommandError("sessions", args.Subcommand, "session index unavailable", nil)
	}

	switch args.Subcommand {
	case "list", "ls":
		username := app.Identity.Current().Username
		if args.All {
			username = ""
		}
		return OutputJSON(args.JSON, "sessions", func() (interface{}, error) {
			metas, err := app.Index.List(ctx, username, limitOrDefault(args, 20))
			if err != nil {
				return nil, err
			}
			if !args.JSON {
				fmt.Fprintln(out, storage.FormatSessionList(metas))
			}
			return metas, nil
		})

	case "show":
		if args.SessionID == "" {
			return NewUsageError("sessions show", "session id is required", "safechat sessions show <id>")
		}
		return OutputJSON(args.JSON, "sessions", func() (interface{}, error) {
			meta, err := app.Index.Get(ctx, args.SessionID)
			if err != nil {
				return nil, err
			}
			turns, err := app.Index.Turns(ctx, args.SessionID)
			if err != nil {
				return nil, err
			}
			if !args.JSON {
				printJournal(out, meta, turns)
			}
			return map[string]interface{}{"session": meta, "turns": turns}, nil
		})

	case "delete", "rm":
		if args.SessionID == "" {
			return NewUsageError("sessions delete", "session id is required", "safechat sessions delete <id>")
		}
		if err := app.Index.Delete(ctx, args.SessionID); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(out, "Deleted session %s\n", quoteID(args.SessionID))
		}
		return nil

	case "prune":
		maxAge := DefaultPruneAge
		if args.OlderThan != "" {
			d, err := time.ParseDuration(args.OlderThan)
			if err != nil || d <= 0 {
				return NewUsageError("sessions prune", "invalid --older-than "+quoteID(args.OlderThan), "safechat sessions prune --older-than 168h --confirm")
			}
			maxAge = d
		}
		ok, err := RequireConfirmation(p, args.Confirm, args.JSON,
			"delete sessions unused for "+session.FormatDuration(maxAge),
			"sessions prune", "safechat sessions prune --confirm")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, DimStyle.Render("Cancelled."))
			return nil
		}
		n, err := app.Index.Prune(ctx, time.Now().Add(-maxAge))
		if err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(out, "Pruned %d session(s)\n", n)
		}
		return nil
	}
	return NewUsageError("sessions", "unknown subcommand "+quoteID(args.Subcommand), "safechat sessions [list|show|delete|prune]")
}

// HistoryData is the --json payload of history.
type HistoryData struct {
	SessionID string          `json:"session_id"`
	Messages  []model.Message `json:"messages"`
}

func runHistory(ctx context.Context, app *App, args Args, out io.Writer) error {
	token := app.Identity.Token()
	if token == "" {
		return session.ErrNotAuthenticated
	}
	if args.Format != "" || args.Output != "" {
		return runHistoryExport(ctx, app, token, args, out)
	}
	return OutputJSON(args.JSON, "history", func() (interface{}, error) {
		resp, err := app.Client.History(ctx, token, args.SessionID)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		msgs := stream.HistoryMessages(resp.Messages)
		if !args.JSON {
			tr := export.NewTranscript(args.SessionID, app.Identity.Current().Username, msgs)
			md, err := export.NewMarkdownExporter(nil).Export(tr)
			switch {
			case errors.Is(err, export.ErrEmptyTranscript):
				fmt.Fprintln(out, DimStyle.Render("No messages in this session."))
			case err != nil:
				return nil, err
			default:
				out.Write(md)
			}
		}
		return HistoryData{SessionID: args.SessionID, Messages: msgs}, nil
	})
}

// ExportData is the --json payload of history --output.
type ExportData struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Path      string `json:"path"`
	Messages  int    `json:"messages"`
}

func runHistoryExport(ctx context.Context, app *App, token string, args Args, out io.Writer) error {
	format, err := export.ParseFormat(args.Format)
	if err != nil {
		return NewUsageError("history", err.Error(), "safechat history <id> --format html --output chat.html")
	}
	return OutputJSON(args.JSON, "history", func() (interface{}, error) {
		resp, err := app.Client.History(ctx, token, args.SessionID)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		tr := export.NewTranscript(args.SessionID, app.Identity.Current().Username, stream.HistoryMessages(resp.Messages))
		opts := export.DefaultOptions()
		opts.IncludeSafety = app.Config.UI.ShowModeration
		opts.Theme = app.Config.UI.Theme
		exp, err := export.New(format, opts)
		if err != nil {
			return nil, err
		}
		path, err := export.ExportToFile(tr, exp, args.Output)
		if err != nil {
			return nil, err
		}
		if !args.JSON && !args.Quiet {
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported"), path)
		}
		return ExportData{SessionID: args.SessionID, Format: string(format), Path: path, Messages: len(tr.Messages)}, nil
	})
}

func printJournal(out io.Writer, meta storage.SessionMeta, turns []storage.Turn) {
	fmt.Fprintln(out, TitleStyle.Render("Session "+meta.ID))
	fmt.Fprintf(out, "%s%s\n", RenderLabel("User"), meta.Username)
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Created"), meta.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Last used"), storage.FormatAge(meta.LastUsed, time.Now()))
	fmt.Fprintln(out, RenderSeparator())
	if len(turns) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No turns journaled on this machine."))
		return
	}
	for _, t := range turns {
		fmt.Fprintf(out, "%s %s\n", PromptStyle.Render("you>"), t.User)
		badges := RenderBand(model.ParseAgeBand(t.AgeBand))
		if t.ModerationReason != "" {
			badges += " " + WarningStyle.Render(model.ModerationExplain{Reason: t.ModerationReason}.Label())
		}
		fmt.Fprintf(out, "%s %s %s\n", BotStyle.Render("bot>"), badges, t.Bot)
	}
}
