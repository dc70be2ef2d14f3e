// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat REPL.
//
// Command: chat
// Short:   Chat without the full-screen UI
//
// Examples:
//   safechat chat               Chat as the signed-in user
//   safechat chat --age 11      Send age 11 with every message
//
// Interactive Commands:
//   /new                Start a new conversation
//   /history            List recent conversations
//   /resume <id>        Continue an earlier conversation
//   /age <n>|off        Set or clear the age sent with messages
//   /export [fmt] [path]  Save this conversation (md, json or html)
//   /whoami             Show the signed-in user
//   /logout             Sign out
//   /help               Show commands
//   /quit               Exit (also Ctrl+D)
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/safechat-tui/internal/config"
	"github.com/jeranaias/safechat-tui/internal/export"
	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/stream"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and input history for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads one line; non-empty lines enter the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (c *ChatCLI) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// Repl drives an App from lines of text. It is separate from the terminal
// so it can be exercised with plain strings.
type Repl struct {
	app      *App
	out      io.Writer
	renderer *glamour.TermRenderer
}

// NewRepl creates a Repl writing to out. Markdown rendering follows ui.markdown.
func NewRepl(app *App, out io.Writer) *Repl {
	r := &Repl{app: app, out: out}
	if app.Config.UI.Markdown {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err != nil {
			logging.UI().Debug("markdown renderer unavailable", "error", err)
		} else {
			r.renderer = renderer
		}
	}
	return r
}

// HandleChatCommand runs the REPL until /quit, Ctrl+C at the prompt or EOF.
func HandleChatCommand(args Args) error {
	base := context.Background()
	app, err := openApp(base, args, true)
	if err != nil {
		return err
	}
	defer app.Close()

	repl := NewRepl(app, os.Stdout)
	input := NewChatCLI()
	defer input.Close()

	if !args.Quiet {
		repl.printWelcome()
	}

	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or a closed stdin.
			fmt.Fprintln(repl.out)
			return nil
		}

		// The first Ctrl+C while waiting cancels the request only.
		ctx, stop := signal.NotifyContext(base, os.Interrupt)
		quit := repl.Handle(ctx, line)
		stop()
		if quit {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the user asked to quit.
func (r *Repl) Handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, "/"):
		return r.command(ctx, line)
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true
	}

	reply, err := r.app.Stream.Submit(ctx, line)
	switch {
	case err == nil:
		fmt.Fprintln(r.out, r.formatReply(reply))
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.out, WarningStyle.Render("[Cancelled]"))
	case errors.Is(err, stream.ErrDiscarded):
		// The conversation changed while the reply was in flight.
	default:
		r.printNotice(err)
	}
	return false
}

func (r *Repl) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	cmd, rest := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h", "/?":
		r.printHelp()
	case "/new", "/n":
		id, err := r.app.Sessions.StartNewChat(ctx)
		if err != nil {
			// The next message still goes out and the backend assigns a session.
			fmt.Fprintln(r.out, WarningStyle.Render("New chat started (session pending: "+FormatError(err)+")"))
			return false
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("New chat started")+" "+DimStyle.Render(id))
	case "/history":
		r.printSessions(ctx)
	case "/resume":
		if len(rest) == 0 {
			fmt.Fprintln(r.out, WarningStyle.Render("Usage: /resume <session-id>"))
			return false
		}
		if err := r.app.Stream.Resume(ctx, rest[0]); err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("Could not load that conversation: ")+FormatError(err))
			return false
		}
		r.printTranscript()
	case "/age":
		r.setAge(rest)
	case "/export":
		r.export(rest)
	case "/whoami":
		r.printWhoami()
	case "/logout":
		r.app.Identity.Logout(ctx)
		fmt.Fprintln(r.out, SuccessStyle.Render("Signed out"))
	default:
		fmt.Fprintln(r.out, WarningStyle.Render("Unknown command "+cmd+". Type /help."))
	}
	return false
}

func (r *Repl) setAge(rest []string) {
	if len(rest) == 0 {
		if age := r.app.Stream.AgeOverride(); age > 0 {
			fmt.Fprintf(r.out, "Age override: %d\n", age)
		} else {
			fmt.Fprintln(r.out, "Age override: off (using account age)")
		}
		return
	}
	if strings.EqualFold(rest[0], "off") {
		_ = r.app.Stream.SetAgeOverride(0)
		fmt.Fprintln(r.out, "Age override cleared")
		return
	}
	age, err := strconv.Atoi(rest[0])
	if err == nil {
		err = r.app.Stream.SetAgeOverride(age)
	}
	if err != nil {
		fmt.Fprintf(r.out, "%s age must be between %d and %d\n", ErrorStyle.Render("Error:"), stream.MinAge, stream.MaxAge)
		return
	}
	fmt.Fprintf(r.out, "Age override: %d %s\n", age, RenderBand(model.BandForAge(age)))
}

func (r *Repl) export(rest []string) {
	format, path := "", ""
	if len(rest) > 0 {
		format = rest[0]
	}
	if len(rest) > 1 {
		path = rest[1]
	}
	written, err := ExportView(r.app, r.app.Stream.View(), format, path)
	if err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("Exported")+" "+written)
}

// ExportView writes the current conversation to path in the named format.
func ExportView(app *App, view stream.View, format, path string) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	opts := export.DefaultOptions()
	opts.IncludeSafety = app.Config.UI.ShowModeration
	opts.Theme = app.Config.UI.Theme
	exp, err := export.New(f, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(export.NewTranscript(view.SessionID, view.Username, view.Messages), exp, path)
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *Repl) printWelcome() {
	id := r.app.Identity.Current()
	fmt.Fprintln(r.out, TitleStyle.Render("safechat"))
	if id.Authenticated() {
		fmt.Fprintf(r.out, "Signed in as %s\n", ValueStyle.Render(id.Username))
	} else {
		fmt.Fprintln(r.out, WarningStyle.Render("Not signed in. Run 'safechat login' to chat."))
	}
	if band := r.app.Stream.ActiveAgeBand(); band != model.BandNone {
		fmt.Fprintln(r.out, DimStyle.Render(band.Copy()))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(r.out)
}

func (r *Repl) printHelp() {
	fmt.Fprintln(r.out, `Commands:
  /new                Start a new conversation
  /history            List recent conversations
  /resume <id>        Continue an earlier conversation
  /age <n>|off        Set or clear the age sent with messages
  /export [fmt] [path] Save this conversation (md, json or html)
  /whoami             Show the signed-in user
  /logout             Sign out
  /quit               Exit`)
}

func (r *Repl) printWhoami() {
	id := r.app.Identity.Current()
	if !id.Authenticated() {
		fmt.Fprintln(r.out, "Not signed in")
		return
	}
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("User"), id.Username)
	if id.Age > 0 {
		fmt.Fprintf(r.out, "%s%d %s\n", RenderLabel("Age"), id.Age, RenderBand(model.BandForAge(id.Age)))
	}
	if sid := r.app.Sessions.ID(); sid != "" {
		fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Session"), sid)
	}
}

func (r *Repl) printSessions(ctx context.Context) {
	if r.app.Index == nil {
		fmt.Fprintln(r.out, WarningStyle.Render("Session history is unavailable."))
		return
	}
	metas, err := r.app.Index.List(ctx, r.app.Identity.Current().Username, 10)
	if err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	fmt.Fprint(r.out, storage.FormatSessionList(metas))
}

func (r *Repl) printTranscript() {
	for _, m := range r.app.Stream.View().Messages {
		if m.IsUser() {
			fmt.Fprintln(r.out, PromptStyle.Render("you> ")+m.Content)
			continue
		}
		fmt.Fprintln(r.out, r.formatReply(m))
	}
}

func (r *Repl) printNotice(err error) {
	text := FormatError(err)
	if n := r.app.Stream.View().Notice; n != nil {
		text = n.Text
	}
	fmt.Fprintln(r.out, ErrorStyle.Render("! ")+text)
}

// formatReply renders a bot message with its safety badges.
func (r *Repl) formatReply(m model.Message) string {
	body := m.Content
	if r.renderer != nil {
		if out, err := r.renderer.Render(body); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	var badges []string
	if b := RenderBand(m.AgeBand); b != "" {
		badges = append(badges, b)
	}
	if rk := RenderRisk(m.RiskLevel); rk != "" {
		badges = append(badges, rk)
	}
	if m.Adjusted {
		badges = append(badges, WarningStyle.Render("adjusted"))
	}
	if m.LiteracyInjected {
		badges = append(badges, DimStyle.Render("media-literacy tip"))
	}
	if m.AgeGated {
		badges = append(badges, WarningStyle.Render("age gate"))
	}

	var sb strings.Builder
	sb.WriteString(BotStyle.Render("bot> "))
	if len(badges) > 0 {
		sb.WriteString(strings.Join(badges, " "))
		sb.WriteString("\n")
	}
	sb.WriteString(body)
	if m.Moderation != nil && r.app.Config.UI.ShowModeration {
		sb.WriteString("\n")
		sb.WriteString(WarningStyle.Render(m.Moderation.Label()))
		for _, c := range m.Moderation.SortedCategories() {
			sb.WriteString(DimStyle.Render(fmt.Sprintf(" %s %.2f", c.Name, c.Score)))
		}
	}
	return sb.String()
}
