// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/backendtest"
	"github.com/jeranaias/safechat-tui/internal/config"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/tokenstore"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakePrompter struct {
	lines   []string
	secrets []string
}

func (p *fakePrompter) Line(string) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	v := p.lines[0]
	p.lines = p.lines[1:]
	return v, nil
}

func (p *fakePrompter) Secret(string) (string, error) {
	if len(p.secrets) == 0 {
		return "", io.EOF
	}
	v := p.secrets[0]
	p.secrets = p.secrets[1:]
	return v, nil
}

func testConfig(t *testing.T, srv *backendtest.Server) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.URL = srv.URL
	cfg.Chat.HistoryDB = filepath.Join(t.TempDir(), "sessions.db")
	cfg.UI.Markdown = false
	cfg.UI.ShowModeration = true
	return cfg
}

func newTestApp(t *testing.T, srv *backendtest.Server, token string, age int) (*App, *tokenstore.MemoryStore) {
	t.Helper()
	store := tokenstore.NewMemoryStore(token)
	app, err := NewApp(context.Background(), testConfig(t, srv), age, AppOptions{
		Interactive: true,
		Client:      srv.Client(),
		Tokens:      store,
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, store
}

// =============================================================================
// APP WIRING
// =============================================================================

func TestNewApp_SignedInCreatesSession(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)

	app, _ := newTestApp(t, srv, token, 0)

	id := app.Identity.Current()
	assert.True(t, id.Authenticated())
	assert.Equal(t, "mia", id.Username)
	assert.NotEmpty(t, app.Sessions.ID())
	assert.Equal(t, 1, srv.Calls(backendtest.RouteSession))
	require.NotNil(t, app.Index)

	metas, err := app.Index.List(context.Background(), "mia", 0)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, app.Sessions.ID(), metas[0].ID)
}

func TestNewApp_AnonymousMakesNoCalls(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	assert.False(t, app.Identity.Current().Authenticated())
	assert.Empty(t, app.Sessions.ID())
	assert.Equal(t, 0, srv.Calls(backendtest.RouteMe))
	assert.Equal(t, 0, srv.Calls(backendtest.RouteSession))
}

func TestNewApp_RejectsBadAge(t *testing.T) {
	srv := backendtest.New(t)
	_, err := NewApp(context.Background(), testConfig(t, srv), 500, AppOptions{
		Client: srv.Client(),
		Tokens: tokenstore.NewMemoryStore(""),
	})
	require.Error(t, err)
}

func TestNewApp_DefaultAgeFromConfig(t *testing.T) {
	srv := backendtest.New(t)
	cfg := testConfig(t, srv)
	cfg.Chat.DefaultAge = 15
	app, err := NewApp(context.Background(), cfg, 0, AppOptions{
		Client: srv.Client(),
		Tokens: tokenstore.NewMemoryStore(""),
	})
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, 15, app.Stream.AgeOverride())
	assert.Equal(t, model.BandTeen, app.Stream.ActiveAgeBand())
}

func TestApp_LogoutClearsTranscript(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, store := newTestApp(t, srv, token, 0)
	ctx := context.Background()

	_, err := app.Stream.Submit(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, app.Stream.View().Messages, 2)

	app.Identity.Logout(ctx)

	assert.Empty(t, app.Stream.View().Messages)
	assert.Empty(t, app.Sessions.ID())
	saved, _ := store.Load()
	assert.Empty(t, saved)
}

func TestApp_SubscriberSeesSessionAndIdentityChanges(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	ctx := context.Background()
	old := app.Sessions.ID()
	require.NotEmpty(t, old)

	var mu sync.Mutex
	var last struct{ sessionID, username string }
	notifies := 0
	unsubscribe := app.Stream.Subscribe(func() {
		v := app.Stream.View()
		mu.Lock()
		defer mu.Unlock()
		notifies++
		last.sessionID, last.username = v.SessionID, v.Username
	})
	defer unsubscribe()

	fresh, err := app.Sessions.StartNewChat(ctx)
	require.NoError(t, err)
	require.NotEqual(t, old, fresh)

	mu.Lock()
	assert.Equal(t, fresh, last.sessionID)
	assert.Equal(t, "mia", last.username)
	before := notifies
	mu.Unlock()

	app.Identity.Logout(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, notifies, before)
	assert.Empty(t, last.sessionID)
	assert.Empty(t, last.username)
}

// =============================================================================
// REPL
// =============================================================================

func TestRepl_SubmitPrintsReplyWithBadges(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)

	var out bytes.Buffer
	repl := NewRepl(app, &out)
	assert.False(t, repl.Handle(context.Background(), "hello there"))

	assert.Contains(t, out.String(), "echo: hello there")
	assert.Contains(t, out.String(), "[child]")
	require.Len(t, srv.Chats(), 1)
	assert.Equal(t, app.Sessions.ID(), srv.Chats()[0].SessionID)
}

func TestRepl_ModerationIsShown(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	srv.SetReply(func(req api.ChatRequest, username string) api.ChatResponse {
		return api.ChatResponse{
			Response:          "Let's talk about something else.",
			AgeBand:           "child",
			ModerationExplain: &api.ModerationExplain{Reason: "content_safety_block", Categories: map[string]float64{"violence": 0.91}},
		}
	})
	app, _ := newTestApp(t, srv, token, 0)

	var out bytes.Buffer
	NewRepl(app, &out).Handle(context.Background(), "tell me something scary")

	assert.Contains(t, out.String(), "Blocked for safety")
	assert.Contains(t, out.String(), "violence 0.91")
}

func TestRepl_FailureShowsNotice(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	srv.FailNext(backendtest.RouteChat, http.StatusInternalServerError, "boom")

	var out bytes.Buffer
	NewRepl(app, &out).Handle(context.Background(), "hello")

	assert.Contains(t, out.String(), "Sorry, something went wrong")
	msgs := app.Stream.View().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestRepl_AnonymousIsAskedToSignIn(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	var out bytes.Buffer
	NewRepl(app, &out).Handle(context.Background(), "hello")

	assert.Contains(t, out.String(), "Please sign in")
	assert.Equal(t, 0, srv.Calls(backendtest.RouteChat))
}

func TestRepl_SlashCommands(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 30)
	app, _ := newTestApp(t, srv, token, 0)
	ctx := context.Background()
	var out bytes.Buffer
	repl := NewRepl(app, &out)

	first := app.Sessions.ID()
	repl.Handle(ctx, "/new")
	assert.NotEqual(t, first, app.Sessions.ID())
	assert.Contains(t, out.String(), "New chat started")

	out.Reset()
	repl.Handle(ctx, "/age 12")
	assert.Equal(t, 12, app.Stream.AgeOverride())
	repl.Handle(ctx, "hi")
	chats := srv.Chats()
	require.NotEmpty(t, chats)
	require.NotNil(t, chats[len(chats)-1].Age)
	assert.Equal(t, 12, *chats[len(chats)-1].Age)

	out.Reset()
	repl.Handle(ctx, "/age 500")
	assert.Contains(t, out.String(), "age must be between")
	assert.Equal(t, 12, app.Stream.AgeOverride())

	repl.Handle(ctx, "/age off")
	assert.Equal(t, 0, app.Stream.AgeOverride())

	out.Reset()
	repl.Handle(ctx, "/whoami")
	assert.Contains(t, out.String(), "mia")

	out.Reset()
	repl.Handle(ctx, "/history")
	assert.Contains(t, out.String(), app.Sessions.ID())

	out.Reset()
	repl.Handle(ctx, "/bogus")
	assert.Contains(t, out.String(), "Unknown command")

	assert.True(t, repl.Handle(ctx, "/quit"))
}

func TestRepl_ResumeLoadsHistory(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	srv.SeedHistory("s900", []api.HistoryEntry{
		{Role: "user", Content: "what is a volcano?"},
		{Role: "assistant", Content: "A mountain that can erupt.", AgeBand: "child"},
	})
	app, _ := newTestApp(t, srv, token, 0)

	var out bytes.Buffer
	repl := NewRepl(app, &out)
	repl.Handle(context.Background(), "/resume s900")

	assert.Equal(t, "s900", app.Sessions.ID())
	assert.Contains(t, out.String(), "what is a volcano?")
	assert.Contains(t, out.String(), "A mountain that can erupt.")

	out.Reset()
	repl.Handle(context.Background(), "/resume")
	assert.Contains(t, out.String(), "Usage: /resume")
}

func TestRepl_Export(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	path := filepath.Join(t.TempDir(), "chat.json")

	var out bytes.Buffer
	repl := NewRepl(app, &out)
	repl.Handle(context.Background(), "hello there")
	out.Reset()
	repl.Handle(context.Background(), "/export json "+path)
	assert.Contains(t, out.String(), "Exported "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo: hello there")

	out.Reset()
	repl.Handle(context.Background(), "/export pdf")
	assert.Contains(t, out.String(), "unknown export format")
}

func TestRepl_LogoutSignsOut(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)

	var out bytes.Buffer
	NewRepl(app, &out).Handle(context.Background(), "/logout")

	assert.False(t, app.Identity.Current().HasToken())
	assert.Equal(t, 1, srv.Calls(backendtest.RouteLogout))
	assert.Contains(t, out.String(), "Signed out")
}

// =============================================================================
// AUTH COMMANDS
// =============================================================================

func TestRunLogin(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("mia", "secret1", 11)
	app, store := newTestApp(t, srv, "", 0)

	var out bytes.Buffer
	err := runLogin(context.Background(), app, &fakePrompter{secrets: []string{"secret1"}}, "mia", &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Signed in as mia")
	assert.Equal(t, "mia", app.Identity.Current().Username)
	saved, _ := store.Load()
	assert.NotEmpty(t, saved)
}

func TestRunLogin_WrongPassword(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("mia", "secret1", 11)
	app, store := newTestApp(t, srv, "", 0)

	err := runLogin(context.Background(), app, &fakePrompter{lines: []string{"mia"}, secrets: []string{"nope"}}, "", io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Equal(t, ExitAuthError, GetExitCode(err))
	saved, _ := store.Load()
	assert.Empty(t, saved)
}

func TestRunRegister(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	p := &fakePrompter{secrets: []string{"secret1", "secret1"}, lines: []string{"9"}}
	var out bytes.Buffer
	require.NoError(t, runRegister(context.Background(), app, p, "newkid", 0, &out))

	id := app.Identity.Current()
	assert.Equal(t, "newkid", id.Username)
	assert.Equal(t, 9, id.Age)
	assert.Contains(t, out.String(), "Account created")
}

func TestRunRegister_FieldErrors(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	p := &fakePrompter{secrets: []string{"abc", "abc"}}
	var out bytes.Buffer
	err := runRegister(context.Background(), app, p, "ab", 12, &out)
	require.Error(t, err)

	assert.Contains(t, out.String(), "username:")
	assert.Contains(t, out.String(), "password:")
	assert.False(t, app.Identity.Current().HasToken())
}

func TestRunRegister_PasswordMismatch(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	p := &fakePrompter{secrets: []string{"secret1", "secret2"}}
	err := runRegister(context.Background(), app, p, "newkid", 12, io.Discard)
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Equal(t, 0, srv.Calls(backendtest.RouteRegister))
}

func TestWhoami_JSON(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 15)
	app, _ := newTestApp(t, srv, token, 0)

	data, err := whoami(app, io.Discard, true)
	require.NoError(t, err)
	assert.True(t, data.SignedIn)
	assert.Equal(t, "teen", data.AgeBand)
	assert.Equal(t, srv.URL, data.Backend)
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func TestRunSessions(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	ctx := context.Background()

	_, err := app.Stream.Submit(ctx, "first question")
	require.NoError(t, err)
	sid := app.Sessions.ID()

	var out bytes.Buffer
	require.NoError(t, runSessions(ctx, app, nil, Args{Subcommand: "list"}, &out))
	assert.Contains(t, out.String(), sid)
	assert.Contains(t, out.String(), "first question")

	out.Reset()
	require.NoError(t, runSessions(ctx, app, nil, Args{Subcommand: "show", SessionID: sid}, &out))
	assert.Contains(t, out.String(), "echo: first question")

	err = runSessions(ctx, app, nil, Args{Subcommand: "prune"}, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	require.NoError(t, runSessions(ctx, app, nil, Args{Subcommand: "delete", SessionID: sid}, io.Discard))
	err = runSessions(ctx, app, nil, Args{Subcommand: "delete", SessionID: sid}, io.Discard)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestRunSessions_Prune(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	ctx := context.Background()

	old := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, app.Index.RecordSession(ctx, "ancient", "mia", "created", old))

	var out bytes.Buffer
	require.NoError(t, runSessions(ctx, app, nil, Args{Subcommand: "prune", Confirm: true}, &out))
	assert.Contains(t, out.String(), "Pruned 1 session(s)")

	_, err := app.Index.Get(ctx, "ancient")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	_, err = app.Index.Get(ctx, app.Sessions.ID())
	assert.NoError(t, err)
}

func TestRunSessions_PrunePrompted(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app, _ := newTestApp(t, srv, token, 0)
	ctx := context.Background()

	old := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, app.Index.RecordSession(ctx, "ancient", "mia", "created", old))

	var out bytes.Buffer
	require.NoError(t, runSessions(ctx, app, &fakePrompter{lines: []string{"n"}}, Args{Subcommand: "prune"}, &out))
	assert.Contains(t, out.String(), "Cancelled.")
	_, err := app.Index.Get(ctx, "ancient")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runSessions(ctx, app, &fakePrompter{lines: []string{"Y"}}, Args{Subcommand: "prune"}, &out))
	assert.Contains(t, out.String(), "Pruned 1 session(s)")
	_, err = app.Index.Get(ctx, "ancient")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestRequireConfirmation(t *testing.T) {
	ok, err := RequireConfirmation(nil, true, true, "wipe", "x", "x --confirm")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = RequireConfirmation(&fakePrompter{lines: []string{"y"}}, false, true, "wipe", "x", "x --confirm")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = RequireConfirmation(nil, false, false, "wipe", "x", "x --confirm")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	ok, err = RequireConfirmation(&fakePrompter{lines: []string{" yes "}}, false, false, "wipe", "x", "x --confirm")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = RequireConfirmation(&fakePrompter{lines: []string{""}}, false, false, "wipe", "x", "x --confirm")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = RequireConfirmation(&fakePrompter{}, false, false, "wipe", "x", "x --confirm")
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunHistory(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	srv.SeedHistory("s900", []api.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello!", AgeBand: "child"},
	})
	app, _ := newTestApp(t, srv, token, 0)

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), app, Args{SessionID: "s900"}, &out))
	assert.Contains(t, out.String(), "# Session s900")
	assert.Contains(t, out.String(), "hello!")
	assert.Contains(t, out.String(), "band child")
}

func TestRunHistory_Export(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	srv.SeedHistory("s900", []api.HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "**hello!**"},
	})
	app, _ := newTestApp(t, srv, token, 0)
	path := filepath.Join(t.TempDir(), "chat.html")

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), app, Args{SessionID: "s900", Format: "html", Output: path}, &out))
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<strong>hello!</strong>")

	err = runHistory(context.Background(), app, Args{SessionID: "s900", Format: "pdf"}, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunHistory_Anonymous(t *testing.T) {
	srv := backendtest.New(t)
	app, _ := newTestApp(t, srv, "", 0)

	err := runHistory(context.Background(), app, Args{SessionID: "s1"}, io.Discard)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, 0, srv.Calls(backendtest.RouteHistory))
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	require.NoError(t, runConfig(nil, Args{Subcommand: "set", ConfigPath: path, ConfigKey: "ui.theme", ConfigVal: "light"}, &out))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out.Reset()
	require.NoError(t, runConfig(nil, Args{Subcommand: "get", ConfigPath: path, ConfigKey: "ui.theme"}, &out))
	assert.Equal(t, "light", strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, runConfig(nil, Args{Subcommand: "show", ConfigPath: path}, &out))
	assert.Contains(t, out.String(), "backend.url")

	err = runConfig(nil, Args{Subcommand: "set", ConfigPath: path, ConfigKey: "ui.nope", ConfigVal: "x"}, io.Discard)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	err = runConfig(nil, Args{Subcommand: "reset", ConfigPath: path}, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONResponse("whoami", WhoamiData{SignedIn: true, Username: "mia"}).To(&buf).Print())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "whoami", decoded["command"])
	assert.Nil(t, decoded["error"])

	errResp := NewJSONErrorResponse("history", session.ErrNotAuthenticated)
	assert.False(t, errResp.Success)
	require.NotNil(t, errResp.Error)
	assert.Contains(t, *errResp.Error, "not signed in")
}
