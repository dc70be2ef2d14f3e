// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of the chat controllers shared by the TUI and the REPL.

package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/config"
	"github.com/jeranaias/safechat-tui/internal/identity"
	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/tokenstore"
)

// =============================================================================
// CONFIG AND LOGGING
// =============================================================================

// LoadConfig loads configuration for args: --config or the default file,
// then --backend on top. The result becomes the global config.
func LoadConfig(args Args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		if err = config.LoadDotEnv(".env"); err != nil {
			return nil, &ConfigError{Err: err}
		}
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if cfg == nil {
			return nil, &ConfigError{Err: err}
		}
		// No usable config directory; defaults still work.
		logging.Get().Warn("config directory unavailable, using defaults", "error", err)
	}

	if args.Backend != "" {
		cfg.Backend.URL = args.Backend
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// SetupLogging starts the file log and, when console is set, stderr output.
// The TUI passes console=false so logs never draw over the screen.
func SetupLogging(cfg *config.Config, args Args, console bool) error {
	level := cfg.Logging.Level
	consoleLevel := "warn"
	if args.Verbose {
		level = "debug"
		consoleLevel = "debug"
	}
	if args.Quiet {
		consoleLevel = "error"
	}
	return logging.Initialize(logging.Config{
		Level:        level,
		ConsoleLevel: consoleLevel,
		Console:      console,
		File: &logging.FileConfig{
			Path:       cfg.LogPath(),
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
}

// NewClient builds the backend client from cfg.
func NewClient(cfg *config.Config) *api.Client {
	return api.New(cfg.Backend.URL,
		api.WithAPIPrefix(cfg.Backend.APIPrefix),
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.Backend.RateLimitPerSec, cfg.Backend.RateBurst),
		api.WithUserAgent("safechat/"+Version),
	)
}

// NewTokenStore opens the token file, encrypted when configured and a
// passphrase is available.
func NewTokenStore(cfg *config.Config) *tokenstore.FileStore {
	var opts []tokenstore.Option
	if cfg.Auth.EncryptToken {
		if pass := cfg.Passphrase(); pass != "" {
			opts = append(opts, tokenstore.WithPassphrase(pass))
		} else {
			logging.Auth().Warn("token encryption enabled but no passphrase set; storing token in plaintext")
		}
	}
	return tokenstore.NewFileStore(cfg.TokenPath(), opts...)
}

// =============================================================================
// APP
// =============================================================================

// AppOptions selects which background behavior an App runs.
type AppOptions struct {
	// Interactive keeps the session in step with identity changes and,
	// when configured, watches the token file.
	Interactive bool

	// Client replaces the client built from config (tests).
	Client *api.Client

	// Tokens replaces the file token store (tests).
	Tokens identity.TokenStore
}

// App holds the wired controllers for one process.
type App struct {
	Config   *config.Config
	Client   *api.Client
	Tokens   identity.TokenStore
	Identity *identity.Context
	Sessions *session.Manager
	Stream   *stream.Controller

	// Index is nil when the session database could not be opened.
	Index *storage.SessionIndex

	cancel context.CancelFunc
	stops  []func()
	wg     sync.WaitGroup
}

// NewApp wires the controllers and resolves the stored identity.
// age, when positive, becomes the age override; otherwise chat.default_age
// applies.
func NewApp(ctx context.Context, cfg *config.Config, age int, opts AppOptions) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &App{Config: cfg, cancel: cancel}

	a.Client = opts.Client
	if a.Client == nil {
		a.Client = NewClient(cfg)
	}
	a.Tokens = opts.Tokens
	if a.Tokens == nil {
		a.Tokens = NewTokenStore(cfg)
	}

	a.Identity = identity.New(a.Client, a.Tokens)
	a.Sessions = session.NewManager(a.Client, a.Identity)
	a.Stream = stream.New(a.Client, a.Sessions, a.Identity)
	a.Sessions.OnReset(a.Stream.StartNewChat)
	a.Sessions.OnChange(func(string) { a.Stream.Changed() })

	if idx, err := storage.Open(cfg.HistoryDBPath()); err != nil {
		logging.Store().Warn("session index unavailable", "path", cfg.HistoryDBPath(), "error", err)
	} else {
		a.Index = idx
		a.Sessions.SetRecorder(idx)
		a.Stream.SetJournal(idx)
	}

	if age <= 0 {
		age = cfg.Chat.DefaultAge
	}
	if age > 0 {
		if err := a.Stream.SetAgeOverride(age); err != nil {
			a.Close()
			return nil, fmt.Errorf("age %d: %w", age, err)
		}
	}

	if opts.Interactive {
		a.stops = append(a.stops, a.followIdentity())
		a.stops = append(a.stops, a.Sessions.Follow(ctx, a.Identity))
	}

	id := a.Identity.ResolveOnStartup(ctx)
	logging.Auth().Info("identity resolved", "state", id.State.String(), "user", id.Username)

	if fs, ok := a.Tokens.(*tokenstore.FileStore); ok && opts.Interactive && cfg.Auth.WatchToken {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.Identity.WatchStore(ctx, fs, tokenstore.DefaultDebounce); err != nil {
				logging.Auth().Warn("token watch stopped", "error", err)
			}
		}()
	}
	return a, nil
}

// followIdentity clears the transcript whenever the token changes hands
// and republishes the view on every identity change.
func (a *App) followIdentity() (stop func()) {
	var mu sync.Mutex
	last := a.Identity.Current().Token
	return a.Identity.Subscribe(func(id identity.Identity) {
		mu.Lock()
		changed := id.Token != last
		last = id.Token
		mu.Unlock()
		if changed {
			a.Stream.StartNewChat()
			return
		}
		a.Stream.Changed()
	})
}

// Close stops background work and closes the session index.
func (a *App) Close() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	a.cancel()
	a.wg.Wait()
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			logging.Store().Warn("closing session index", "error", err)
		}
		a.Index = nil
	}
}

// openApp is the common prologue of commands that talk to the backend.
func openApp(ctx context.Context, args Args, interactive bool) (*App, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if err := SetupLogging(cfg, args, true); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return NewApp(ctx, cfg, args.Age, AppOptions{Interactive: interactive})
}

// OpenTUI wires an interactive App for the full-screen view. Logs go to the
// file only so they never draw over the alternate screen.
func OpenTUI(ctx context.Context, args Args) (*App, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if err := SetupLogging(cfg, args, false); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return NewApp(ctx, cfg, args.Age, AppOptions{Interactive: true})
}
