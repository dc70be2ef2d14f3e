// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity holds who the user is: the bearer token, username and age.
//
// The Context is the authoritative owner of the token. It persists the token
// through a TokenStore, resolves the identity behind it against the backend,
// and converges every failure (expired token, unreadable store, explicit
// logout) to the same Anonymous state.
//
//	Anonymous --Login--> Resolving --ok--> Authenticated
//	Resolving/Authenticated --failure|Logout--> Anonymous
//
// Username and age are never set while the token is absent.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/logging"
)

// LogoutTimeout bounds the best-effort backend logout call.
const LogoutTimeout = 5 * time.Second

var (
	// ErrNoToken is returned by Login when given an empty token.
	ErrNoToken = errors.New("identity: empty token")

	// ErrSuperseded is returned when a login or logout overtook a resolution.
	ErrSuperseded = errors.New("identity: resolution superseded")
)

// =============================================================================
// STATE
// =============================================================================

// State is the identity lifecycle state.
type State int

const (
	Anonymous State = iota
	Resolving
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Identity is a snapshot of the current user.
type Identity struct {
	State    State
	Token    string
	Username string
	Age      int // 0 when the backend reported none
}

// Authenticated reports whether the identity is fully resolved.
func (i Identity) Authenticated() bool {
	return i.State == Authenticated
}

// HasToken reports whether a token is held (resolving or authenticated).
func (i Identity) HasToken() bool {
	return i.Token != ""
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the auth surface the Context needs.
type Backend interface {
	Me(ctx context.Context, token string) (*api.Me, error)
	Logout(ctx context.Context, token string) error
}

// TokenStore persists the token across runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// =============================================================================
// CONTEXT
// =============================================================================

// Context owns the identity. It is safe for concurrent use.
type Context struct {
	mu        sync.Mutex
	backend   Backend
	store     TokenStore
	cur       Identity
	gen       uint64 // bumped by every Login, Logout and demotion
	listeners map[int]func(Identity)
	nextID    int
	log       *slog.Logger
}

// New creates an anonymous Context.
func New(backend Backend, store TokenStore) *Context {
	return &Context{
		backend:   backend,
		store:     store,
		listeners: make(map[int]func(Identity)),
		log:       logging.Auth(),
	}
}

// Current returns a snapshot of the identity.
func (c *Context) Current() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Token returns the current bearer token, or "".
func (c *Context) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Token
}

// Subscribe registers fn to run after every identity change.
// fn runs on the goroutine that made the change, outside the lock.
func (c *Context) Subscribe(fn func(Identity)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// ResolveOnStartup loads a persisted token and resolves it. Any failure is a
// local recovery to Anonymous and is not returned.
func (c *Context) ResolveOnStartup(ctx context.Context) Identity {
	token, err := c.store.Load()
	if err != nil {
		c.log.Warn("token store unreadable, starting anonymous", "error", err)
		c.demote(c.generation(), "unreadable token store")
		return c.Current()
	}
	if token == "" {
		return c.Current()
	}

	gen := c.begin(token)
	id, _ := c.resolve(ctx, token, gen)
	return id
}

// Login persists token, makes it current and resolves the identity.
// A resolution failure demotes to Anonymous and is returned.
func (c *Context) Login(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return c.Current(), ErrNoToken
	}
	if err := c.store.Save(token); err != nil {
		// The in-memory copy stays authoritative for this run.
		c.log.Warn("failed to persist token", "error", err)
	}
	gen := c.begin(token)
	return c.resolve(ctx, token, gen)
}

// Logout discards the identity. When a token is held the backend is told on
// a best-effort basis; local state and storage are cleared regardless.
func (c *Context) Logout(ctx context.Context) {
	c.mu.Lock()
	token := c.cur.Token
	c.gen++
	c.cur = Identity{State: Anonymous}
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.log.Warn("failed to clear token store", "error", err)
	}
	c.notify()

	if token == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, LogoutTimeout)
	defer cancel()
	if err := c.backend.Logout(callCtx, token); err != nil {
		c.log.Info("backend logout failed, local state already cleared", "error", err)
		return
	}
	c.log.Info("logged out")
}

// Reload re-reads the token store after an outside change (another process
// logged in or out). A removed token is a local logout without a backend call.
func (c *Context) Reload(ctx context.Context) Identity {
	token, err := c.store.Load()
	if err != nil {
		c.log.Warn("token store unreadable after change", "error", err)
		token = ""
	}

	c.mu.Lock()
	same := token == c.cur.Token
	c.mu.Unlock()
	if same {
		return c.Current()
	}

	if token == "" {
		c.demote(c.generation(), "token removed externally")
		return c.Current()
	}
	gen := c.begin(token)
	id, _ := c.resolve(ctx, token, gen)
	return id
}

// =============================================================================
// INTERNALS
// =============================================================================

func (c *Context) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// begin enters Resolving for token and returns the new generation.
func (c *Context) begin(token string) uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cur = Identity{State: Resolving, Token: token}
	c.mu.Unlock()
	c.notify()
	return gen
}

// resolve fetches the identity for token and applies it if gen is still current.
func (c *Context) resolve(ctx context.Context, token string, gen uint64) (Identity, error) {
	me, err := c.backend.Me(ctx, token)
	if err != nil {
		if c.demote(gen, "identity resolution failed") {
			c.log.Info("token rejected, now anonymous", "error", err, "unauthorized", api.IsUnauthorized(err))
			return c.Current(), fmt.Errorf("resolve identity: %w", err)
		}
		return c.Current(), ErrSuperseded
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return c.Current(), ErrSuperseded
	}
	age := 0
	if me.Age != nil && *me.Age > 0 {
		age = *me.Age
	}
	c.cur = Identity{State: Authenticated, Token: token, Username: me.Username, Age: age}
	id := c.cur
	c.mu.Unlock()

	c.log.Info("identity resolved", "username", me.Username)
	c.notify()
	return id, nil
}

// demote clears identity and storage if gen is still current.
func (c *Context) demote(gen uint64, reason string) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.gen++
	c.cur = Identity{State: Anonymous}
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.log.Warn("failed to clear token store", "error", err, "reason", reason)
	}
	c.notify()
	return true
}

func (c *Context) notify() {
	c.mu.Lock()
	id := c.cur
	fns := make([]func(Identity), 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
