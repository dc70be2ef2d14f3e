// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/identity"
	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/session"
)

// Age override bounds accepted by the backend.
const (
	MinAge = 1
	MaxAge = 120
)

var (
	// ErrEmptyMessage is returned when the submitted text is blank.
	ErrEmptyMessage = errors.New("stream: empty message")

	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("stream: a message is already being sent")

	// ErrInvalidAge is returned by SetAgeOverride for out-of-range ages.
	ErrInvalidAge = fmt.Errorf("stream: age must be between %d and %d", MinAge, MaxAge)

	// ErrDiscarded is returned when the reply arrived after the transcript
	// was replaced or cleared.
	ErrDiscarded = errors.New("stream: reply discarded, conversation changed")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the chat surface the controller needs.
type Backend interface {
	Chat(ctx context.Context, token string, req api.ChatRequest) (*api.ChatResponse, error)
	History(ctx context.Context, token, sessionID string) (*api.HistoryResponse, error)
}

// Sessions is the session manager surface the controller needs.
type Sessions interface {
	ID() string
	Ensure(ctx context.Context) (string, error)
	AdoptIfUnset(ctx context.Context, id string) bool
	Resume(ctx context.Context, id string) error
}

// IdentitySource supplies the bearer token, username and age.
type IdentitySource interface {
	Current() identity.Identity
}

// Journal is told about every settled turn.
type Journal interface {
	RecordTurn(ctx context.Context, sessionID string, user, bot model.Message) error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the transcript of the active conversation.
type Controller struct {
	mu sync.Mutex

	// State
	transcript  *model.Transcript
	submitting  bool
	notice      *Notice
	ageOverride int

	// Collaborators
	backend  Backend
	sessions Sessions
	ident    IdentitySource
	journal  Journal

	listeners map[int]func()
	nextID    int

	log *slog.Logger
	now func() time.Time
}

// New creates a controller with an empty transcript.
func New(backend Backend, sessions Sessions, ident IdentitySource) *Controller {
	return &Controller{
		transcript: model.NewTranscript(),
		backend:    backend,
		sessions:   sessions,
		ident:      ident,
		listeners:  make(map[int]func()),
		log:        logging.Stream(),
		now:        time.Now,
	}
}

// SetJournal installs j. A nil j disables journaling.
func (c *Controller) SetJournal(j Journal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = j
}

// Subscribe registers fn to run after every transcript or state mutation.
func (c *Controller) Subscribe(fn func()) (unsubscribe func()) {
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

// SetAgeOverride sets the age sent with every turn. 0 clears it.
func (c *Controller) SetAgeOverride(age int) error {
	if age != 0 && (age < MinAge || age > MaxAge) {
		return ErrInvalidAge
	}
	c.mu.Lock()
	c.ageOverride = age
	c.mu.Unlock()
	c.notify()
	return nil
}

// AgeOverride returns the explicit age override, or 0.
func (c *Controller) AgeOverride() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ageOverride
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends one user turn and returns the bot reply.
//
// Blank text returns ErrEmptyMessage and a concurrent call returns ErrBusy;
// neither touches the transcript. A backend failure reverts the placeholder,
// keeps the user message, records a Notice and returns the error.
func (c *Controller) Submit(ctx context.Context, text string) (model.Message, error) {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return model.Message{}, ErrEmptyMessage
	}

	now := c.now()
	user := model.NewUserMessage(text, now)

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return model.Message{}, ErrBusy
	}
	pending, err := c.transcript.Speculate(user, now)
	if err != nil {
		c.mu.Unlock()
		return model.Message{}, ErrBusy
	}
	c.submitting = true
	c.notice = nil
	age := c.requestAgeLocked()
	c.mu.Unlock()
	c.notify()

	cur := c.ident.Current()
	if cur.Token == "" {
		return model.Message{}, c.fail(pending, session.ErrNotAuthenticated)
	}

	sessionID, err := c.sessions.Ensure(ctx)
	if err != nil {
		// The backend assigns a session when none is sent.
		c.log.Warn("no session before submit, sending without one", "error", err)
		sessionID = ""
	}

	req := api.ChatRequest{Message: text, SessionID: sessionID}
	if age > 0 {
		req.Age = &age
	}

	resp, err := c.backend.Chat(ctx, cur.Token, req)
	if err != nil {
		return model.Message{}, c.fail(pending, err)
	}
	return c.succeed(ctx, pending, user, resp)
}

// requestAgeLocked returns the override age, else the identity age, else 0.
func (c *Controller) requestAgeLocked() int {
	if c.ageOverride > 0 {
		return c.ageOverride
	}
	return c.ident.Current().Age
}

func (c *Controller) succeed(ctx context.Context, p *model.Pending, user model.Message, resp *api.ChatResponse) (model.Message, error) {
	bot := BotMessage(resp, c.now())

	c.mu.Lock()
	stale := p.Stale()
	committed := p.Commit(bot)
	c.submitting = false
	journal := c.journal
	c.mu.Unlock()

	if stale || !committed {
		c.log.Debug("discarding late reply", "session", resp.SessionID)
		c.notify()
		return model.Message{}, ErrDiscarded
	}

	if !resp.AgeGate && resp.SessionID != "" {
		c.sessions.AdoptIfUnset(ctx, resp.SessionID)
	}
	c.notify()

	if journal != nil && !bot.AgeGated {
		if err := journal.RecordTurn(ctx, c.sessions.ID(), user, bot); err != nil {
			c.log.Warn("failed to journal turn", "error", err)
		}
	}
	return bot, nil
}

func (c *Controller) fail(p *model.Pending, cause error) error {
	c.mu.Lock()
	reverted := p.Revert()
	c.submitting = false
	if reverted {
		c.notice = &Notice{Text: noticeText(cause), At: c.now(), Err: cause}
	}
	c.mu.Unlock()
	c.notify()

	c.log.Warn("message submission failed", "error", cause, "reverted", reverted)
	return fmt.Errorf("submit: %w", cause)
}

// =============================================================================
// HISTORY AND RESET
// =============================================================================

// LoadHistory replaces the transcript with the backend's history for
// sessionID. On failure the transcript is left unchanged.
func (c *Controller) LoadHistory(ctx context.Context, sessionID string) error {
	token := c.ident.Current().Token
	if token == "" {
		return session.ErrNotAuthenticated
	}

	resp, err := c.backend.History(ctx, token, sessionID)
	if err != nil {
		c.log.Warn("history load failed, transcript unchanged", "session", sessionID, "error", err)
		return fmt.Errorf("load history: %w", err)
	}

	msgs := HistoryMessages(resp.Messages)

	c.mu.Lock()
	c.transcript.Replace(msgs)
	c.notice = nil
	c.mu.Unlock()
	c.notify()

	c.log.Info("history loaded", "session", sessionID, "messages", len(msgs))
	return nil
}

// Resume loads the history of sessionID and, once it loaded, makes it the
// active session.
func (c *Controller) Resume(ctx context.Context, sessionID string) error {
	if err := c.LoadHistory(ctx, sessionID); err != nil {
		return err
	}
	return c.sessions.Resume(ctx, sessionID)
}

// StartNewChat clears the transcript. It does not load any history.
func (c *Controller) StartNewChat() {
	c.mu.Lock()
	c.transcript.Clear()
	c.notice = nil
	c.mu.Unlock()
	c.notify()
}

// DismissNotice clears the current notice.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	had := c.notice != nil
	c.notice = nil
	c.mu.Unlock()
	if had {
		c.notify()
	}
}

// ActiveAgeBand returns the band of the most recent message carrying one,
// else the band derived from the override or identity age.
func (c *Controller) ActiveAgeBand() model.AgeBand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.ActiveBand(c.transcript.LatestBand(), c.requestAgeLocked())
}

// Changed tells subscribers that state read by View but held elsewhere,
// such as the session id or the identity, has moved.
func (c *Controller) Changed() {
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
