// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/safechat-tui/internal/identity"
	"github.com/jeranaias/safechat-tui/internal/logging"
)

var (
	// ErrNotAuthenticated is returned when a session is needed but no token is held.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrSuperseded is returned when a newer reset overtook a session request.
	ErrSuperseded = errors.New("session: request superseded")

	// ErrEmptyID is returned by Resume for an empty id.
	ErrEmptyID = errors.New("session: empty session id")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Creator requests fresh session ids from the backend.
type Creator interface {
	NewSession(ctx context.Context, token string) (string, error)
}

// IdentitySource supplies the bearer token and username.
type IdentitySource interface {
	Current() identity.Identity
}

// Recorder is told about every session id the manager learns.
type Recorder interface {
	RecordSession(ctx context.Context, id, username string, origin string, at time.Time) error
}

// Origin describes how the active id was obtained.
type Origin string

const (
	OriginNone    Origin = ""
	OriginCreated Origin = "created"
	OriginAdopted Origin = "adopted"
	OriginResumed Origin = "resumed"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the active session id. It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	// Session tracking
	id     string
	origin Origin
	since  time.Time
	gen    uint64 // bumped whenever the id is discarded or replaced

	// Collaborators
	creator  Creator
	ident    IdentitySource
	recorder Recorder
	onReset  func()
	onChange func(id string)

	group singleflight.Group
	log   *slog.Logger
	now   func() time.Time
}

// NewManager creates a manager with no active session.
func NewManager(creator Creator, ident IdentitySource) *Manager {
	return &Manager{
		creator: creator,
		ident:   ident,
		log:     logging.Session(),
		now:     time.Now,
	}
}

// SetRecorder installs r. A nil r disables recording.
func (m *Manager) SetRecorder(r Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

// OnReset installs the transcript reset run by StartNewChat.
func (m *Manager) OnReset(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReset = fn
}

// OnChange installs fn, run outside the lock after every change of the
// active id, including clears.
func (m *Manager) OnChange(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// ID returns the active session id, or "".
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Ensure returns the active session id, requesting one from the backend when
// none is set. It makes no backend call when an id already exists, and
// concurrent callers share one request.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.id != "" {
		id := m.id
		m.mu.Unlock()
		return id, nil
	}
	gen := m.gen
	m.mu.Unlock()

	token := m.ident.Current().Token
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return m.acquire(ctx, token, gen)
}

// StartNewChat clears the transcript through the reset hook, discards the
// active id and requests a fresh one. On failure the id stays unset.
func (m *Manager) StartNewChat(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	old := m.id
	m.id, m.origin, m.since = "", OriginNone, time.Time{}
	reset := m.onReset
	m.mu.Unlock()

	if reset != nil {
		reset()
	}
	if old != "" {
		m.changed("")
	}
	m.log.Debug("new chat requested", "previous", old)

	token := m.ident.Current().Token
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return m.acquire(ctx, token, gen)
}

// Resume makes id the active session. The caller loads its history.
func (m *Manager) Resume(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	m.mu.Lock()
	m.gen++
	m.id, m.origin, m.since = id, OriginResumed, m.now()
	m.mu.Unlock()

	m.record(ctx, id, OriginResumed)
	m.changed(id)
	return nil
}

// AdoptIfUnset makes id the active session only when none is set.
// It reports whether id was adopted.
func (m *Manager) AdoptIfUnset(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	if m.id != "" {
		m.mu.Unlock()
		return false
	}
	m.id, m.origin, m.since = id, OriginAdopted, m.now()
	m.mu.Unlock()

	m.log.Info("adopted session from reply", "session", id)
	m.record(ctx, id, OriginAdopted)
	m.changed(id)
	return true
}

// Clear discards the active id without requesting a new one.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.gen++
	had := m.id != ""
	m.id, m.origin, m.since = "", OriginNone, time.Time{}
	m.mu.Unlock()

	if had {
		m.changed("")
	}
}

// Follow keeps the manager in step with ident: a new token clears the old
// session and ensures a fresh one, losing the token clears it.
func (m *Manager) Follow(ctx context.Context, ident *identity.Context) (stop func()) {
	var mu sync.Mutex
	last := ident.Current().Token

	return ident.Subscribe(func(id identity.Identity) {
		mu.Lock()
		changed := id.Token != last
		last = id.Token
		mu.Unlock()

		if changed {
			m.Clear()
		}
		if !id.Authenticated() {
			return
		}
		if _, err := m.Ensure(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			m.log.Warn("session creation after login failed", "error", err)
		}
	})
}

// =============================================================================
// INTERNALS
// =============================================================================

// acquire requests a session for generation gen. Callers for the same
// generation share one backend call.
func (m *Manager) acquire(ctx context.Context, token string, gen uint64) (string, error) {
	v, err, _ := m.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		id, err := m.creator.NewSession(ctx, token)
		if err != nil {
			m.log.Warn("session creation failed, will retry on next message", "error", err)
			return "", fmt.Errorf("create session: %w", err)
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			m.log.Debug("discarding superseded session", "session", id)
			return "", ErrSuperseded
		}
		if m.id != "" {
			// Adopted from a reply while the request was in flight.
			current := m.id
			m.mu.Unlock()
			return current, nil
		}
		m.id, m.origin, m.since = id, OriginCreated, m.now()
		m.mu.Unlock()

		m.log.Info("session created", "session", id)
		m.record(ctx, id, OriginCreated)
		m.changed(id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) changed(id string) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (m *Manager) record(ctx context.Context, id string, origin Origin) {
	m.mu.Lock()
	r := m.recorder
	at := m.since
	m.mu.Unlock()
	if r == nil {
		return
	}
	username := m.ident.Current().Username
	if err := r.RecordSession(ctx, id, username, string(origin), at); err != nil {
		m.log.Warn("failed to record session", "session", id, "error", err)
	}
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status is a snapshot of the active session.
type Status struct {
	SessionID string
	Origin    Origin
	Since     time.Time
	Age       time.Duration
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{SessionID: m.id, Origin: m.origin, Since: m.since}
	if !m.since.IsZero() {
		s.Age = m.now().Sub(m.since)
	}
	return s
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return strconv.Itoa(mins) + "m"
		}
		return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return strconv.Itoa(hours) + "h"
	}
	return strconv.Itoa(hours) + "h " + strconv.Itoa(mins) + "m"
}
