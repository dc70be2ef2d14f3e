// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/safechat-tui/internal/logging"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/util"
)

// PreviewLength is the rune length of stored previews.
const PreviewLength = 80

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session id is not in the index.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &StoreError{Message: "session not found"}

// StoreError represents a session index error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// TYPES
// =============================================================================

// SessionMeta contains metadata for listing sessions.
type SessionMeta struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	TurnCount int       `json:"turn_count"`
	Preview   string    `json:"preview,omitempty"`
}

// Turn is one journaled exchange.
type Turn struct {
	SessionID        string    `json:"session_id"`
	At               time.Time `json:"at"`
	User             string    `json:"user"`
	Bot              string    `json:"bot"`
	AgeBand          string    `json:"age_band,omitempty"`
	RiskLevel        string    `json:"risk_level,omitempty"`
	Adjusted         bool      `json:"adjusted,omitempty"`
	AgeGated         bool      `json:"age_gated,omitempty"`
	ModerationReason string    `json:"moderation_reason,omitempty"`
}

// =============================================================================
// SESSION INDEX
// =============================================================================

// SessionIndex is the SQLite session index. It is safe for concurrent use.
type SessionIndex struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open opens or creates the index at path.
func Open(path string) (*SessionIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &SessionIndex{db: db, path: path, log: logging.Store()}, nil
}

// Path returns the database file path.
func (s *SessionIndex) Path() string {
	return s.path
}

// Close closes the database.
func (s *SessionIndex) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITES
// =============================================================================

// RecordSession inserts id or refreshes its last-used time.
// An empty username never overwrites a known one.
func (s *SessionIndex) RecordSession(ctx context.Context, id, username, origin string, at time.Time) error {
	if id == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	ms := at.UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, username, origin, created_at, last_used)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_used = MAX(sessions.last_used, excluded.last_used),
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE sessions.username END`,
		id, username, origin, ms, ms)
	if err != nil {
		return fmt.Errorf("record session %s: %w", id, err)
	}
	return nil
}

// RecordTurn journals a settled exchange. Turns without a session id are
// not recorded. Callers do not pass age-gated replies.
func (s *SessionIndex) RecordTurn(ctx context.Context, sessionID string, user, bot model.Message) error {
	if sessionID == "" {
		return nil
	}
	at := bot.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	reason := ""
	if bot.Moderation != nil {
		reason = bot.Moderation.Reason
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	defer tx.Rollback()

	ms := at.UnixMilli()
	preview := util.TruncateRunes(util.FirstLine(user.Content), PreviewLength)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_used, turn_count, preview)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_used = MAX(sessions.last_used, excluded.last_used),
			turn_count = sessions.turn_count + 1,
			preview = CASE WHEN sessions.preview = '' THEN excluded.preview ELSE sessions.preview END`,
		sessionID, ms, ms, preview); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, at, user_content, bot_content, age_band, risk_level, adjusted, age_gated, moderation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, ms, user.Content, bot.Content, string(bot.AgeBand), string(bot.RiskLevel),
		bot.Adjusted, bot.AgeGated, reason); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Delete removes a session and its turns.
func (s *SessionIndex) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Prune removes sessions not used since cutoff and returns how many went.
func (s *SessionIndex) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_used < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("pruned sessions", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// =============================================================================
// READS
// =============================================================================

const selectMeta = `SELECT id, username, origin, created_at, last_used, turn_count, preview FROM sessions`

// List returns sessions ordered by most recent use. An empty username lists
// everyone's sessions; limit <= 0 means no limit.
func (s *SessionIndex) List(ctx context.Context, username string, limit int) ([]SessionMeta, error) {
	var (
		where []string
		args  []any
	)
	if username != "" {
		where = append(where, "username = ?")
		args = append(args, username)
	}
	q := selectMeta
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY last_used DESC, id"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get returns the metadata for one session.
func (s *SessionIndex) Get(ctx context.Context, id string) (SessionMeta, error) {
	row := s.db.QueryRowContext(ctx, selectMeta+" WHERE id = ?", id)
	m, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionMeta{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionMeta{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return m, nil
}

// Turns returns the journaled turns of a session in order.
func (s *SessionIndex) Turns(ctx context.Context, id string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, at, user_content, bot_content, age_band, risk_level, adjusted, age_gated, moderation_reason
		FROM turns WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t  Turn
			at int64
		)
		if err := rows.Scan(&t.SessionID, &at, &t.User, &t.Bot, &t.AgeBand, &t.RiskLevel,
			&t.Adjusted, &t.AgeGated, &t.ModerationReason); err != nil {
			return nil, fmt.Errorf("list turns: %w", err)
		}
		t.At = time.UnixMilli(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(r scanner) (SessionMeta, error) {
	var (
		m                 SessionMeta
		created, lastUsed int64
	)
	if err := r.Scan(&m.ID, &m.Username, &m.Origin, &created, &lastUsed, &m.TurnCount, &m.Preview); err != nil {
		return SessionMeta{}, err
	}
	m.CreatedAt = time.UnixMilli(created)
	m.LastUsed = time.UnixMilli(lastUsed)
	return m, nil
}
