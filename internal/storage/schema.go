// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the SQLite schema for the session index.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Sessions: one row per backend session id the client learned about
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL DEFAULT '',   -- created, adopted, resumed
    created_at INTEGER NOT NULL,       -- Unix millis
    last_used INTEGER NOT NULL,        -- Unix millis
    turn_count INTEGER NOT NULL DEFAULT 0,
    preview TEXT NOT NULL DEFAULT ''   -- first user message
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_sessions_last_used ON sessions(last_used);
CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username);

-- Turns: settled user/bot exchanges
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    at INTEGER NOT NULL,               -- Unix millis
    user_content TEXT NOT NULL,
    bot_content TEXT NOT NULL,
    age_band TEXT NOT NULL DEFAULT '',
    risk_level TEXT NOT NULL DEFAULT '',
    adjusted INTEGER NOT NULL DEFAULT 0,
    age_gated INTEGER NOT NULL DEFAULT 0,
    moderation_reason TEXT NOT NULL DEFAULT '',
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
