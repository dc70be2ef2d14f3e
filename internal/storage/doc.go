// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local index of known chat sessions.
//
// The backend owns conversations; this package only remembers which session
// ids the client has seen, who used them, and a journal of settled turns so
// they can be listed and resumed later.
//
// # Key Types
//
//   - SessionIndex: SQLite-backed index (pure Go driver, WAL mode)
//   - SessionMeta: Lightweight metadata for listing
//   - Turn: One journaled user/bot exchange
//
// # Usage
//
//	idx, err := storage.Open(filepath.Join(dir, "sessions.db"))
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	metas, err := idx.List(ctx, "mia", 20)
//	fmt.Print(storage.FormatSessionList(metas))
//
// # Storage Location
//
// The database lives at ~/.safechat/sessions.db unless chat.history_db is set.
package storage
