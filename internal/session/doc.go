// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the active backend conversation id.
//
// Exactly one session id is active per Manager. It is acquired lazily the
// first time a token is available, explicitly by StartNewChat, adopted from a
// chat reply, or set by resuming a known session. Once assigned an id is never
// mutated: starting a new chat discards it and requests a fresh one.
//
// # Key Types
//
//   - Manager: Owner of the session id
//   - Status: Snapshot of the id, how it was obtained and when
//   - Recorder: Optional sink recording every id the client learns about
//
// # Usage
//
//	mgr := session.NewManager(client, ident)
//	mgr.OnReset(ctrl.StartNewChat)
//	unfollow := mgr.Follow(ctx, ident)
//	defer unfollow()
//
//	id, err := mgr.Ensure(ctx) // no backend call when an id is already set
//
// # Failure Policy
//
// A failed creation is logged and leaves the id unset. Nothing is retried in
// the background; the next Ensure (usually the next submitted message) tries
// again.
package session
