// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the message stream controller.
//
// The Controller exclusively owns the transcript. Every mutation happens
// inside one critical section per logical operation, so a submission and a
// history load never interleave their edits. Presentation code reads
// snapshots through View and never touches the transcript directly.
//
// # Submission Lifecycle
//
//  1. Speculate: append the user message and a typing placeholder, enter submitting
//  2. Ensure a session (a failure is tolerated; the backend may assign one)
//  3. Call the backend with the message, age and session id
//  4. Commit the bot reply with its safety metadata, or Revert and record a Notice
//
// At most one submission is in flight. A second Submit while one is pending
// returns ErrBusy and is not queued. Nothing is retried automatically.
//
// # Usage
//
//	ctrl := stream.New(client, sessions, ident)
//	if _, err := ctrl.Submit(ctx, "hello"); err != nil {
//	    // ErrEmptyMessage / ErrBusy are rejections; anything else also set a Notice
//	}
//	view := ctrl.View()
package stream
