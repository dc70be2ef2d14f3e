// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
//
// This package defines the core domain types used throughout the application
// for representing a moderated conversation: messages carrying the safety
// metadata computed by the backend, and the ordered transcript that the
// stream controller mutates.
//
// # Key Types
//
//   - Message: Single transcript entry with role, content, timestamp and safety metadata
//   - Transcript: Ordered message list with a two-phase speculative turn
//   - Pending: Handle for one speculative turn (Commit or Revert)
//   - AgeBand, RiskLevel: Backend-assigned safety tiers
//   - ModerationExplain: Reason and category scores for altered or blocked content
//
// # Usage
//
// Speculatively append a user turn and its typing placeholder, then settle it:
//
//	t := model.NewTranscript()
//	p, err := t.Speculate(model.NewUserMessage("hello", time.Now()), time.Now())
//	if err != nil {
//	    return err
//	}
//	p.Commit(model.NewBotMessage("hi", time.Now()))
//
// Derive the conversation band shown in the header:
//
//	band := model.ActiveBand(t.LatestBand(), identityAge)
package model
