// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual pieces of the chat screen.
//
// # Key Types
//
//   - MessageList: renders the transcript with safety badges
//   - ChatViewport: scrollable transcript driven by scroll.Coordinator
//   - Toast: transient notice shown above the input
//   - Header: identity, age band copy and session id
//   - StatusBar: spinner, scroll position and shortcuts
//
// Components are plain values owned by the chat model. They never call the
// backend and never mutate the transcript.
package components
