// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the full-screen chat view.

The Model is a Bubble Tea model that renders the message stream controller's
snapshot and turns key presses into controller calls. It owns no transcript
state of its own: every redraw starts from stream.View.

# Key Components

## Model (model.go)

Holds the components, the text input and the subscription to controller
changes. Changes arrive on a one-slot channel drained by a tea.Cmd, so a
notification raised from inside Update never blocks the event loop.

## Update Loop (update.go)

  - enter submits; blank input is ignored
  - ctrl+n starts a new chat, ctrl+l signs out, ctrl+c quits
  - esc dismisses the notice
  - up/down/pgup/pgdown and the mouse wheel scroll; ctrl+end jumps to the bottom

Backend work runs in tea.Cmd goroutines and reports back with a *DoneMsg.

## Slash Commands (commands.go)

/new, /resume <id>, /age <n|off>, /export [md|json|html] [path], /logout,
/help and /quit.

## View Rendering (view.go)

Header, transcript viewport, toast, input and status bar stacked vertically.
*/
package chat
