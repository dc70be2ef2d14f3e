// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for safechat commands.
//
// Commands always return errors; the HandleX wrappers decide how to show
// them and which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/config"
	"github.com/jeranaias/safechat-tui/internal/identity"
	"github.com/jeranaias/safechat-tui/internal/session"
	"github.com/jeranaias/safechat-tui/internal/storage"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/tokenstore"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not signed in or the token was rejected
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a session or resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context.
type CommandError struct {
	Command string // e.g. "sessions"
	Action  string // e.g. "delete"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is a malformed invocation.
type UsageError struct {
	Command string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Command, e.Reason)
	if e.Example != "" {
		msg += fmt.Sprintf("\nUsage: %s", e.Example)
	}
	return msg
}

// ConfigError wraps a failure to load or change configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewUsageError creates a new usage error.
func NewUsageError(command, reason, example string) error {
	return &UsageError{Command: command, Reason: reason, Example: example}
}

// =============================================================================
// MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var cfgErr *ConfigError
	var validateErrs config.ValidateErrors
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.As(err, &usageErr),
		errors.Is(err, stream.ErrEmptyMessage),
		errors.Is(err, stream.ErrInvalidAge):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, identity.ErrNoToken),
		errors.Is(err, tokenstore.ErrDecryptionFailed),
		errors.Is(err, tokenstore.ErrPassphraseRequired):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound), errors.Is(err, storage.ErrSessionNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr) && netErr.Timeout():
		return ExitTimeoutError
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}

// FormatError renders err for a terminal user.
func FormatError(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, identity.ErrNoToken):
		return "not signed in. Run 'safechat login' first."
	case errors.Is(err, api.ErrUnauthorized):
		return "your sign-in has expired. Run 'safechat login' again."
	case errors.As(err, &apiErr):
		return apiErr.UserMessage()
	}
	if GetExitCode(err) == ExitNetworkError {
		return fmt.Sprintf("cannot reach the chat backend (%v)", err)
	}
	return err.Error()
}

// exitOnError prints err and exits. Used where a HandleX wrapper is not in play.
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), FormatError(err))
	os.Exit(GetExitCode(err))
}
