// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jeranaias/safechat-tui/internal/util"
)

// Sentinel errors matched by *APIError through errors.Is.
var (
	// ErrUnauthorized indicates a missing, expired or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates the backend rejected request fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx backend response.
type APIError struct {
	Op     string            // Client operation (e.g. "chat", "login")
	Status int               // HTTP status code
	Detail string            // User-facing detail message
	Fields map[string]string // Field-level validation messages
}

// Error implements the error interface.
func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, detail)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrValidation:
		return e.Status == http.StatusUnprocessableEntity || len(e.Fields) > 0
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// UserMessage returns the text to show the user.
func (e *APIError) UserMessage() string {
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+": "+e.Fields[name])
		}
		return strings.Join(parts, "; ")
	}
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// errorBody is the backend's error envelope. Detail is either a string or a
// list of field errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// newAPIError builds an *APIError from a response body.
func newAPIError(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, Status: status}

	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		e.Detail = util.TruncateRunes(strings.TrimSpace(string(body)), 200)
		return e
	}

	var detail string
	if err := json.Unmarshal(env.Detail, &detail); err == nil {
		e.Detail = detail
		return e
	}

	var fields []fieldError
	if err := json.Unmarshal(env.Detail, &fields); err == nil {
		e.Fields = make(map[string]string, len(fields))
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			name := fieldName(f.Loc)
			if _, seen := e.Fields[name]; !seen {
				e.Fields[name] = f.Msg
			}
			msgs = append(msgs, f.Msg)
		}
		e.Detail = strings.Join(msgs, "; ")
		return e
	}

	e.Detail = string(env.Detail)
	return e
}

// fieldName returns the last element of a validation location.
func fieldName(loc []any) string {
	if len(loc) == 0 {
		return "request"
	}
	return fmt.Sprint(loc[len(loc)-1])
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// FieldErrors returns field-level validation messages carried by err.
func FieldErrors(err error) map[string]string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

// UserMessage returns a user-facing message for any client error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}
