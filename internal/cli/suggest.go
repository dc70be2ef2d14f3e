// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - typo correction for command names.
package cli

import "strings"

// commandWords lists every command and alias the parser accepts.
var commandWords = []string{
	"tui", "chat",
	"login", "signin", "register", "signup", "logout", "signout",
	"whoami", "me",
	"sessions", "session", "history", "resume",
	"config", "doctor", "diag", "diagnose",
	"version", "help",
}

// SuggestCommand returns the closest command to input, or "" when nothing
// is close enough to be a likely typo.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	best, bestDistance := "", maxDistance+1
	for _, word := range commandWords {
		d := editDistance(input, word)
		if d == 0 {
			return ""
		}
		if d < bestDistance {
			best, bestDistance = word, d
		}
	}
	return best
}

// unknownCommandError is the usage error for a command nobody recognizes.
func unknownCommandError(name string) error {
	if s := SuggestCommand(name); s != "" {
		return NewUsageError(name, "unknown command, did you mean "+quoteID(s)+"?", "safechat "+s)
	}
	return NewUsageError(name, "unknown command", "safechat help")
}

// editDistance is the Levenshtein distance over bytes, two rows at a time.
func editDistance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
