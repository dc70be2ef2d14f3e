// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - confirmation of destructive commands.
//
// One rule for every command:
//   1. --confirm proceeds without prompting
//   2. --json requires --confirm (no prompts in machine output)
//   3. without a terminal, --confirm is required
//   4. otherwise the user is asked [y/N]
package cli

import "strings"

// confirmPrompter returns a Prompter when stdin is a terminal, else nil.
func confirmPrompter() Prompter {
	if !IsTTY() {
		return nil
	}
	return newTermPrompter()
}

// RequireConfirmation decides whether a destructive action may proceed.
// A nil Prompter means nobody can be asked. command and example feed the
// usage error returned when confirmation is impossible.
func RequireConfirmation(p Prompter, confirmFlag, jsonMode bool, action, command, example string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if jsonMode || p == nil {
		return false, NewUsageError(command, "pass --confirm to "+action, example)
	}

	answer, err := p.Line("Are you sure you want to " + action + "? [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
