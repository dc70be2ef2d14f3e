// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/safechat-tui/internal/stream"
)

// Command is a slash command available in the input.
type Command struct {
	Name    string
	Args    string
	Desc    string
	Aliases []string
}

// Commands lists the slash commands in help order.
var Commands = []Command{
	{Name: "/new", Desc: "start a new chat", Aliases: []string{"/n"}},
	{Name: "/resume", Args: "<id>", Desc: "reopen a conversation"},
	{Name: "/age", Args: "<n|off>", Desc: "set the age used for replies"},
	{Name: "/export", Args: "[md|json|html] [path]", Desc: "save this conversation"},
	{Name: "/logout", Desc: "sign out"},
	{Name: "/help", Desc: "list commands", Aliases: []string{"/?"}},
	{Name: "/quit", Desc: "exit", Aliases: []string{"/q", "/exit"}},
}

// lookupCommand resolves a name or alias.
func lookupCommand(name string) (Command, bool) {
	name = strings.ToLower(name)
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
		for _, a := range c.Aliases {
			if a == name {
				return c, true
			}
		}
	}
	return Command{}, false
}

// helpText is the one-line command summary.
func helpText() string {
	parts := make([]string, len(Commands))
	for i, c := range Commands {
		parts[i] = strings.TrimSpace(c.Name + " " + c.Args)
	}
	return strings.Join(parts, "  ")
}

func (m Model) runCommand(line string) (Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd, ok := lookupCommand(fields[0])
	if !ok {
		m.setStatus(fmt.Sprintf("Unknown command %s. Try /help", fields[0]))
		return m, nil
	}
	args := fields[1:]

	switch cmd.Name {
	case "/new":
		return m, m.newChatCmd()

	case "/resume":
		if len(args) == 0 {
			m.setStatus("Usage: /resume <session-id>")
			return m, nil
		}
		return m, m.resumeCmd(args[0])

	case "/age":
		if len(args) == 0 {
			m.setStatus("Usage: /age <n|off>")
			return m, nil
		}
		age := 0
		if args[0] != "off" {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				m.setStatus(fmt.Sprintf("age must be between %d and %d", stream.MinAge, stream.MaxAge))
				return m, nil
			}
			age = n
		}
		if err := m.stream.SetAgeOverride(age); err != nil {
			m.setStatus(fmt.Sprintf("age must be between %d and %d", stream.MinAge, stream.MaxAge))
			return m, nil
		}
		if age == 0 {
			m.setStatus("Age override cleared")
		} else {
			m.setStatus(fmt.Sprintf("Replies will be tuned for age %d", age))
		}
		return m, nil

	case "/export":
		if m.opts.Export == nil {
			m.setStatus("Export is not available here")
			return m, nil
		}
		format, path := "", ""
		if len(args) > 0 {
			format = args[0]
		}
		if len(args) > 1 {
			path = args[1]
		}
		return m, m.exportCmd(format, path)

	case "/logout":
		return m, m.logoutCmd()

	case "/help":
		m.setStatus(helpText())
		return m, nil

	case "/quit":
		m.Close()
		return m, tea.Quit
	}
	return m, nil
}
