// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display current configuration
//   get <key>           Print one value
//   set <key> <value>   Change a value and save
//   reset               Write the defaults
//   path                Show the configuration file path
//
// Examples:
//   safechat config get backend.url
//   safechat config set backend.url https://chat.example.org
//   safechat config set chat.default_age 12
//   safechat config set ui.theme light
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/safechat-tui/internal/config"
)

// HandleConfigCommand runs a config subcommand.
func HandleConfigCommand(args Args) error {
	return runConfig(confirmPrompter(), args, os.Stdout)
}

func runConfig(p Prompter, args Args, out io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return &ConfigError{Err: err}
	}

	switch args.Subcommand {
	case "path":
		return OutputJSON(args.JSON, "config", func() (interface{}, error) {
			if !args.JSON {
				fmt.Fprintln(out, path)
			}
			return map[string]string{"path": path}, nil
		})

	case "reset":
		ok, err := RequireConfirmation(p, args.Confirm, args.JSON,
			"overwrite "+path+" with defaults", "config reset", "safechat config reset --confirm")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, DimStyle.Render("Cancelled."))
			return nil
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return &ConfigError{Err: err}
		}
		fmt.Fprintln(out, SuccessStyle.Render("Configuration reset to defaults"))
		return nil
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return &ConfigError{Err: err}
	}

	switch args.Subcommand {
	case "show", "list":
		return OutputJSON(args.JSON, "config", func() (interface{}, error) {
			if !args.JSON {
				printConfig(out, cfg, path)
			}
			return cfg, nil
		})

	case "get":
		if args.ConfigKey == "" {
			return NewUsageError("config get", "key is required", "safechat config get backend.url")
		}
		v, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return &ConfigError{Err: err}
		}
		return OutputJSON(args.JSON, "config", func() (interface{}, error) {
			if !args.JSON {
				fmt.Fprintln(out, v)
			}
			return map[string]interface{}{args.ConfigKey: v}, nil
		})

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return NewUsageError("config set", "key and value are required", "safechat config set ui.theme light")
		}
		if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return &ConfigError{Err: err}
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return &ConfigError{Err: err}
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return &ConfigError{Err: err}
		}
		if !args.Quiet {
			fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("Set"), args.ConfigKey, args.ConfigVal)
		}
		return nil
	}
	return NewUsageError("config", "unknown subcommand "+quoteID(args.Subcommand), "safechat config [show|get|set|reset|path]")
}

func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPath()
}

func printConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, TitleStyle.Render("Configuration")+" "+DimStyle.Render(path))
	for _, key := range config.GetAllKeys() {
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  %s %v\n", LabelStyle.Width(28).Render(key), v)
	}
}
