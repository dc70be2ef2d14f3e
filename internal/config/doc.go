// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for safechat.
//
// Configuration is layered, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. ~/.safechat/config.toml (SAFECHAT_HOME moves the directory)
//  3. Environment variables, after ./.env has been loaded
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.New(cfg.Backend.URL, api.WithTimeout(cfg.Timeout()))
//
// Read and write single keys with dot notation:
//
//	v, _ := cfg.Get("ui.theme")
//	_ = cfg.Set("chat.default_age", "12")
//
// # Security
//
// Config files are written atomically with 0600 permissions, and looser
// permissions are tightened on load.
package config
