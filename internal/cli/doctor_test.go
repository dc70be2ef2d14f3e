// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/safechat-tui/internal/backendtest"
)

func doctorApp(t *testing.T, srv *backendtest.Server, token string) *App {
	t.Helper()
	app, _ := newTestApp(t, srv, token, 0)
	dir := t.TempDir()
	app.Config.Auth.TokenFile = filepath.Join(dir, "token")
	app.Config.Logging.File = filepath.Join(dir, "logs", "safechat.log")
	return app
}

func doctorArgs(t *testing.T, jsonMode bool) Args {
	return Args{ConfigPath: filepath.Join(t.TempDir(), "missing.toml"), JSON: jsonMode}
}

func TestDoctor_Healthy(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "secret1", 11)
	app := doctorApp(t, srv, token)

	var out bytes.Buffer
	err := runDoctor(context.Background(), app, doctorArgs(t, false), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "using defaults")
	assert.Contains(t, text, "Signed in as mia")
	assert.Contains(t, text, "answered in")
	assert.Contains(t, text, "No stored token")
	assert.Contains(t, text, "writable")
	assert.Equal(t, 1, srv.Calls(backendtest.RouteHealth))
}

func TestDoctor_BackendDown(t *testing.T) {
	srv := backendtest.New(t)
	app := doctorApp(t, srv, "")
	srv.FailNext(backendtest.RouteHealth, http.StatusServiceUnavailable, "maintenance")

	var out bytes.Buffer
	err := runDoctor(context.Background(), app, doctorArgs(t, true), &out)
	require.Error(t, err)

	var resp struct {
		Success bool       `json:"success"`
		Data    DoctorData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Summary.Failed)
	assert.False(t, resp.Data.Summary.Healthy)

	byName := map[string]*HealthCheck{}
	for _, c := range resp.Data.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "fail", byName["Backend Reachable"].State)
	assert.Equal(t, "warn", byName["Signed In"].State)
	assert.Equal(t, "Not signed in", byName["Signed In"].Message)
}

func TestCheckTokenFile(t *testing.T) {
	srv := backendtest.New(t)
	app := doctorApp(t, srv, "")
	cfg := app.Config

	require.NoError(t, os.WriteFile(cfg.TokenPath(), []byte("tok"), 0o644))
	c := checkTokenFile(cfg)
	assert.Equal(t, CheckWarn, c.Status)
	assert.Contains(t, c.Fix, "chmod 600")

	require.NoError(t, os.Chmod(cfg.TokenPath(), 0o600))
	assert.Equal(t, CheckPass, checkTokenFile(cfg).Status)

	cfg.Auth.EncryptToken = true
	cfg.Auth.PassphraseEnv = "SAFECHAT_TEST_UNSET_PASSPHRASE"
	c = checkTokenFile(cfg)
	assert.Equal(t, CheckFail, c.Status)
	assert.Contains(t, c.Fix, "SAFECHAT_TEST_UNSET_PASSPHRASE")
}

func TestCheckStatusString(t *testing.T) {
	assert.Equal(t, "pass", CheckPass.String())
	assert.Equal(t, "warn", CheckWarn.String())
	assert.Equal(t, "fail", CheckFail.String())
	assert.Equal(t, "unknown", CheckStatus(9).String())
}
