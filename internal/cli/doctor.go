// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command.
//
// Command: doctor
// Short:   Check configuration, backend and local state
// Aliases: diag, diagnose
//
// Examples:
//   safechat doctor
//   safechat doctor --json
//
// Health Checks Performed:
//   1. Config Valid       - configuration loads and validates
//   2. Backend Reachable  - the health endpoint answers "ok"
//   3. Signed In          - the stored token resolves to a user
//   4. Token File         - permissions and encryption passphrase
//   5. Session Index      - the local session database opens
//   6. Log File           - the log directory is writable
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/safechat-tui/internal/config"
)

// DoctorTimeout bounds the backend probe.
const DoctorTimeout = 5 * time.Second

var (
	checkPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	checkWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	checkFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	fixStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).PaddingLeft(7)
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus is the outcome of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// String returns the JSON name of the status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the styled marker of the status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return checkPassStyle.Render("[OK]  ")
	case CheckWarn:
		return checkWarnStyle.Render("[!!]  ")
	default:
		return checkFailStyle.Render("[FAIL]")
	}
}

// HealthCheck is one check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	State   string      `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check for the terminal.
func (c *HealthCheck) Render() string {
	out := fmt.Sprintf("%s %s", c.Status.Symbol(), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		out += "\n" + fixStyle.Render("-> "+c.Fix)
	}
	return out
}

// DoctorSummary counts results by status.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// DoctorData is the --json payload of doctor.
type DoctorData struct {
	Checks  []*HealthCheck `json:"checks"`
	Summary DoctorSummary  `json:"summary"`
}

// =============================================================================
// HANDLER
// =============================================================================

// HandleDoctorCommand runs every check. A config that does not load is
// reported as a failed check rather than aborting.
func HandleDoctorCommand(args Args) error {
	ctx := context.Background()

	cfg, err := LoadConfig(args)
	if err != nil {
		return reportDoctor(os.Stdout, args.JSON, []*HealthCheck{{
			Name:    "Config Valid",
			Status:  CheckFail,
			Message: "Config invalid: " + FormatError(err),
			Fix:     "Run: safechat config reset --confirm",
		}})
	}
	if err := SetupLogging(cfg, args, true); err != nil {
		return &ConfigError{Err: err}
	}
	app, err := NewApp(ctx, cfg, 0, AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	return runDoctor(ctx, app, args, os.Stdout)
}

func runDoctor(ctx context.Context, app *App, args Args, out io.Writer) error {
	checks := []*HealthCheck{
		checkConfig(app, args),
		checkBackend(ctx, app),
		checkSignedIn(app),
		checkTokenFile(app.Config),
		checkSessionIndex(ctx, app),
		checkLogFile(app.Config),
	}
	return reportDoctor(out, args.JSON, checks)
}

func reportDoctor(out io.Writer, jsonMode bool, checks []*HealthCheck) error {
	var sum DoctorSummary
	for _, c := range checks {
		c.State = c.Status.String()
		switch c.Status {
		case CheckPass:
			sum.Passed++
		case CheckWarn:
			sum.Warned++
		default:
			sum.Failed++
		}
	}
	sum.Healthy = sum.Failed == 0

	var result error
	if sum.Failed > 0 {
		result = fmt.Errorf("%d health check(s) failed", sum.Failed)
	}

	if jsonMode {
		resp := NewJSONResponse("doctor", DoctorData{Checks: checks, Summary: sum}).To(out)
		if result != nil {
			msg := result.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Print(); err != nil {
			return err
		}
		return result
	}

	fmt.Fprintln(out, TitleStyle.Render("safechat doctor"))
	fmt.Fprintln(out, RenderSeparator())
	for _, c := range checks {
		fmt.Fprintln(out, c.Render())
	}
	fmt.Fprintln(out, RenderSeparator())

	parts := []string{fmt.Sprintf("%d passed", sum.Passed)}
	if sum.Warned > 0 {
		parts = append(parts, checkWarnStyle.Render(fmt.Sprintf("%d warning", sum.Warned)))
	}
	if sum.Failed > 0 {
		parts = append(parts, checkFailStyle.Render(fmt.Sprintf("%d failed", sum.Failed)))
	}
	fmt.Fprintln(out, strings.Join(parts, ", "))
	return result
}

// =============================================================================
// CHECKS
// =============================================================================

func checkConfig(app *App, args Args) *HealthCheck {
	c := &HealthCheck{Name: "Config Valid", Status: CheckPass}
	path, err := configFilePath(args)
	if err != nil {
		c.Status = CheckWarn
		c.Message = "Could not determine config path"
		return c
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c.Message = "Config valid (using defaults)"
		return c
	}
	if err := app.Config.Validate(); err != nil {
		c.Status = CheckFail
		c.Message = "Config invalid: " + err.Error()
		c.Fix = "Run: safechat config reset --confirm"
		return c
	}
	c.Message = "Config valid (" + path + ")"
	return c
}

func checkBackend(ctx context.Context, app *App) *HealthCheck {
	c := &HealthCheck{Name: "Backend Reachable"}
	ctx, cancel := context.WithTimeout(ctx, DoctorTimeout)
	defer cancel()

	start := time.Now()
	if err := app.Client.Health(ctx); err != nil {
		c.Status = CheckFail
		c.Message = fmt.Sprintf("Backend %s unreachable: %s", app.Client.BaseURL(), FormatError(err))
		c.Fix = "Check backend.url: safechat config set backend.url <url>"
		return c
	}
	c.Status = CheckPass
	c.Message = fmt.Sprintf("Backend %s answered in %s", app.Client.BaseURL(), time.Since(start).Round(time.Millisecond))
	return c
}

func checkSignedIn(app *App) *HealthCheck {
	c := &HealthCheck{Name: "Signed In"}
	id := app.Identity.Current()
	if id.Authenticated() {
		c.Status = CheckPass
		c.Message = "Signed in as " + id.Username
		return c
	}

	c.Status = CheckWarn
	c.Fix = "Run: safechat login"
	if token, err := app.Tokens.Load(); err == nil && token != "" {
		c.Message = "Stored token was not accepted by the backend"
		return c
	}
	c.Message = "Not signed in"
	return c
}

func checkTokenFile(cfg *config.Config) *HealthCheck {
	c := &HealthCheck{Name: "Token File", Status: CheckPass}
	path := cfg.TokenPath()

	if cfg.Auth.EncryptToken && cfg.Passphrase() == "" {
		c.Status = CheckFail
		c.Message = "Token encryption is on but no passphrase is set"
		c.Fix = "Export " + passphraseEnv(cfg) + " or run: safechat config set auth.encrypt_token false"
		return c
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		c.Message = "No stored token"
		return c
	}
	if err != nil {
		c.Status = CheckFail
		c.Message = "Token file unreadable: " + err.Error()
		return c
	}
	// SECURITY: the bearer token must not be readable by other users
	if info.Mode().Perm()&0o077 != 0 {
		c.Status = CheckWarn
		c.Message = fmt.Sprintf("Token file is %s", info.Mode().Perm())
		c.Fix = "Run: chmod 600 " + path
		return c
	}
	c.Message = "Token file " + path + " is private"
	return c
}

func checkSessionIndex(ctx context.Context, app *App) *HealthCheck {
	c := &HealthCheck{Name: "Session Index"}
	if app.Index == nil {
		c.Status = CheckWarn
		c.Message = "Session index unavailable at " + app.Config.HistoryDBPath()
		c.Fix = "Check permissions of " + filepath.Dir(app.Config.HistoryDBPath())
		return c
	}
	metas, err := app.Index.List(ctx, "", 0)
	if err != nil {
		c.Status = CheckFail
		c.Message = "Session index unreadable: " + err.Error()
		return c
	}
	c.Status = CheckPass
	c.Message = fmt.Sprintf("Session index holds %d session(s)", len(metas))
	return c
}

func checkLogFile(cfg *config.Config) *HealthCheck {
	c := &HealthCheck{Name: "Log File"}
	dir := filepath.Dir(cfg.LogPath())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		c.Status = CheckFail
		c.Message = "Could not create log directory: " + err.Error()
		return c
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		c.Status = CheckFail
		c.Message = "Log directory not writable: " + err.Error()
		c.Fix = "Check permissions of " + dir
		return c
	}
	_ = os.Remove(probe)
	c.Status = CheckPass
	c.Message = "Log directory " + dir + " writable"
	return c
}

func passphraseEnv(cfg *config.Config) string {
	if cfg.Auth.PassphraseEnv != "" {
		return cfg.Auth.PassphraseEnv
	}
	return config.DefaultPassphraseEnv
}
