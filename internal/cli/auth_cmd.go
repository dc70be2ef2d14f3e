// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - login, register, logout and whoami.
//
// Examples:
//   safechat login --user mia
//   safechat register --user mia --age 11
//   safechat whoami --json
//   safechat logout
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/stream"
)

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// =============================================================================
// HANDLERS
// =============================================================================

// HandleLoginCommand signs in and stores the token.
func HandleLoginCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()
	return runLogin(ctx, app, newTermPrompter(), args.User, os.Stdout)
}

// HandleRegisterCommand creates an account and signs in.
func HandleRegisterCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()
	return runRegister(ctx, app, newTermPrompter(), args.User, args.Age, os.Stdout)
}

// HandleLogoutCommand revokes and forgets the token.
func HandleLogoutCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()

	was := app.Identity.Current()
	app.Identity.Logout(ctx)
	if args.Quiet {
		return nil
	}
	if was.HasToken() {
		fmt.Println(SuccessStyle.Render("Signed out"))
	} else {
		fmt.Println("Not signed in")
	}
	return nil
}

// WhoamiData is the --json payload of whoami.
type WhoamiData struct {
	SignedIn bool   `json:"signed_in"`
	Username string `json:"username,omitempty"`
	Age      int    `json:"age,omitempty"`
	AgeBand  string `json:"age_band,omitempty"`
	Backend  string `json:"backend"`
}

// HandleWhoamiCommand prints the identity behind the stored token.
func HandleWhoamiCommand(args Args) error {
	ctx := context.Background()
	app, err := openApp(ctx, args, false)
	if err != nil {
		return err
	}
	defer app.Close()

	return OutputJSON(args.JSON, "whoami", func() (interface{}, error) {
		return whoami(app, os.Stdout, args.JSON)
	})
}

// =============================================================================
// IMPLEMENTATION
// =============================================================================

func runLogin(ctx context.Context, app *App, p Prompter, username string, out io.Writer) error {
	username, err := askUsername(p, username)
	if err != nil {
		return err
	}
	password, err := p.Secret("Password: ")
	if err != nil {
		return err
	}

	token, err := app.Client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	id, err := app.Identity.Login(ctx, token)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(out, "%s Signed in as %s\n", SuccessStyle.Render("OK"), id.Username)
	return nil
}

func runRegister(ctx context.Context, app *App, p Prompter, username string, age int, out io.Writer) error {
	username, err := askUsername(p, username)
	if err != nil {
		return err
	}
	password, err := p.Secret("Password: ")
	if err != nil {
		return err
	}
	confirm, err := p.Secret("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	if age <= 0 {
		answer, err := p.Line("Age (optional): ")
		if err != nil {
			return err
		}
		if answer != "" {
			if age, err = strconv.Atoi(answer); err != nil {
				return NewUsageError("register", "age must be a number", "safechat register --age 12")
			}
		}
	}
	if age != 0 && (age < stream.MinAge || age > stream.MaxAge) {
		return stream.ErrInvalidAge
	}

	req := api.RegisterRequest{Username: username, Password: password}
	if age > 0 {
		req.Age = &age
	}
	token, err := app.Client.Register(ctx, req)
	if err != nil {
		if fields := api.FieldErrors(err); len(fields) > 0 {
			printFieldErrors(out, fields)
		}
		return fmt.Errorf("register: %w", err)
	}

	id, err := app.Identity.Login(ctx, token)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Fprintf(out, "%s Account created. Signed in as %s\n", SuccessStyle.Render("OK"), id.Username)
	return nil
}

func whoami(app *App, out io.Writer, jsonMode bool) (*WhoamiData, error) {
	id := app.Identity.Current()
	data := &WhoamiData{
		SignedIn: id.Authenticated(),
		Username: id.Username,
		Age:      id.Age,
		AgeBand:  string(model.BandForAge(id.Age)),
		Backend:  app.Client.BaseURL(),
	}
	if jsonMode {
		return data, nil
	}
	if !data.SignedIn {
		fmt.Fprintln(out, "Not signed in")
		return data, nil
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("User"), data.Username)
	if data.Age > 0 {
		fmt.Fprintf(out, "%s%d %s\n", RenderLabel("Age"), data.Age, RenderBand(model.BandForAge(data.Age)))
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Backend"), data.Backend)
	return data, nil
}

func askUsername(p Prompter, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username != "" {
		return username, nil
	}
	answer, err := p.Line("Username: ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", NewUsageError("login", "username is required", "safechat login --user NAME")
	}
	return answer, nil
}

func printFieldErrors(out io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s %s\n", WarningStyle.Render(name+":"), fields[name])
	}
}
