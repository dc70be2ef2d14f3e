// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

func TestToastFromNotice(t *testing.T) {
	if ToastFromNotice(nil) != nil {
		t.Error("nil notice should give nil toast")
	}

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	toast := ToastFromNotice(&stream.Notice{Text: "try again", At: at, Err: errors.New("boom")})
	if toast.Kind != ToastKindError || toast.Message != "try again" {
		t.Errorf("toast = %+v", toast)
	}
	if toast.IsExpired(at.Add(ErrorToastDuration - time.Second)) {
		t.Error("toast expired early")
	}
	if !toast.IsExpired(at.Add(ErrorToastDuration)) {
		t.Error("toast should expire after its duration")
	}
}

func TestStatusToastExpiry(t *testing.T) {
	now := time.Now()
	toast := NewStatusToast("New chat started", now)
	if toast.IsExpired(now) {
		t.Error("fresh toast should not be expired")
	}
	if !toast.IsExpired(now.Add(StatusToastDuration)) {
		t.Error("status toast should expire")
	}
	var none *Toast
	if !none.IsExpired(now) {
		t.Error("nil toast counts as expired")
	}
}

func TestRenderToast(t *testing.T) {
	theme := styles.NewTheme(styles.ThemeDark)
	if RenderToast(theme, nil, 80) != "" {
		t.Error("nil toast renders nothing")
	}

	errToast := &Toast{Message: "Sorry, something went wrong.", Kind: ToastKindError}
	out := RenderToast(theme, errToast, 80)
	if !strings.Contains(out, "something went wrong") || !strings.Contains(out, "esc") {
		t.Errorf("error toast = %q", out)
	}

	long := &Toast{Message: strings.Repeat("word ", 40), Kind: ToastKindStatus}
	if !strings.Contains(RenderToast(theme, long, 30), "…") {
		t.Error("long toast should be truncated")
	}
}

func TestHeader(t *testing.T) {
	theme := styles.NewTheme(styles.ThemeDark)
	h := NewHeader(theme)
	h.SetWidth(100)
	theme.SetSize(100, 30)

	if !strings.Contains(h.View(), "not signed in") {
		t.Error("anonymous header should say so")
	}
	if h.Height() != 2 {
		t.Errorf("Height() without band = %d, want 2", h.Height())
	}

	h.Username = "mia"
	h.AgeBand = model.BandChild
	h.SessionID = "s-123"
	h.AgeOverride = 9
	out := h.View()
	for _, want := range []string{"SafeChat", "mia", "age 9", "s-123", "child", "fun, safe topics"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
	if h.Height() != 3 {
		t.Errorf("Height() with band = %d, want 3", h.Height())
	}
}

func TestStatusBar(t *testing.T) {
	theme := styles.NewTheme(styles.ThemeDark)
	theme.SetSize(120, 30)
	s := NewStatusBar(theme)
	s.Width = 120

	if !strings.Contains(s.View(), "new chat") {
		t.Error("wide status bar should list shortcuts")
	}

	s.Submitting = true
	s.SpinnerView = "*"
	if !strings.Contains(s.View(), "waiting for reply") {
		t.Error("submitting status missing")
	}

	theme.SetSize(40, 30)
	s.Width = 40
	s.Submitting = false
	if strings.Contains(s.View(), "sign out") {
		t.Error("narrow status bar should trim shortcuts")
	}
}
