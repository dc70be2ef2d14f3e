// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/safechat-tui/internal/model"
	"github.com/jeranaias/safechat-tui/internal/scroll"
	"github.com/jeranaias/safechat-tui/internal/stream"
	"github.com/jeranaias/safechat-tui/internal/ui/components"
	"github.com/jeranaias/safechat-tui/internal/ui/styles"
)

// MaxInputLength caps a single message.
const MaxInputLength = 2000

// =============================================================================
// COLLABORATORS
// =============================================================================

// Stream is the message stream controller the view drives.
type Stream interface {
	Submit(ctx context.Context, text string) (model.Message, error)
	Resume(ctx context.Context, sessionID string) error
	DismissNotice()
	SetAgeOverride(age int) error
	View() stream.View
	Subscribe(fn func()) (unsubscribe func())
}

// Sessions starts fresh conversations.
type Sessions interface {
	StartNewChat(ctx context.Context) (string, error)
}

// Identity signs the user out.
type Identity interface {
	Logout(ctx context.Context)
}

// Options tune the view.
type Options struct {
	Theme           *styles.Theme
	ScrollThreshold int
	ShowModeration  bool
	Markdown        bool

	// ResumeID is loaded on start when set.
	ResumeID string

	// Export saves the given snapshot and returns the path written.
	// /export is unavailable when nil.
	Export func(view stream.View, format, path string) (string, error)
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen.
type Model struct {
	stream   Stream
	sessions Sessions
	identity Identity
	opts     Options

	theme     *styles.Theme
	viewport  *components.ChatViewport
	header    *components.Header
	statusBar *components.StatusBar
	input     textinput.Model
	spinner   spinner.Model
	keys      KeyMap

	// Snapshot of the controller as of the last StreamChangedMsg
	view stream.View

	// Local status toast; controller notices come from view.Notice
	status *components.Toast

	spinning bool
	ticking  bool

	width  int
	height int
	ready  bool

	// Lifetime of background calls
	ctx         context.Context
	cancel      context.CancelFunc
	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()
	closeOnce   *sync.Once
}

// New creates the chat screen and subscribes to controller changes.
// Call Close when the program exits.
func New(st Stream, sessions Sessions, ident Identity, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}
	if opts.ScrollThreshold <= 0 {
		opts.ScrollThreshold = scroll.DefaultThreshold
	}

	in := textinput.New()
	in.Placeholder = "Type a message..."
	in.Prompt = theme.InputPrompt.Render("> ")
	in.CharLimit = MaxInputLength
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	vp := components.NewChatViewport(theme, opts.ScrollThreshold)
	vp.List().SetShowModeration(opts.ShowModeration)
	vp.List().SetMarkdown(opts.Markdown)

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		stream:    st,
		sessions:  sessions,
		identity:  ident,
		opts:      opts,
		theme:     theme,
		viewport:  vp,
		header:    components.NewHeader(theme),
		statusBar: components.NewStatusBar(theme),
		input:     in,
		spinner:   sp,
		keys:      DefaultKeyMap(),
		ctx:       ctx,
		cancel:    cancel,
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
	}

	changes := m.changes
	m.unsubscribe = st.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.refresh()
	return m
}

// Close unsubscribes and cancels background calls. It is safe to call twice.
func (m Model) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()
		m.cancel()
		close(m.done)
	})
}

// Init starts the cursor blink, the change listener and an optional resume.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForChange(m.changes, m.done)}
	if m.opts.ResumeID != "" {
		cmds = append(cmds, m.resumeCmd(m.opts.ResumeID))
	}
	return tea.Batch(cmds...)
}

// refresh pulls a new snapshot into the components.
func (m *Model) refresh() {
	m.view = m.stream.View()

	m.header.Username = m.view.Username
	m.header.AgeBand = m.view.AgeBand
	m.header.AgeOverride = m.view.AgeOverride
	m.header.SessionID = m.view.SessionID

	m.viewport.SetMessages(m.view.Messages)
	m.syncStatusBar()
}

func (m *Model) syncStatusBar() {
	m.statusBar.Submitting = m.view.Submitting
	m.statusBar.SpinnerView = m.spinner.View()
	m.statusBar.AtBottom = m.viewport.AtBottom()
	m.statusBar.ScrollPercent = m.viewport.ScrollPercent()
}

// Snapshot returns the last controller snapshot.
func (m Model) Snapshot() stream.View {
	return m.view
}

// Status returns the local status toast, or nil.
func (m Model) Status() *components.Toast {
	return m.status
}

// InputValue returns the text being typed.
func (m Model) InputValue() string {
	return m.input.Value()
}

// Viewport exposes the transcript viewport.
func (m Model) Viewport() *components.ChatViewport {
	return m.viewport
}
