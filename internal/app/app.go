// Package app is the root Bubble Tea model. It renders controller snapshots
// and turns key presses into controller intents; it never mutates session
// state itself.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/theme"
	"github.com/degenape/builderfee/internal/views/approve"
	"github.com/degenape/builderfee/internal/views/banner"
	"github.com/degenape/builderfee/internal/views/card"
	"github.com/degenape/builderfee/internal/views/debug"
	"github.com/degenape/builderfee/internal/views/status"
)

// Controller is the session API the TUI drives.
type Controller interface {
	Init(ctx context.Context)
	Connect(ctx context.Context)
	SwitchChain(ctx context.Context)
	Approve(ctx context.Context)
	Snapshot() session.Snapshot
	Watch() (<-chan session.Snapshot, func())
}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

type (
	snapshotMsg    struct{ session.Snapshot }
	watchClosedMsg struct{}
	intentDoneMsg  struct{ name string }
	pulseMsg       time.Time
)

// Model is the root Bubble Tea model.
type Model struct {
	ctrl      Controller
	ctx       context.Context
	cancel    context.CancelFunc
	updates   <-chan session.Snapshot
	stopWatch func()

	keys    KeyMap
	width   int
	height  int
	overlay Overlay
	snap    session.Snapshot

	statusBar status.Model
	approve   approve.Model
	card      *card.Model
	debug     debug.Model
}

// New creates the root model and starts watching ctrl.
func New(ctrl Controller) Model {
	ctx, cancel := context.WithCancel(context.Background())
	updates, stop := ctrl.Watch()
	c := card.New()
	m := Model{
		ctrl:      ctrl,
		ctx:       ctx,
		cancel:    cancel,
		updates:   updates,
		stopWatch: stop,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		approve:   approve.New(),
		card:      &c,
		debug:     debug.New(),
	}
	m.setSnapshot(ctrl.Snapshot())
	return m
}

// Init detects the wallet and starts the render loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.run("init", m.ctrl.Init),
		waitForSnapshot(m.updates),
		m.approve.Tick(),
		pulse(),
	)
}

func waitForSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return snapshotMsg{snap}
	}
}

func pulse() tea.Cmd {
	return tea.Tick(time.Second/status.FPS, func(t time.Time) tea.Msg { return pulseMsg(t) })
}

// run executes an intent off the UI goroutine. The outcome arrives as a
// snapshot; the returned message only marks completion.
func (m Model) run(name string, intent func(context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		intent(ctx)
		return intentDoneMsg{name: name}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.approve.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.debug.Diff(m.snap, msg.Snapshot)
		m.setSnapshot(msg.Snapshot)
		return m, waitForSnapshot(m.updates)

	case watchClosedMsg:
		return m, nil

	case intentDoneMsg:
		m.debug.Addf(debug.KindIntent, "%s finished", msg.name)
		return m, nil

	case pulseMsg:
		m.statusBar.Animate()
		return m, pulse()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.approve, cmd = m.approve.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) setSnapshot(snap session.Snapshot) {
	m.snap = snap
	m.statusBar.Snapshot = snap
	m.approve.Snapshot = snap
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Connect):
		if !m.snap.CanConnect() {
			return m, nil
		}
		m.debug.Add(debug.KindIntent, "connect")
		return m, m.run("connect", m.ctrl.Connect)

	case key.Matches(msg, m.keys.Switch):
		if !m.snap.CanSwitch() {
			return m, nil
		}
		m.debug.Add(debug.KindIntent, "switch network")
		return m, m.run("switch network", m.ctrl.SwitchChain)

	case key.Matches(msg, m.keys.Approve):
		if !m.approve.Enabled() {
			return m, nil
		}
		m.debug.Add(debug.KindIntent, "approve")
		return m, m.run("approve", m.ctrl.Approve)

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.stopWatch()
	m.cancel()
	return m, tea.Quit
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.overlay == OverlayDebug {
		return m.debug.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View()}
	if b := banner.View(m.snap, m.width); b != "" {
		sections = append(sections, b)
	}
	sections = append(sections,
		m.card.View(m.width),
		m.approve.View(),
		theme.StyleDimmed.Render("  c:connect  s:switch network  a:approve  d:log  q:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
