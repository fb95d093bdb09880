// Package approve renders the approval control and the outcome panel.
package approve

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/theme"
)

// Label is the approval control's caption.
const Label = "Approve Builder Fee (0.1% Max)"

// Model holds the approval panel state.
type Model struct {
	Snapshot session.Snapshot
	Width    int
	spinner  spinner.Model
}

// New creates an approval panel.
func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorAccent)
	return Model{spinner: s}
}

// Tick starts the spinner.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Update forwards spinner ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// Enabled reports whether the control accepts presses.
func (m Model) Enabled() bool {
	return m.Snapshot.CanApprove()
}

func (m Model) button() string {
	if m.Snapshot.Pending && m.Snapshot.Result != nil && m.Snapshot.Result.Message == session.MsgSubmitting {
		return theme.StyleButtonDisabled.Render(m.spinner.View() + " " + session.MsgSubmitting)
	}
	if !m.Enabled() {
		return theme.StyleButtonDisabled.Render(Label)
	}
	return theme.StyleButton.Render(Label)
}

func resultColor(k session.ResultKind) lipgloss.Color {
	switch k {
	case session.ResultSuccess:
		return theme.ColorSuccess
	case session.ResultError:
		return theme.ColorError
	default:
		return theme.ColorInfo
	}
}

func (m Model) result() string {
	r := m.Snapshot.Result
	if r == nil {
		return ""
	}
	return lipgloss.NewStyle().Foreground(resultColor(r.Kind)).Render(r.Message)
}

// View renders the control, the current outcome and confirmation progress.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	lines := []string{m.button()}
	if !m.Enabled() && !m.Snapshot.Pending {
		hint := "Connect a wallet to approve"
		if m.Snapshot.State == session.Connected {
			hint = "Switch to " + network.ArbitrumOne.ChainName + " to approve"
		}
		lines = append(lines, theme.StyleDimmed.Render(hint))
	}
	if res := m.result(); res != "" {
		lines = append(lines, "", res)
	}
	if m.Snapshot.TxHash != "" {
		lines = append(lines, theme.StyleDimmed.Render("tx "+m.Snapshot.TxHash))
	}
	if m.Snapshot.Confirming {
		lines = append(lines, m.spinner.View()+theme.StyleDimmed.Render(" waiting for confirmation"))
	}

	border := theme.ColorBorder
	if r := m.Snapshot.Result; r != nil && !m.Snapshot.Pending {
		border = resultColor(r.Kind)
	}
	return theme.Panel(width, border).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
