// Package status renders the wallet status bar.
package status

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/theme"
)

// FPS is the rate the connected indicator is animated at.
const FPS = 30

// Model holds the status bar state.
type Model struct {
	Snapshot session.Snapshot
	Width    int

	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// New creates a status bar model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 1.0),
		target: 1,
	}
}

// Animate advances the connected pulse by one frame. The indicator springs
// between dim and bright while the wallet is connected.
func (m *Model) Animate() {
	if m.Snapshot.State != session.Connected {
		m.pos, m.vel, m.target = 0, 0, 1
		return
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.05 && math.Abs(m.vel) < 0.05 {
		m.target = 1 - m.target
	}
}

// Bright reports whether the pulse is in its bright half.
func (m Model) Bright() bool {
	return m.pos >= 0.5
}

func (m Model) indicator() string {
	var color lipgloss.Color
	glyph := "●"
	switch m.Snapshot.State {
	case session.Connected:
		color = theme.ColorConnectedDim
		if m.Bright() {
			color = theme.ColorConnected
		}
	case session.Connecting:
		color = theme.ColorConnecting
		glyph = "◌"
	case session.ConnectionFailed:
		color = theme.ColorFailed
		glyph = "✗"
	case session.ProviderUnavailable:
		color = theme.ColorFailed
		glyph = "○"
	default:
		color = theme.ColorIdle
		glyph = "○"
	}
	return lipgloss.NewStyle().Foreground(color).Render(glyph + " " + m.Snapshot.State.String())
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := m.indicator()

	if m.Snapshot.Account != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorBright).
			Render(network.ShortAddress(m.Snapshot.Account))
	}

	if m.Snapshot.State == session.Connected {
		chain := m.Snapshot.ChainID
		if chain == "" {
			chain = "unknown network"
		}
		color := theme.ColorWarning
		if m.Snapshot.OnRequiredChain() {
			chain = network.ArbitrumOne.ChainName
			color = theme.ColorArbitrum
		}
		content += sep + lipgloss.NewStyle().Foreground(color).Render(chain)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
