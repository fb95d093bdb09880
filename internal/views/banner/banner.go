// Package banner renders the wrong-network warning.
package banner

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/theme"
)

const Title = "Please switch to Arbitrum"

// Visible reports whether the banner applies to snap.
func Visible(snap session.Snapshot) bool {
	return snap.State == session.Connected && snap.ChainID != "" && !snap.OnRequiredChain()
}

// View renders the banner, or "" when the wallet is on the right network.
func View(snap session.Snapshot, width int) string {
	if !Visible(snap) {
		return ""
	}
	if width < 40 {
		width = 40
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWarning).Render("⚠ " + Title)
	detail := theme.StyleDimmed.Render(fmt.Sprintf("Wallet is on chain %s; approvals require %s.", snap.ChainID, snap.RequiredChainID))

	action := "[s] Switch network"
	if snap.Pending {
		action = "Waiting for wallet..."
	}
	actionStr := lipgloss.NewStyle().Foreground(theme.ColorArbitrum).Render(action)

	return theme.Panel(width, theme.ColorWarning).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, detail, actionStr))
}
