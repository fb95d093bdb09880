// Package theme provides the Lip Gloss palette and shared styles for the
// builderfee TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Brand colors.
var (
	ColorAccent   = lipgloss.Color("#97fce4")
	ColorArbitrum = lipgloss.Color("#28a0f0")
	ColorBanana   = lipgloss.Color("#facc15")
)

// Connection state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnectedDim = lipgloss.Color("#166534")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorFailed       = lipgloss.Color("#dc2626")
	ColorIdle         = lipgloss.Color("#6b7280")
)

// Outcome colors.
var (
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder   = lipgloss.Color("#4b5563")
	ColorDimmed   = lipgloss.Color("#6b7280")
	ColorBright   = lipgloss.Color("#f9fafb")
	ColorBg       = lipgloss.Color("#111827")
	ColorWarning  = lipgloss.Color("#d97706")
	ColorDisabled = lipgloss.Color("#374151")
)

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleButton = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Foreground(ColorBg).
			Background(ColorAccent)

	StyleButtonDisabled = lipgloss.NewStyle().
				Padding(0, 2).
				Foreground(ColorDimmed).
				Background(ColorDisabled)
)

// Panel returns a rounded panel of the given outer width.
func Panel(width int, border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border)
}
