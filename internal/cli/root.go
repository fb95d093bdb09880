// Package cli defines the cobra commands for builderfee. The root command
// runs the TUI; status and approve drive the same session headlessly.
package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/degenape/builderfee/internal/app"
)

var (
	configPath   string
	providerURL  string
	approvalMode string
	logFile      string
	logLevel     string
	version      = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "builderfee",
	Short: "Approve the $TRUST builder fee from your wallet",
	Long: `builderfee connects to a local wallet, makes sure it is on Arbitrum One
and submits a builder-fee approval (max 0.1%) for the $TRUST builder.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		p := tea.NewProgram(app.New(rt.ctrl), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running tui: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "builderfee.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&providerURL, "provider", "", "Wallet websocket URL (overrides provider.url)")
	rootCmd.PersistentFlags().StringVar(&approvalMode, "mode", "", "Approval mode: exchange or transaction")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", `Log destination, "-" for stderr`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(approveCmd)
}
