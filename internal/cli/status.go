// status.go implements "builderfee status", a one-shot read of the wallet
// session.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/session"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet connection and network status",
	Long: `Detect the wallet, read already-authorised accounts and the current
network, and report whether an approval could be submitted. Never prompts.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the session snapshot as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.ctrl.Init(cmd.Context())
	snap := rt.ctrl.Snapshot()

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	if snap.State == session.ProviderUnavailable && rt.hint != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", rt.hint)
	}
	return nil
}

func printSnapshot(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "Wallet:   %s\n", snap.State)
	if snap.Account != "" {
		fmt.Fprintf(w, "Account:  %s\n", snap.Account)
	}
	if snap.ChainID != "" {
		chain := snap.ChainID
		if snap.OnRequiredChain() {
			chain += " (" + network.ArbitrumOne.ChainName + ")"
		} else {
			chain += " (switch to " + network.ArbitrumOne.ChainName + " required)"
		}
		fmt.Fprintf(w, "Network:  %s\n", chain)
	}
	fmt.Fprintf(w, "Builder:  %s\n", network.BuilderAddress)
	fmt.Fprintf(w, "Max fee:  %s\n", network.MaxFeeRate)
	if snap.TxHash != "" {
		fmt.Fprintf(w, "Tx:       %s\n", snap.TxHash)
	}
	if snap.Result != nil {
		fmt.Fprintf(w, "Result:   %s\n", snap.Result.Message)
	}
	ready := "no"
	if snap.CanApprove() {
		ready = "yes"
	}
	fmt.Fprintf(w, "Ready:    %s\n", ready)
}
