// approve.go implements "builderfee approve", the whole flow without the
// TUI: connect, switch network if needed, approve and wait.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/degenape/builderfee/internal/session"
)

var (
	approveWait    bool
	approveTimeout time.Duration
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Connect, switch to Arbitrum One and approve the builder fee",
	Long: `Run the approval flow headlessly. The wallet still prompts for every
step; the command waits for each answer and exits non-zero on rejection.`,
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().BoolVar(&approveWait, "wait", true, "Wait for on-chain confirmation in transaction mode")
	approveCmd.Flags().DurationVar(&approveTimeout, "timeout", 2*time.Minute, "How long to wait for the wallet to switch network")
}

// errFromResult turns an error outcome into a command error.
func errFromResult(snap session.Snapshot) error {
	if snap.Result != nil && snap.Result.Kind == session.ResultError {
		return errors.New(snap.Result.Message)
	}
	return nil
}

// waitFor blocks until pred holds for a snapshot from ch.
func waitFor(ctx context.Context, ch <-chan session.Snapshot, pred func(session.Snapshot) bool) (session.Snapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return session.Snapshot{}, ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return session.Snapshot{}, errors.New("session closed")
			}
			if pred(snap) {
				return snap, nil
			}
		}
	}
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	ctrl := rt.ctrl
	ctrl.Init(ctx)

	snap := ctrl.Snapshot()
	if snap.State == session.ProviderUnavailable {
		if rt.hint != "" {
			return fmt.Errorf("no wallet reachable at %s: %s", rt.cfg.Provider.URL, rt.hint)
		}
		return fmt.Errorf("no wallet reachable at %s", rt.cfg.Provider.URL)
	}
	if snap.State != session.Connected {
		fmt.Fprintln(out, "Confirm the connection in your wallet...")
		ctrl.Connect(ctx)
		snap = ctrl.Snapshot()
		if err := errFromResult(snap); err != nil {
			return err
		}
		if snap.State != session.Connected {
			return errors.New("wallet returned no accounts")
		}
	}
	fmt.Fprintf(out, "Connected %s\n", snap.Account)

	updates, stop := ctrl.Watch()
	defer stop()

	if !snap.OnRequiredChain() {
		fmt.Fprintln(out, "Confirm the network switch in your wallet...")
		ctrl.SwitchChain(ctx)
		if err := errFromResult(ctrl.Snapshot()); err != nil {
			return err
		}
		switchCtx, cancel := context.WithTimeout(ctx, approveTimeout)
		snap, err = waitFor(switchCtx, updates, func(s session.Snapshot) bool {
			return s.OnRequiredChain() && s.State == session.Connected
		})
		cancel()
		if err != nil {
			return fmt.Errorf("waiting for network switch: %w", err)
		}
	}

	fmt.Fprintln(out, "Confirm the approval in your wallet...")
	ctrl.Approve(ctx)
	snap = ctrl.Snapshot()
	if err := errFromResult(snap); err != nil {
		return err
	}
	if snap.Result != nil {
		fmt.Fprintln(out, snap.Result.Message)
	}

	if snap.Confirming && approveWait {
		fmt.Fprintf(out, "Waiting for %s...\n", snap.TxHash)
		snap, err = waitFor(ctx, updates, func(s session.Snapshot) bool { return !s.Confirming })
		if err != nil {
			return err
		}
		if err := errFromResult(snap); err != nil {
			return err
		}
		if snap.Result != nil {
			fmt.Fprintln(out, snap.Result.Message)
		}
	}
	return nil
}
