// Package walletproc looks for a locally running desktop wallet. It is
// used to explain an unreachable provider socket.
package walletproc

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Info describes a wallet process.
type Info struct {
	PID     int32
	Name    string
	CmdLine string
}

// knownWallets are executable names of wallets that expose an EIP-1193
// websocket.
var knownWallets = []string{"frame", "rabby"}

// Discover lists running wallet processes. Processes that vanish or cannot
// be inspected while scanning are skipped.
func Discover(ctx context.Context) ([]Info, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var found []Info
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		if !IsWalletProcess(name, cmdline) {
			continue
		}
		found = append(found, Info{PID: p.Pid, Name: name, CmdLine: cmdline})
	}
	return found, nil
}

// IsWalletProcess matches a wallet binary, or Electron running one.
func IsWalletProcess(name, cmdline string) bool {
	exe := strings.ToLower(strings.TrimSuffix(filepath.Base(name), ".exe"))
	for _, w := range knownWallets {
		if exe == w {
			return true
		}
	}
	if exe != "electron" {
		return false
	}
	args := strings.Fields(strings.ToLower(cmdline))
	if len(args) < 2 {
		return false
	}
	for _, arg := range args[1:] {
		for _, w := range knownWallets {
			if strings.Contains(arg, w) && !strings.Contains(arg, "node_modules/.bin") {
				return true
			}
		}
	}
	return false
}

// Hint explains a failed provider dial given the processes found.
func Hint(found []Info) string {
	if len(found) == 0 {
		return "No desktop wallet is running. Start Frame and enable its local connection."
	}
	return "A wallet is running (" + found[0].Name + ") but its local connection is not reachable. Check the provider URL."
}
