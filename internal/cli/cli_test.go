package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenape/builderfee/internal/config"
	"github.com/degenape/builderfee/internal/session"
)

func resetFlags(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.yaml")
	providerURL = ""
	approvalMode = ""
	logFile = filepath.Join(dir, "builderfee.log")
	logLevel = ""
	statusJSON = false
}

func TestLoadConfigOverrides(t *testing.T) {
	resetFlags(t)
	providerURL = "ws://127.0.0.1:9999"
	approvalMode = config.ModeTransaction
	logLevel = "debug"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9999", cfg.Provider.URL)
	assert.Equal(t, config.ModeTransaction, cfg.Approval.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)

	approvalMode = "smoke-signals"
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestSetupLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	f, err := setupLogging(config.LogConfig{File: path, Level: "info", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, f)
	defer f.Close()

	_, err = setupLogging(config.LogConfig{File: path, Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestStatusWithoutWallet(t *testing.T) {
	resetFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "--provider", "ws://127.0.0.1:1", "--log-file", logFile, "--config", configPath})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Wallet Not Detected")
	assert.Contains(t, out.String(), "Ready:    no")

	_, err := os.Stat(logFile)
	assert.NoError(t, err, "logs go to the log file")
}

func TestStatusJSON(t *testing.T) {
	resetFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "--json", "--provider", "ws://127.0.0.1:1", "--log-file", logFile, "--config", configPath})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Wallet Not Detected", got["state"])
	assert.Equal(t, "0xa4b1", got["requiredChainId"])
}

func TestApproveWithoutWallet(t *testing.T) {
	resetFlags(t)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"approve", "--provider", "ws://127.0.0.1:1", "--log-file", logFile, "--config", configPath})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no wallet reachable")
}

func TestPrintSnapshot(t *testing.T) {
	var out bytes.Buffer
	printSnapshot(&out, session.Snapshot{
		State:           session.Connected,
		Account:         "0xabc",
		ChainID:         "0x1",
		RequiredChainID: "0xa4b1",
		Result:          &session.Result{Kind: session.ResultError, Message: session.MsgSwitchRejected},
	})
	s := out.String()
	assert.Contains(t, s, "Wallet:   Connected")
	assert.Contains(t, s, "0x1 (switch to Arbitrum One required)")
	assert.Contains(t, s, session.MsgSwitchRejected)
	assert.Contains(t, s, "Max fee:  0.1%")
}

func TestWaitFor(t *testing.T) {
	ch := make(chan session.Snapshot, 3)
	ch <- session.Snapshot{ChainID: "0x1"}
	ch <- session.Snapshot{ChainID: "0xa4b1", RequiredChainID: "0xa4b1"}

	snap, err := waitFor(context.Background(), ch, session.Snapshot.OnRequiredChain)
	require.NoError(t, err)
	assert.Equal(t, "0xa4b1", snap.ChainID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = waitFor(ctx, ch, session.Snapshot.OnRequiredChain)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(ch)
	_, err = waitFor(context.Background(), ch, session.Snapshot.OnRequiredChain)
	assert.Error(t, err)
}

func TestErrFromResult(t *testing.T) {
	assert.NoError(t, errFromResult(session.Snapshot{}))
	assert.NoError(t, errFromResult(session.Snapshot{Result: &session.Result{Kind: session.ResultSuccess}}))
	err := errFromResult(session.Snapshot{Result: &session.Result{Kind: session.ResultError, Message: session.MsgTxRejected}})
	assert.EqualError(t, err, session.MsgTxRejected)
}
