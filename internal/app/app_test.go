package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenape/builderfee/internal/approval"
	"github.com/degenape/builderfee/internal/provider/providertest"
	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/views/approve"
	"github.com/degenape/builderfee/internal/views/banner"
)

const acct = "0xABCD000000000000000000000000000000001234"

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func newModel(t *testing.T, wallet *providertest.Fake) (Model, *session.Controller) {
	t.Helper()
	ap, err := approval.NewTransaction(wallet)
	require.NoError(t, err)
	opts := session.DefaultOptions()
	opts.PollInterval = time.Millisecond
	ctrl := session.New(wallet, ap, opts)
	t.Cleanup(ctrl.Close)
	ctrl.Init(context.Background())

	m := New(ctrl)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model), ctrl
}

// refresh feeds the controller's latest snapshot to the model as the watch
// loop would.
func refresh(m Model, ctrl *session.Controller) Model {
	next, _ := m.Update(snapshotMsg{ctrl.Snapshot()})
	return next.(Model)
}

func TestViewInitializing(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	ap, err := approval.NewTransaction(wallet)
	require.NoError(t, err)
	ctrl := session.New(wallet, ap, session.DefaultOptions())
	defer ctrl.Close()

	assert.Equal(t, "Initializing...", New(ctrl).View())
}

func TestConnectKey(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	wallet.Authorized = false
	m, ctrl := newModel(t, wallet)
	assert.Contains(t, m.View(), "Not Connected")

	m, cmd := press(m, "c")
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, intentDoneMsg{name: "connect"}, msg)
	assert.Equal(t, 1, wallet.Calls("eth_requestAccounts"))

	m = refresh(m, ctrl)
	v := m.View()
	assert.Contains(t, v, "Connected")
	assert.Contains(t, v, "0xABCD...1234")
	assert.NotContains(t, v, banner.Title)
}

func TestWrongNetwork(t *testing.T) {
	wallet := providertest.New("0x1", acct)
	m, ctrl := newModel(t, wallet)

	v := m.View()
	assert.Contains(t, v, banner.Title)
	assert.Contains(t, v, approve.Label)

	_, cmd := press(m, "a")
	assert.Nil(t, cmd, "approve is disabled off the required network")

	wallet.EmitOnSwitch = true
	m, cmd = press(m, "s")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, wallet.Calls("wallet_switchEthereumChain"))

	m = refresh(m, ctrl)
	assert.NotContains(t, m.View(), banner.Title)
}

func TestApproveKey(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	m, ctrl := newModel(t, wallet)

	m, cmd := press(m, "enter")
	require.NotNil(t, cmd)
	cmd()
	assert.Len(t, wallet.Sent(), 1)

	m = refresh(m, ctrl)
	assert.Contains(t, m.View(), "Builder Fee Approved Successfully!")
	assert.Contains(t, m.View(), wallet.TxHash)
}

func TestIntentsIgnoredWhenUnavailable(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	wallet.Available = false
	m, _ := newModel(t, wallet)

	assert.Contains(t, m.View(), "Wallet Not Detected")
	for _, k := range []string{"c", "s", "a"} {
		_, cmd := press(m, k)
		assert.Nil(t, cmd, "key %q", k)
	}
}

func TestDebugOverlay(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	m, _ := newModel(t, wallet)

	m, _ = press(m, "d")
	assert.Equal(t, OverlayDebug, m.overlay)
	assert.Contains(t, m.View(), "SESSION LOG")

	m, cmd := press(m, "a")
	assert.Nil(t, cmd, "intents are not dispatched under the overlay")

	m, _ = press(m, "esc")
	assert.Equal(t, OverlayNone, m.overlay)
	assert.False(t, strings.Contains(m.View(), "SESSION LOG"))
}

func TestSnapshotMessagesAreLogged(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	m, _ := newModel(t, wallet)

	next, cmd := m.Update(snapshotMsg{session.Snapshot{
		State:  session.NotConnected,
		Result: &session.Result{Kind: session.ResultError, Message: session.MsgTxRejected},
	}})
	m = next.(Model)
	assert.NotNil(t, cmd, "the watch loop continues")

	var found bool
	for _, e := range m.debug.Entries {
		if e.Message == session.MsgTxRejected {
			found = true
		}
	}
	assert.True(t, found)
}

func TestQuit(t *testing.T) {
	wallet := providertest.New("0xa4b1", acct)
	m, _ := newModel(t, wallet)

	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err(), "quitting cancels in-flight intents")
}
