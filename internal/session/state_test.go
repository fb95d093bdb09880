package session

import (
	"encoding/json"
	"testing"
)

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{NotConnected, "Not Connected"},
		{Connecting, "Connecting..."},
		{Connected, "Connected"},
		{ConnectionFailed, "Connection Failed"},
		{ProviderUnavailable, "Wallet Not Detected"},
		{ConnectionState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestSnapshotJSON(t *testing.T) {
	st := state{
		State:   Connected,
		Account: "0xabc",
		ChainID: "0xa4b1",
		Result:  &Result{Kind: ResultSuccess, Message: MsgApproved},
	}
	snap := st.snapshot("0xa4b1")

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["state"] != "Connected" {
		t.Errorf("state = %v", got["state"])
	}
	result := got["result"].(map[string]any)
	if result["kind"] != "success" {
		t.Errorf("result kind = %v", result["kind"])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	st := state{Result: &Result{Kind: ResultInfo, Message: "a"}}
	snap := st.snapshot("0xa4b1")
	st.Result.Message = "b"
	if snap.Result.Message != "a" {
		t.Error("snapshot shares the result with the live state")
	}
}

func TestPreconditions(t *testing.T) {
	base := Snapshot{State: Connected, ChainID: "0xa4b1", RequiredChainID: "0xa4b1"}
	if !base.CanApprove() || base.CanSwitch() {
		t.Error("on the required chain: approve yes, switch no")
	}
	off := base
	off.ChainID = "0x1"
	if off.CanApprove() || !off.CanSwitch() {
		t.Error("off the required chain: approve no, switch yes")
	}
	busy := base
	busy.Pending = true
	if busy.CanApprove() {
		t.Error("pending blocks approve")
	}
	if (Snapshot{State: Connecting}).CanConnect() || (Snapshot{State: ProviderUnavailable}).CanConnect() {
		t.Error("connect is a no-op while connecting or without a wallet")
	}
}
