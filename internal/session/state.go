package session

import (
	"encoding/json"

	"github.com/degenape/builderfee/internal/network"
)

// ConnectionState is the wallet connection lifecycle.
type ConnectionState int

const (
	NotConnected ConnectionState = iota
	Connecting
	Connected
	ConnectionFailed
	ProviderUnavailable
)

var stateNames = map[ConnectionState]string{
	NotConnected:        "Not Connected",
	Connecting:          "Connecting...",
	Connected:           "Connected",
	ConnectionFailed:    "Connection Failed",
	ProviderUnavailable: "Wallet Not Detected",
}

func (s ConnectionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ResultKind classifies the outcome shown to the user.
type ResultKind int

const (
	ResultInfo ResultKind = iota
	ResultSuccess
	ResultError
)

var kindNames = map[ResultKind]string{
	ResultInfo:    "info",
	ResultSuccess: "success",
	ResultError:   "error",
}

func (k ResultKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k ResultKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Result is the single current user-visible outcome.
type Result struct {
	Kind    ResultKind `json:"kind"`
	Message string     `json:"message"`
}

// state is the mutable session owned by a Controller. Account is set iff
// State is Connected.
type state struct {
	State   ConnectionState
	Account string
	ChainID string
	Pending bool
	Result  *Result
	TxHash  string
}

// Snapshot is an immutable copy of the session handed to observers.
type Snapshot struct {
	State           ConnectionState `json:"state"`
	Account         string          `json:"account,omitempty"`
	ChainID         string          `json:"chainId,omitempty"`
	RequiredChainID string          `json:"requiredChainId"`
	Pending         bool            `json:"pending"`
	Result          *Result         `json:"result,omitempty"`
	TxHash          string          `json:"txHash,omitempty"`
	Confirming      bool            `json:"confirming"`
}

// OnRequiredChain reports whether the wallet is on the approval network.
func (s Snapshot) OnRequiredChain() bool {
	return network.SameChain(s.ChainID, s.RequiredChainID)
}

// CanConnect reports whether a connect intent would do anything.
func (s Snapshot) CanConnect() bool {
	return s.State != Connecting && s.State != ProviderUnavailable
}

// CanSwitch reports whether a switch-chain intent is actionable.
func (s Snapshot) CanSwitch() bool {
	return s.State == Connected && !s.OnRequiredChain() && !s.Pending
}

// CanApprove reports whether an approval may be submitted.
func (s Snapshot) CanApprove() bool {
	return s.State == Connected && s.OnRequiredChain() && !s.Pending
}

func (st *state) snapshot(required string) Snapshot {
	snap := Snapshot{
		State:           st.State,
		Account:         st.Account,
		ChainID:         st.ChainID,
		RequiredChainID: required,
		Pending:         st.Pending,
		TxHash:          st.TxHash,
	}
	if st.Result != nil {
		r := *st.Result
		snap.Result = &r
	}
	return snap
}
