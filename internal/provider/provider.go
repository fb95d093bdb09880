// Package provider talks to a self-custody wallet through its EIP-1193
// request/event surface. The wallet is reached over a JSON-RPC websocket;
// tests substitute the in-memory fake in providertest.
package provider

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/degenape/builderfee/internal/network"
)

// Event names a provider-pushed event stream.
type Event string

const (
	EventAccountsChanged Event = "accountsChanged"
	EventChainChanged    Event = "chainChanged"
)

// Handler receives the raw payload of a pushed event.
type Handler func(payload json.RawMessage)

// Subscription is returned by Subscribe. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Tx is the eth_sendTransaction parameter object.
type Tx struct {
	From string        `json:"from"`
	To   string        `json:"to"`
	Data hexutil.Bytes `json:"data,omitempty"`
}

// Receipt holds the fields of eth_getTransactionReceipt the approval flow
// needs.
type Receipt struct {
	TxHash      string          `json:"transactionHash"`
	Status      hexutil.Uint64  `json:"status"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
	GasUsed     hexutil.Uint64  `json:"gasUsed"`
	Logs        json.RawMessage `json:"logs,omitempty"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// Provider is the wallet capability set the session controller consumes.
type Provider interface {
	// IsAvailable reports whether a wallet is reachable at all.
	IsAvailable() bool

	// RequestAccounts prompts the user to authorise accounts.
	RequestAccounts(ctx context.Context) ([]string, error)
	// GetAccounts returns already-authorised accounts without prompting.
	GetAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)

	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, params network.Params) error

	SendTransaction(ctx context.Context, tx Tx) (string, error)
	SignTypedData(ctx context.Context, account string, data apitypes.TypedData) (string, error)
	// TransactionReceipt returns nil, nil while the transaction is pending.
	TransactionReceipt(ctx context.Context, hash string) (*Receipt, error)

	Subscribe(event Event, handler Handler) (Subscription, error)
}

// DecodeAccounts decodes an accountsChanged payload.
func DecodeAccounts(payload json.RawMessage) ([]string, error) {
	var accounts []string
	if len(payload) == 0 || string(payload) == "null" {
		return accounts, nil
	}
	if err := json.Unmarshal(payload, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// DecodeChainID decodes a chainChanged payload. Wallets send either a hex
// string or, rarely, a bare number.
func DecodeChainID(payload json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return network.NormalizeChainID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(payload, &n); err != nil {
		return "", err
	}
	return network.NormalizeChainID(n.String()), nil
}
