// Package providertest provides an in-memory wallet for tests.
package providertest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/provider"
)

// Fake is a scriptable provider.Provider. Exported fields may be set before
// the fake is handed to the code under test; use the setters afterwards.
type Fake struct {
	mu sync.Mutex

	Available  bool
	Accounts   []string
	Authorized bool // GetAccounts returns Accounts only once authorised
	Chain      string

	RequestErr error
	ChainErr   error
	SwitchErr  error
	AddErr     error
	SendErr    error
	SignErr    error

	TxHash    string
	Signature string
	Receipts  map[string]*provider.Receipt

	// Gates block the matching call until closed (or sent to). ChainGate
	// delays the eth_chainId reply; the chain is read when the call starts.
	RequestGate chan struct{}
	ChainGate   chan struct{}
	SwitchGate  chan struct{}
	SendGate    chan struct{}

	// EmitOnSwitch pushes chainChanged after a successful switch, as real
	// wallets do.
	EmitOnSwitch bool

	calls    map[string]int
	added    []network.Params
	sent     []provider.Tx
	signed   []apitypes.TypedData
	handlers map[provider.Event]map[int]provider.Handler
	nextID   int
}

// New returns an available wallet on chain with the given accounts already
// authorised.
func New(chain string, accounts ...string) *Fake {
	return &Fake{
		Available:  true,
		Accounts:   accounts,
		Authorized: len(accounts) > 0,
		Chain:      chain,
		TxHash:     "0x" + repeat("ab", 32),
		Signature:  "0x" + repeat("11", 32) + repeat("22", 32) + "1b",
		Receipts:   make(map[string]*provider.Receipt),
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

// Calls returns how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Added returns the parameters passed to AddChain.
func (f *Fake) Added() []network.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]network.Params(nil), f.added...)
}

// Sent returns the transactions passed to SendTransaction.
func (f *Fake) Sent() []provider.Tx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Tx(nil), f.sent...)
}

// Signed returns the typed data passed to SignTypedData.
func (f *Fake) Signed() []apitypes.TypedData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apitypes.TypedData(nil), f.signed...)
}

// SetChain changes the chain without emitting an event.
func (f *Fake) SetChain(chain string) {
	f.mu.Lock()
	f.Chain = chain
	f.mu.Unlock()
}

// SetReceipt makes TransactionReceipt return r for hash.
func (f *Fake) SetReceipt(hash string, r *provider.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Receipts == nil {
		f.Receipts = make(map[string]*provider.Receipt)
	}
	f.Receipts[hash] = r
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) IsAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Available
}

func (f *Fake) RequestAccounts(ctx context.Context) ([]string, error) {
	f.record("eth_requestAccounts")
	if err := wait(ctx, f.RequestGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RequestErr != nil {
		return nil, f.RequestErr
	}
	f.Authorized = true
	return append([]string(nil), f.Accounts...), nil
}

func (f *Fake) GetAccounts(ctx context.Context) ([]string, error) {
	f.record("eth_accounts")
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Authorized {
		return nil, nil
	}
	return append([]string(nil), f.Accounts...), nil
}

func (f *Fake) ChainID(ctx context.Context) (string, error) {
	f.record("eth_chainId")
	f.mu.Lock()
	chain, err := f.Chain, f.ChainErr
	f.mu.Unlock()
	if werr := wait(ctx, f.ChainGate); werr != nil {
		return "", werr
	}
	if err != nil {
		return "", err
	}
	return chain, nil
}

func (f *Fake) SwitchChain(ctx context.Context, chainID string) error {
	f.record("wallet_switchEthereumChain")
	if err := wait(ctx, f.SwitchGate); err != nil {
		return err
	}
	f.mu.Lock()
	if f.SwitchErr != nil {
		err := f.SwitchErr
		f.mu.Unlock()
		return err
	}
	f.Chain = chainID
	emit := f.EmitOnSwitch
	f.mu.Unlock()
	if emit {
		f.Emit(provider.EventChainChanged, chainID)
	}
	return nil
}

func (f *Fake) AddChain(ctx context.Context, params network.Params) error {
	f.record("wallet_addEthereumChain")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, params)
	return f.AddErr
}

func (f *Fake) SendTransaction(ctx context.Context, tx provider.Tx) (string, error) {
	f.record("eth_sendTransaction")
	if err := wait(ctx, f.SendGate); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if f.SendErr != nil {
		return "", f.SendErr
	}
	return f.TxHash, nil
}

func (f *Fake) SignTypedData(ctx context.Context, account string, data apitypes.TypedData) (string, error) {
	f.record("eth_signTypedData_v4")
	if err := wait(ctx, f.SendGate); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, data)
	if f.SignErr != nil {
		return "", f.SignErr
	}
	return f.Signature, nil
}

func (f *Fake) TransactionReceipt(ctx context.Context, hash string) (*provider.Receipt, error) {
	f.record("eth_getTransactionReceipt")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Receipts[hash], nil
}

func (f *Fake) Subscribe(event provider.Event, handler provider.Handler) (provider.Subscription, error) {
	f.record("subscribe:" + string(event))
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[provider.Event]map[int]provider.Handler)
	}
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]provider.Handler)
	}
	f.nextID++
	id := f.nextID
	f.handlers[event][id] = handler
	return &subscription{f: f, event: event, id: id}, nil
}

// Subscribers returns the number of live handlers for event.
func (f *Fake) Subscribers(event provider.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

// Emit delivers v, JSON-encoded, to every handler of event on the calling
// goroutine.
func (f *Fake) Emit(event provider.Event, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	if event == provider.EventAccountsChanged {
		if accounts, ok := v.([]string); ok {
			f.Accounts = accounts
			f.Authorized = len(accounts) > 0
		}
	}
	if event == provider.EventChainChanged {
		if chain, ok := v.(string); ok {
			f.Chain = chain
		}
	}
	hs := make([]provider.Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(payload)
	}
}

type subscription struct {
	f     *Fake
	event provider.Event
	id    int
}

func (s *subscription) Unsubscribe() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.handlers[s.event], s.id)
}

var _ provider.Provider = (*Fake)(nil)
