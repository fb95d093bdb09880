package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenape/builderfee/internal/network"
)

type reply struct {
	result any
	err    *RPCError
	hang   bool
}

// fakeWallet is a JSON-RPC websocket endpoint that answers from a table.
type fakeWallet struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	replies map[string]reply
	seen    []string
	params  map[string][]json.RawMessage
	writeMu sync.Mutex
}

func newFakeWallet(t *testing.T, replies map[string]reply) *fakeWallet {
	t.Helper()
	w := &fakeWallet{replies: replies, params: make(map[string][]json.RawMessage)}
	w.srv = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *fakeWallet) url() string {
	return "ws" + strings.TrimPrefix(w.srv.URL, "http")
}

func (w *fakeWallet) serve(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	for {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		w.mu.Lock()
		w.seen = append(w.seen, req.Method)
		w.params[req.Method] = req.Params
		rep, ok := w.replies[req.Method]
		w.mu.Unlock()

		if req.Method == "eth_subscribe" && !ok {
			var event string
			_ = json.Unmarshal(req.Params[0], &event)
			rep = reply{result: "0xsub-" + event}
		}
		if rep.hang {
			continue
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rep.err != nil {
			resp["error"] = rep.err
		} else {
			resp["result"] = rep.result
		}
		w.write(resp)
	}
}

func (w *fakeWallet) write(v any) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = conn.WriteJSON(v)
}

func (w *fakeWallet) notify(subID string, result any) {
	w.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  "eth_subscription",
		"params":  map[string]any{"subscription": subID, "result": result},
	})
}

func (w *fakeWallet) drop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.Close()
}

func (w *fakeWallet) count(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.seen {
		if m == method {
			n++
		}
	}
	return n
}

func (w *fakeWallet) lastParams(method string) []json.RawMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.params[method]
}

func dial(t *testing.T, w *fakeWallet) *WSProvider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := Dial(ctx, w.url())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestWSRequests(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{
		"eth_accounts":              {result: []string{"0xabc"}},
		"eth_requestAccounts":       {result: []string{"0xabc", "0xdef"}},
		"eth_chainId":               {result: "42161"},
		"eth_sendTransaction":       {result: "0xhash"},
		"eth_signTypedData_v4":      {result: "0xsig"},
		"eth_getTransactionReceipt": {result: nil},
		"wallet_addEthereumChain":   {result: nil},
	})
	p := dial(t, w)
	ctx := context.Background()

	assert.True(t, p.IsAvailable())

	accounts, err := p.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc"}, accounts)

	accounts, err = p.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc", "0xdef"}, accounts)

	chain, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xa4b1", chain)

	hash, err := p.SendTransaction(ctx, Tx{From: "0xabc", To: network.BuilderAddress, Data: hexutil.Bytes{0xde, 0xad}})
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)
	var tx map[string]string
	require.NoError(t, json.Unmarshal(w.lastParams("eth_sendTransaction")[0], &tx))
	assert.Equal(t, "0xdead", tx["data"])

	sig, err := p.SignTypedData(ctx, "0xabc", apitypes.TypedData{PrimaryType: "Mail"})
	require.NoError(t, err)
	assert.Equal(t, "0xsig", sig)
	var encoded string
	require.NoError(t, json.Unmarshal(w.lastParams("eth_signTypedData_v4")[1], &encoded), "typed data travels as a JSON string")
	assert.Contains(t, encoded, `"primaryType":"Mail"`)

	receipt, err := p.TransactionReceipt(ctx, "0xhash")
	require.NoError(t, err)
	assert.Nil(t, receipt, "pending transactions have no receipt")

	require.NoError(t, p.AddChain(ctx, network.Required()))
	var added network.Params
	require.NoError(t, json.Unmarshal(w.lastParams("wallet_addEthereumChain")[0], &added))
	assert.Equal(t, network.ArbitrumOne, added)
}

func TestWSErrorResponse(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{
		"wallet_switchEthereumChain": {err: &RPCError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID \"0xa4b1\"."}},
		"eth_requestAccounts":        {err: &RPCError{Code: CodeUserRejected, Message: "User rejected the request."}},
	})
	p := dial(t, w)

	err := p.SwitchChain(context.Background(), "0xa4b1")
	require.Error(t, err)
	assert.True(t, IsUnrecognizedChain(err))
	assert.Equal(t, CodeUnrecognizedChain, Code(err))

	_, err = p.RequestAccounts(context.Background())
	assert.True(t, IsUserRejected(err))
}

func TestWSSubscriptions(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{"eth_unsubscribe": {result: true}})
	p := dial(t, w)

	first := make(chan json.RawMessage, 4)
	second := make(chan json.RawMessage, 4)
	s1, err := p.Subscribe(EventAccountsChanged, func(m json.RawMessage) { first <- m })
	require.NoError(t, err)
	s2, err := p.Subscribe(EventAccountsChanged, func(m json.RawMessage) { second <- m })
	require.NoError(t, err)
	assert.Equal(t, 1, w.count("eth_subscribe"), "one stream per event")

	w.notify("0xsub-accountsChanged", []string{"0xabc"})
	w.notify("0xsub-unknown", []string{"0xdef"})

	for _, ch := range []chan json.RawMessage{first, second} {
		select {
		case m := <-ch:
			accounts, err := DecodeAccounts(m)
			require.NoError(t, err)
			assert.Equal(t, []string{"0xabc"}, accounts)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}

	s1.Unsubscribe()
	s1.Unsubscribe()
	assert.Zero(t, w.count("eth_unsubscribe"))
	s2.Unsubscribe()
	require.Eventually(t, func() bool { return w.count("eth_unsubscribe") == 1 }, time.Second, 5*time.Millisecond)
}

func TestWSHandlerMayCallProvider(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{"eth_chainId": {result: "0xa4b1"}})
	p := dial(t, w)

	got := make(chan string, 1)
	_, err := p.Subscribe(EventChainChanged, func(json.RawMessage) {
		id, err := p.ChainID(context.Background())
		if err != nil {
			got <- err.Error()
			return
		}
		got <- id
	})
	require.NoError(t, err)

	w.notify("0xsub-chainChanged", "0xa4b1")

	select {
	case id := <-got:
		assert.Equal(t, "0xa4b1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler deadlocked the connection")
	}
}

func TestWSDisconnect(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{"eth_requestAccounts": {hang: true}})
	p := dial(t, w)

	errc := make(chan error, 1)
	go func() {
		_, err := p.RequestAccounts(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return w.count("eth_requestAccounts") == 1 }, time.Second, 5*time.Millisecond)

	w.drop()

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, ErrDisconnected))
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not failed on disconnect")
	}

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
	assert.False(t, p.IsAvailable())

	_, err := p.GetAccounts(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	_, err = p.Subscribe(EventAccountsChanged, func(json.RawMessage) {})
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestWSContextCancel(t *testing.T) {
	w := newFakeWallet(t, map[string]reply{"eth_requestAccounts": {hang: true}})
	p := dial(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.RequestAccounts(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, p.IsAvailable(), "an abandoned call leaves the connection up")
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/nowhere")
	assert.Error(t, err)
}
