package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gorilla/websocket"

	"github.com/degenape/builderfee/internal/network"
)

const (
	writeTimeout     = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	subscribeTimeout = 10 * time.Second
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// message is any frame the wallet sends: a response (ID set) or an
// eth_subscription notification (Method set).
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// WSProvider is a Provider backed by a wallet's JSON-RPC websocket
// endpoint (Frame, a browser-extension bridge, or anything that speaks
// EIP-1193 over eth_subscribe).
type WSProvider struct {
	url  string
	conn *websocket.Conn
	log  log.Logger

	writeMu sync.Mutex // serialises all conn writes (requests, pings)
	subMu   sync.Mutex // serialises Subscribe/Unsubscribe round trips

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan *message
	handlers map[Event]map[uint64]Handler
	subIDs   map[Event]string
	events   map[string]Event
	closed   bool

	// Notifications are handed to a separate goroutine so handlers may
	// issue provider calls without starving the read loop.
	queueMu sync.Mutex
	queue   []notification
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the wallet at url.
func Dial(ctx context.Context, url string) (*WSProvider, error) {
	header := http.Header{}
	header.Set("Origin", "builderfee")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial wallet %s: %w", url, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p := &WSProvider{
		url:      url,
		conn:     conn,
		log:      log.New("component", "provider", "url", url),
		pending:  make(map[uint64]chan *message),
		handlers: make(map[Event]map[uint64]Handler),
		subIDs:   make(map[Event]string),
		events:   make(map[string]Event),
		wake:     make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go p.readLoop()
	go p.pingLoop(loopCtx, conn)
	go p.dispatchLoop(loopCtx)
	return p, nil
}

// IsAvailable reports whether the websocket to the wallet is still up.
func (p *WSProvider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Done is closed once the connection has gone away.
func (p *WSProvider) Done() <-chan struct{} {
	return p.done
}

// Close tears down the connection. Outstanding calls fail with
// ErrDisconnected.
func (p *WSProvider) Close() error {
	p.cancel()
	p.writeMu.Lock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.writeMu.Unlock()
	err := p.conn.Close()
	<-p.done
	return err
}

func (p *WSProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, "eth_requestAccounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *WSProvider) GetAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, "eth_accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *WSProvider) ChainID(ctx context.Context) (string, error) {
	var id string
	if err := p.call(ctx, "eth_chainId", nil, &id); err != nil {
		return "", err
	}
	return network.NormalizeChainID(id), nil
}

func (p *WSProvider) SwitchChain(ctx context.Context, chainID string) error {
	params := []any{map[string]string{"chainId": chainID}}
	return p.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (p *WSProvider) AddChain(ctx context.Context, params network.Params) error {
	return p.call(ctx, "wallet_addEthereumChain", []any{params}, nil)
}

func (p *WSProvider) SendTransaction(ctx context.Context, tx Tx) (string, error) {
	var hash string
	if err := p.call(ctx, "eth_sendTransaction", []any{tx}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// SignTypedData asks the wallet for an EIP-712 signature. The typed data is
// sent as a JSON string, which is what eth_signTypedData_v4 expects.
func (p *WSProvider) SignTypedData(ctx context.Context, account string, data apitypes.TypedData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode typed data: %w", err)
	}
	var sig string
	if err := p.call(ctx, "eth_signTypedData_v4", []any{account, string(raw)}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

func (p *WSProvider) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var r *Receipt
	if err := p.call(ctx, "eth_getTransactionReceipt", []any{hash}, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Subscribe registers handler for event. The first handler for an event
// opens an eth_subscribe stream; the last Unsubscribe closes it.
func (p *WSProvider) Subscribe(event Event, handler Handler) (Subscription, error) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDisconnected
	}
	p.nextID++
	hid := p.nextID
	hs := p.handlers[event]
	if hs == nil {
		hs = make(map[uint64]Handler)
		p.handlers[event] = hs
	}
	hs[hid] = handler
	needStream := p.subIDs[event] == ""
	p.mu.Unlock()

	if needStream {
		ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
		defer cancel()
		var subID string
		if err := p.call(ctx, "eth_subscribe", []any{string(event)}, &subID); err != nil {
			p.mu.Lock()
			delete(hs, hid)
			p.mu.Unlock()
			return nil, fmt.Errorf("subscribe %s: %w", event, err)
		}
		p.mu.Lock()
		p.subIDs[event] = subID
		p.events[subID] = event
		p.mu.Unlock()
		p.log.Debug("Subscribed to wallet events", "event", event, "sub", subID)
	}

	return &wsSubscription{p: p, event: event, id: hid}, nil
}

type wsSubscription struct {
	p     *WSProvider
	event Event
	id    uint64
	once  sync.Once
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() { s.p.unsubscribe(s.event, s.id) })
}

func (p *WSProvider) unsubscribe(event Event, hid uint64) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	p.mu.Lock()
	delete(p.handlers[event], hid)
	subID := p.subIDs[event]
	last := len(p.handlers[event]) == 0 && subID != ""
	if last {
		delete(p.subIDs, event)
		delete(p.events, subID)
	}
	closed := p.closed
	p.mu.Unlock()

	if !last || closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	if err := p.call(ctx, "eth_unsubscribe", []any{subID}, nil); err != nil {
		p.log.Debug("Unsubscribe failed", "event", event, "err", err)
	}
}

func (p *WSProvider) call(ctx context.Context, method string, params any, out any) error {
	if params == nil {
		params = []any{}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrDisconnected
	}
	p.nextID++
	id := p.nextID
	ch := make(chan *message, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	p.log.Trace("Wallet request", "method", method, "id", id)

	p.writeMu.Lock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := p.conn.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	p.writeMu.Unlock()
	if err != nil {
		p.forget(id)
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		p.forget(id)
		return ctx.Err()
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
}

func (p *WSProvider) forget(id uint64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *WSProvider) readLoop() {
	conn := p.conn
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.shutdown(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.log.Debug("Dropping malformed wallet frame", "err", err)
			continue
		}

		switch {
		case msg.ID != nil:
			p.mu.Lock()
			ch, ok := p.pending[*msg.ID]
			delete(p.pending, *msg.ID)
			p.mu.Unlock()
			if ok {
				ch <- &msg
			}
		case msg.Method == "eth_subscription":
			var n notification
			if err := json.Unmarshal(msg.Params, &n); err != nil {
				continue
			}
			p.enqueue(n)
		}
	}
}

func (p *WSProvider) enqueue(n notification) {
	p.queueMu.Lock()
	p.queue = append(p.queue, n)
	p.queueMu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop delivers notifications in arrival order.
func (p *WSProvider) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}

		p.queueMu.Lock()
		batch := p.queue
		p.queue = nil
		p.queueMu.Unlock()

		for _, n := range batch {
			p.mu.Lock()
			event, ok := p.events[n.Subscription]
			handlers := make([]Handler, 0, len(p.handlers[event]))
			if ok {
				for _, h := range p.handlers[event] {
					handlers = append(handlers, h)
				}
			}
			p.mu.Unlock()

			for _, h := range handlers {
				h(n.Result)
			}
		}
	}
}

// pingLoop keeps the connection alive. It exits when the context is
// cancelled or a write fails.
func (p *WSProvider) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (p *WSProvider) shutdown(cause error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.pending
	p.pending = make(map[uint64]chan *message)
	p.mu.Unlock()

	for _, ch := range pending {
		ch <- &message{Error: ErrDisconnected}
	}
	p.cancel()
	p.conn.Close()
	p.log.Info("Wallet connection closed", "reason", cause)
	close(p.done)
}
