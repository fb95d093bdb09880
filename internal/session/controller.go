// Package session reconciles wallet events and user intents into one
// consistent session. The Controller is the only writer; observers read
// Snapshots.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/provider"
)

// Submission acknowledges a submitted approval. TxHash is empty when the
// approval was not an on-chain transaction.
type Submission struct {
	TxHash string
}

// Approver builds and submits exactly one approval for account.
type Approver interface {
	Approve(ctx context.Context, account string) (Submission, error)
}

// Options tune a Controller.
type Options struct {
	Required            network.Params
	ReloadOnChainChange bool
	PollInterval        time.Duration
	ConfirmTimeout      time.Duration
}

// DefaultOptions targets Arbitrum One and reloads on chain change.
func DefaultOptions() Options {
	return Options{
		Required:            network.Required(),
		ReloadOnChainChange: true,
		PollInterval:        2 * time.Second,
		ConfirmTimeout:      5 * time.Minute,
	}
}

// Controller owns the session state machine.
type Controller struct {
	provider provider.Provider
	approver Approver
	opts     Options
	log      log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	st       state
	subs     []provider.Subscription
	watchers map[chan Snapshot]struct{}
	poll     *poller
	closed   bool

	// chainGen counts applied chainChanged pushes; an eth_chainId reply
	// from an older generation is stale.
	chainGen uint64
}

// New creates a controller. p may be nil when no wallet is present, in
// which case the session starts as ProviderUnavailable.
func New(p provider.Provider, approver Approver, opts Options) *Controller {
	if opts.Required.ChainID == "" {
		opts.Required = network.Required()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 5 * time.Minute
	}
	initial := NotConnected
	if p == nil {
		initial = ProviderUnavailable
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		provider: p,
		approver: approver,
		opts:     opts,
		log:      log.New("sid", uuid.NewString()[:8]),
		ctx:      ctx,
		cancel:   cancel,
		st:       state{State: initial},
		watchers: make(map[chan Snapshot]struct{}),
	}
}

// Init detects the wallet, subscribes to its events and picks up accounts
// that are already authorised. It never prompts the user.
func (c *Controller) Init(ctx context.Context) {
	if c.provider == nil || !c.provider.IsAvailable() {
		c.update(func(st *state) {
			st.State = ProviderUnavailable
			st.Account = ""
		})
		c.log.Warn("No wallet provider detected")
		return
	}

	c.subscribe()
	c.refresh(ctx)
}

func (c *Controller) subscribe() {
	handlers := map[provider.Event]provider.Handler{
		provider.EventAccountsChanged: c.onAccountsChanged,
		provider.EventChainChanged:    c.onChainChanged,
	}
	for event, h := range handlers {
		sub, err := c.provider.Subscribe(event, h)
		if err != nil {
			c.log.Error("Wallet event subscription failed", "event", event, "err", err)
			continue
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			sub.Unsubscribe()
			return
		}
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
	}
}

// refresh re-reads authorised accounts and the chain without prompting.
func (c *Controller) refresh(ctx context.Context) {
	accounts, err := c.provider.GetAccounts(ctx)
	if err != nil {
		c.log.Warn("Reading authorised accounts failed", "err", err)
		return
	}
	if len(accounts) == 0 {
		c.update(func(st *state) {
			if st.State == Connected {
				st.State = NotConnected
				st.Account = ""
			}
		})
		return
	}
	c.update(func(st *state) {
		st.State = Connected
		st.Account = accounts[0]
	})
	c.queryChain(ctx)
}

func (c *Controller) queryChain(ctx context.Context) {
	c.mu.Lock()
	gen := c.chainGen
	c.mu.Unlock()

	id, err := c.provider.ChainID(ctx)
	if err != nil {
		c.log.Warn("Reading chain id failed", "err", err)
		return
	}
	id = network.NormalizeChainID(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainGen != gen {
		c.log.Debug("Dropping stale chain id", "chain", id, "current", c.st.ChainID)
		return
	}
	c.st.ChainID = id
	c.publishLocked()
	c.log.Debug("Chain queried", "chain", id)
}

// Connect prompts the wallet for accounts. A second call while a request
// is outstanding is a no-op.
func (c *Controller) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.provider == nil || c.st.State == ProviderUnavailable || c.st.State == Connecting {
		c.mu.Unlock()
		return
	}
	c.st.State = Connecting
	c.st.Account = ""
	c.st.Result = nil
	c.publishLocked()
	c.mu.Unlock()

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		msg := provider.CleanMessage(err)
		c.log.Info("Wallet connection failed", "err", err, "rejected", provider.IsUserRejected(err))
		c.update(func(st *state) {
			// An accountsChanged push may have settled the state already.
			if st.State == Connecting {
				st.State = ConnectionFailed
				st.Account = ""
			}
			st.Result = &Result{Kind: ResultError, Message: msg}
		})
		return
	}

	if len(accounts) == 0 {
		c.update(func(st *state) {
			if st.State == Connecting {
				st.State = NotConnected
			}
		})
		return
	}

	c.update(func(st *state) {
		st.State = Connected
		st.Account = accounts[0]
		st.Result = nil
	})
	c.log.Info("Wallet connected", "account", accounts[0])
	c.queryChain(ctx)
}

// SwitchChain asks the wallet to move to the required network, adding the
// network first if the wallet does not know it. The new chain id arrives
// through the chainChanged event.
func (c *Controller) SwitchChain(ctx context.Context) {
	required := c.opts.Required

	c.mu.Lock()
	snap := c.st.snapshot(required.ChainID)
	if c.closed || !snap.CanSwitch() {
		c.mu.Unlock()
		c.log.Debug("Switch chain ignored", "state", snap.State, "chain", snap.ChainID, "pending", snap.Pending)
		return
	}
	c.st.Pending = true
	c.publishLocked()
	c.mu.Unlock()
	defer c.update(func(st *state) { st.Pending = false })

	err := c.provider.SwitchChain(ctx, required.ChainID)
	switch {
	case err == nil:
		c.log.Info("Network switch requested", "chain", required.ChainID)
	case provider.IsUnrecognizedChain(err):
		c.log.Info("Wallet does not know the network, adding it", "chain", required.ChainID)
		if addErr := c.provider.AddChain(ctx, required); addErr != nil {
			c.log.Warn("Adding network failed", "err", addErr)
			c.setResult(ResultError, MsgAddNetworkFailed)
		}
	case provider.IsUserRejected(err):
		c.setResult(ResultError, MsgSwitchRejected)
	default:
		c.log.Warn("Network switch failed", "err", err)
		c.setResult(ResultError, MsgSwitchFailed+provider.CleanMessage(err))
	}
}

// Approve submits the builder-fee approval. It refuses unless the wallet
// is connected on the required chain with nothing else in flight; a
// refusal submits nothing and records MsgNotReady. The in-flight call, if
// any, still settles with its own outcome.
func (c *Controller) Approve(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.st.snapshot(c.opts.Required.ChainID)
	if !snap.CanApprove() {
		c.log.Debug("Approve refused", "state", snap.State, "chain", snap.ChainID, "pending", snap.Pending)
		c.st.Result = &Result{Kind: ResultError, Message: MsgNotReady}
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.st.Pending = true
	c.st.Result = &Result{Kind: ResultInfo, Message: MsgSubmitting}
	c.st.TxHash = ""
	c.stopPollerLocked()
	c.publishLocked()
	account := snap.Account
	c.mu.Unlock()

	var (
		res  Result
		hash string
	)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Approval panicked", "panic", r)
			res = Result{Kind: ResultError, Message: fmt.Sprintf("%s%v", MsgApprovalFailed, r)}
			hash = ""
		}
		c.settleApproval(res, hash)
	}()

	c.log.Info("Submitting approval", "account", account, "builder", network.BuilderAddress, "maxFeeRate", network.MaxFeeRate)
	sub, err := c.approver.Approve(ctx, account)
	if err != nil {
		res = classifySubmission(err)
		c.log.Warn("Approval failed", "err", err, "rejected", provider.IsUserRejected(err))
		return
	}
	res = Result{Kind: ResultSuccess, Message: MsgApproved}
	hash = sub.TxHash
	c.log.Info("Approval submitted", "tx", hash)
}

// settleApproval records the outcome of a submission. A wallet that went
// away mid-flight keeps MsgDisconnected, and receipts are only polled while
// the session is still connected.
func (c *Controller) settleApproval(res Result, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Pending = false
	c.st.TxHash = hash
	if c.st.State != ProviderUnavailable {
		c.st.Result = &res
	}
	if hash != "" && !c.closed && c.st.State == Connected {
		c.startPollerLocked(hash)
	}
	c.publishLocked()
}

func classifySubmission(err error) Result {
	if provider.IsUserRejected(err) {
		return Result{Kind: ResultError, Message: MsgTxRejected}
	}
	return Result{Kind: ResultError, Message: MsgApprovalFailed + provider.CleanMessage(err)}
}

func (c *Controller) onAccountsChanged(payload json.RawMessage) {
	accounts, err := provider.DecodeAccounts(payload)
	if err != nil {
		c.log.Warn("Malformed accountsChanged payload", "err", err)
		return
	}
	c.ApplyAccounts(accounts)
}

// ApplyAccounts applies an accountsChanged push. The first account is
// authoritative; an empty list disconnects.
func (c *Controller) ApplyAccounts(accounts []string) {
	var needChain bool
	c.update(func(st *state) {
		if st.State == ProviderUnavailable {
			return
		}
		if len(accounts) == 0 {
			st.State = NotConnected
			st.Account = ""
			st.Result = nil
			return
		}
		st.State = Connected
		st.Account = accounts[0]
		needChain = st.ChainID == ""
	})
	c.log.Info("Accounts changed", "count", len(accounts))
	if needChain {
		c.queryChain(c.ctx)
	}
}

func (c *Controller) onChainChanged(payload json.RawMessage) {
	id, err := provider.DecodeChainID(payload)
	if err != nil {
		c.log.Warn("Malformed chainChanged payload", "err", err)
		return
	}
	c.ApplyChain(id)
}

// ApplyChain records a chainChanged push. With ReloadOnChainChange the
// whole session is re-derived from the wallet, as a page reload would.
func (c *Controller) ApplyChain(chainID string) {
	chainID = network.NormalizeChainID(chainID)
	c.mu.Lock()
	c.chainGen++
	c.st.ChainID = chainID
	c.publishLocked()
	c.mu.Unlock()
	c.log.Info("Chain changed", "chain", chainID, "required", network.SameChain(chainID, c.opts.Required.ChainID))

	if c.opts.ReloadOnChainChange {
		c.reload()
	}
}

func (c *Controller) reload() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopPollerLocked()
	c.st.Result = nil
	c.st.TxHash = ""
	c.publishLocked()
	c.mu.Unlock()

	c.refresh(c.ctx)
}

// Disconnected marks the wallet as gone for the rest of the session.
func (c *Controller) Disconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopPollerLocked()
	c.st.State = ProviderUnavailable
	c.st.Account = ""
	c.st.Result = &Result{Kind: ResultError, Message: MsgDisconnected}
	c.publishLocked()
	c.log.Warn("Wallet provider went away")
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Watch returns a channel carrying the latest snapshot after every change.
// Slow readers only ever see the newest snapshot. The channel starts with
// the current one and is closed by the returned cancel func or Close.
func (c *Controller) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.watchers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
	}
}

// Close unsubscribes from the wallet and stops background work.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.stopPollerLocked()
	for ch := range c.watchers {
		close(ch)
	}
	c.watchers = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) setResult(kind ResultKind, msg string) {
	c.update(func(st *state) { st.Result = &Result{Kind: kind, Message: msg} })
}

func (c *Controller) update(fn func(*state)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.st)
	c.publishLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := c.st.snapshot(c.opts.Required.ChainID)
	snap.Confirming = c.poll != nil
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.watchers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
