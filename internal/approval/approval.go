// Package approval builds and submits the builder-fee approval for the
// session controller. Exchange signs an action for the exchange API;
// Transaction sends a contract call through the wallet.
package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/degenape/builderfee/internal/config"
	"github.com/degenape/builderfee/internal/exchange"
	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/provider"
	"github.com/degenape/builderfee/internal/session"
)

// New returns the approver selected by cfg.Mode.
func New(cfg config.ApprovalConfig, p provider.Provider) (session.Approver, error) {
	if p == nil {
		return nil, fmt.Errorf("approval: no wallet provider")
	}
	switch cfg.Mode {
	case config.ModeExchange, "":
		return NewExchange(exchange.NewHTTPTransport(cfg.ExchangeURL), p, cfg.ExchangeChain), nil
	case config.ModeTransaction:
		return NewTransaction(p)
	default:
		return nil, fmt.Errorf("approval: unknown mode %q", cfg.Mode)
	}
}

// Exchange approves the builder by signing an approveBuilderFee action
// with the wallet and posting it to the exchange.
type Exchange struct {
	transport exchange.Transport
	signer    exchange.Signer
	opts      []exchange.Option
	log       log.Logger
}

// NewExchange returns an Exchange approver. chain is "Mainnet" or
// "Testnet"; empty means Mainnet.
func NewExchange(transport exchange.Transport, signer exchange.Signer, chain string, opts ...exchange.Option) *Exchange {
	if chain != "" {
		opts = append([]exchange.Option{exchange.WithChain(chain)}, opts...)
	}
	return &Exchange{
		transport: transport,
		signer:    signer,
		opts:      opts,
		log:       log.New("component", "approval", "mode", config.ModeExchange),
	}
}

func (e *Exchange) Approve(ctx context.Context, account string) (session.Submission, error) {
	client := exchange.NewClient(e.transport, e.signer, account, e.opts...)
	if _, err := client.ApproveBuilderFee(ctx, network.BuilderAddress, network.MaxFeeRate); err != nil {
		return session.Submission{}, err
	}
	e.log.Debug("Exchange accepted approval", "account", account)
	return session.Submission{}, nil
}

// builderABI is the on-chain entry point used in transaction mode.
const builderABI = `[{
	"type": "function",
	"name": "approveBuilderFee",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "builder", "type": "address"},
		{"name": "maxFeeRate", "type": "string"}
	],
	"outputs": []
}]`

// Transaction approves the builder with an eth_sendTransaction to the
// builder contract.
type Transaction struct {
	sender interface {
		SendTransaction(ctx context.Context, tx provider.Tx) (string, error)
	}
	abi abi.ABI
	log log.Logger
}

// NewTransaction returns a Transaction approver sending through p.
func NewTransaction(p provider.Provider) (*Transaction, error) {
	parsed, err := abi.JSON(strings.NewReader(builderABI))
	if err != nil {
		return nil, fmt.Errorf("approval: parse abi: %w", err)
	}
	return &Transaction{
		sender: p,
		abi:    parsed,
		log:    log.New("component", "approval", "mode", config.ModeTransaction),
	}, nil
}

// Calldata encodes approveBuilderFee(builder, maxFeeRate).
func (t *Transaction) Calldata() ([]byte, error) {
	return t.abi.Pack("approveBuilderFee", network.Builder(), network.MaxFeeRate)
}

func (t *Transaction) Approve(ctx context.Context, account string) (session.Submission, error) {
	if !common.IsHexAddress(account) {
		return session.Submission{}, fmt.Errorf("invalid account %q", account)
	}
	data, err := t.Calldata()
	if err != nil {
		return session.Submission{}, fmt.Errorf("encode approval: %w", err)
	}
	hash, err := t.sender.SendTransaction(ctx, provider.Tx{
		From: account,
		To:   network.Builder().Hex(),
		Data: data,
	})
	if err != nil {
		return session.Submission{}, err
	}
	t.log.Info("Approval transaction sent", "account", account, "tx", hash)
	return session.Submission{TxHash: hash}, nil
}
