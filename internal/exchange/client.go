// Package exchange submits wallet-signed actions to the perpetuals exchange
// API. Only the builder-fee approval action is implemented.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/degenape/builderfee/internal/network"
)

const (
	Mainnet = "Mainnet"
	Testnet = "Testnet"

	approveBuilderFeeType = "HyperliquidTransaction:ApproveBuilderFee"
	zeroAddress           = "0x0000000000000000000000000000000000000000"
)

// Signer produces EIP-712 signatures on behalf of account. The wallet
// provider satisfies it.
type Signer interface {
	SignTypedData(ctx context.Context, account string, data apitypes.TypedData) (string, error)
}

// Transport delivers a signed request to the exchange.
type Transport interface {
	Exchange(ctx context.Context, req *Request) (*Response, error)
}

// Signature is the r/s/v split the exchange expects.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// ApproveBuilderFeeAction authorises a builder to charge fees up to
// MaxFeeRate on the account's orders.
type ApproveBuilderFeeAction struct {
	Type             string `json:"type"`
	HyperliquidChain string `json:"hyperliquidChain"`
	SignatureChainID string `json:"signatureChainId"`
	MaxFeeRate       string `json:"maxFeeRate"`
	Builder          string `json:"builder"`
	Nonce            uint64 `json:"nonce"`
}

// Request is the body of POST /exchange.
type Request struct {
	Action    any       `json:"action"`
	Nonce     uint64    `json:"nonce"`
	Signature Signature `json:"signature"`
}

// Error is an exchange-side rejection. Message is the exchange's text.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Client signs and submits exchange actions for one account.
type Client struct {
	transport Transport
	signer    Signer
	account   string
	chain     string
	sigChain  string
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithChain selects Mainnet or Testnet.
func WithChain(chain string) Option {
	return func(c *Client) { c.chain = chain }
}

// WithClock overrides the nonce source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client that signs with signer as account.
func NewClient(transport Transport, signer Signer, account string, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		signer:    signer,
		account:   account,
		chain:     Mainnet,
		sigChain:  network.ArbitrumOne.ChainID,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ApproveBuilderFee signs and submits an approveBuilderFee action.
func (c *Client) ApproveBuilderFee(ctx context.Context, builder, maxFeeRate string) (*Response, error) {
	if !common.IsHexAddress(builder) {
		return nil, fmt.Errorf("invalid builder address %q", builder)
	}
	if !strings.HasSuffix(maxFeeRate, "%") {
		return nil, fmt.Errorf("max fee rate %q must be a percentage", maxFeeRate)
	}

	nonce := uint64(c.now().UnixMilli())
	action := ApproveBuilderFeeAction{
		Type:             "approveBuilderFee",
		HyperliquidChain: c.chain,
		SignatureChainID: c.sigChain,
		MaxFeeRate:       maxFeeRate,
		Builder:          strings.ToLower(builder),
		Nonce:            nonce,
	}

	td, err := approveBuilderFeeTypedData(action)
	if err != nil {
		return nil, err
	}
	sigHex, err := c.signer.SignTypedData(ctx, c.account, td)
	if err != nil {
		return nil, fmt.Errorf("sign approval: %w", err)
	}
	sig, err := splitSignature(sigHex)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Exchange(ctx, &Request{Action: action, Nonce: nonce, Signature: sig})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func approveBuilderFeeTypedData(a ApproveBuilderFeeAction) (apitypes.TypedData, error) {
	chainID := network.ChainIDBig(a.SignatureChainID)
	if chainID == nil {
		return apitypes.TypedData{}, fmt.Errorf("invalid signature chain id %q", a.SignatureChainID)
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			approveBuilderFeeType: {
				{Name: "hyperliquidChain", Type: "string"},
				{Name: "maxFeeRate", Type: "string"},
				{Name: "builder", Type: "address"},
				{Name: "nonce", Type: "uint64"},
			},
		},
		PrimaryType: approveBuilderFeeType,
		Domain: apitypes.TypedDataDomain{
			Name:              "HyperliquidSignTransaction",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: zeroAddress,
		},
		Message: apitypes.TypedDataMessage{
			"hyperliquidChain": a.HyperliquidChain,
			"maxFeeRate":       a.MaxFeeRate,
			"builder":          a.Builder,
			"nonce":            a.Nonce,
		},
	}, nil
}

var errBadSignature = errors.New("wallet returned a malformed signature")

func splitSignature(sigHex string) (Signature, error) {
	raw, err := hexutil.Decode(sigHex)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", errBadSignature, err)
	}
	if len(raw) != 65 {
		return Signature{}, fmt.Errorf("%w: %d bytes", errBadSignature, len(raw))
	}
	v := int(raw[64])
	if v < 27 {
		v += 27
	}
	return Signature{
		R: hexutil.Encode(raw[:32]),
		S: hexutil.Encode(raw[32:64]),
		V: v,
	}, nil
}
