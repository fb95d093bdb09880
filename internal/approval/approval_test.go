package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenape/builderfee/internal/config"
	"github.com/degenape/builderfee/internal/exchange"
	"github.com/degenape/builderfee/internal/network"
	"github.com/degenape/builderfee/internal/provider"
	"github.com/degenape/builderfee/internal/provider/providertest"
)

const account = "0xABCDef0000000000000000000000000000001234"

type transport struct {
	reqs []*exchange.Request
	resp *exchange.Response
}

func (t *transport) Exchange(_ context.Context, req *exchange.Request) (*exchange.Response, error) {
	t.reqs = append(t.reqs, req)
	return t.resp, nil
}

func TestNewSelectsMode(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	cfg := config.Default().Approval

	a, err := New(cfg, wallet)
	require.NoError(t, err)
	assert.IsType(t, &Exchange{}, a)

	cfg.Mode = config.ModeTransaction
	a, err = New(cfg, wallet)
	require.NoError(t, err)
	assert.IsType(t, &Transaction{}, a)

	cfg.Mode = "carrier-pigeon"
	_, err = New(cfg, wallet)
	assert.Error(t, err)

	_, err = New(config.Default().Approval, nil)
	assert.Error(t, err)
}

func TestExchangeApprove(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	tr := &transport{resp: &exchange.Response{Status: "ok"}}
	a := NewExchange(tr, wallet, exchange.Testnet)

	sub, err := a.Approve(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, sub.TxHash, "exchange approvals are not on-chain")

	require.Len(t, tr.reqs, 1)
	action, ok := tr.reqs[0].Action.(exchange.ApproveBuilderFeeAction)
	require.True(t, ok)
	assert.Equal(t, exchange.Testnet, action.HyperliquidChain)
	assert.Equal(t, network.MaxFeeRate, action.MaxFeeRate)
	assert.Equal(t, 1, wallet.Calls("eth_signTypedData_v4"))
}

func TestExchangeApproveRejected(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	wallet.SignErr = &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected the request."}
	tr := &transport{resp: &exchange.Response{Status: "ok"}}

	_, err := NewExchange(tr, wallet, "").Approve(context.Background(), account)
	require.Error(t, err)
	assert.True(t, provider.IsUserRejected(err))
	assert.Empty(t, tr.reqs, "nothing is posted without a signature")
}

func TestExchangeApproveServerError(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	tr := &transport{resp: &exchange.Response{
		Status:   "err",
		Response: json.RawMessage(`"Must deposit before performing actions."`),
	}}

	_, err := NewExchange(tr, wallet, "").Approve(context.Background(), account)
	var xerr *exchange.Error
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, "Must deposit before performing actions.", provider.CleanMessage(err))
}

func TestTransactionCalldata(t *testing.T) {
	a, err := NewTransaction(providertest.New(network.ArbitrumOne.ChainID, account))
	require.NoError(t, err)

	data, err := a.Calldata()
	require.NoError(t, err)

	selector := crypto.Keccak256([]byte("approveBuilderFee(address,string)"))[:4]
	assert.Equal(t, selector, data[:4])

	args, err := a.abi.Methods["approveBuilderFee"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, common.HexToAddress(network.BuilderAddress), args[0])
	assert.Equal(t, "0.1%", args[1])
}

func TestTransactionApprove(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	a, err := NewTransaction(wallet)
	require.NoError(t, err)

	sub, err := a.Approve(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, wallet.TxHash, sub.TxHash)

	sent := wallet.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, account, sent[0].From)
	assert.Equal(t, network.Builder().Hex(), sent[0].To)
	want, _ := a.Calldata()
	assert.Equal(t, want, []byte(sent[0].Data))
}

func TestTransactionApproveErrors(t *testing.T) {
	wallet := providertest.New(network.ArbitrumOne.ChainID, account)
	wallet.SendErr = &provider.RPCError{Code: provider.CodeUserRejected, Message: "User denied transaction signature."}
	a, err := NewTransaction(wallet)
	require.NoError(t, err)

	_, err = a.Approve(context.Background(), account)
	assert.True(t, provider.IsUserRejected(err))

	_, err = a.Approve(context.Background(), "not-an-address")
	assert.Error(t, err)
	assert.Equal(t, 1, wallet.Calls("eth_sendTransaction"))
}
