// Package network holds the fixed network and counterparty parameters the
// approval flow targets. Everything here is a build-time constant.
package network

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Builder approval parameters.
const (
	BuilderAddress = "0x13e46cCd194ca86212236543d2e7376b00bafa42"
	MaxFeeRate     = "0.1%"
)

// NativeCurrency describes the gas token of a chain as wallets expect it in
// wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Params is the wallet_addEthereumChain parameter object.
type Params struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// ArbitrumOne is the network approvals must be submitted on.
var ArbitrumOne = Params{
	ChainID:   "0xa4b1",
	ChainName: "Arbitrum One",
	NativeCurrency: NativeCurrency{
		Name:     "ETH",
		Symbol:   "ETH",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://arb1.arbitrum.io/rpc"},
	BlockExplorerURLs: []string{"https://arbiscan.io/"},
}

// Required returns the parameters of the network approvals require.
func Required() Params {
	p := ArbitrumOne
	p.RPCURLs = append([]string(nil), ArbitrumOne.RPCURLs...)
	p.BlockExplorerURLs = append([]string(nil), ArbitrumOne.BlockExplorerURLs...)
	return p
}

// Builder returns the counterparty address in checksummed form.
func Builder() common.Address {
	return common.HexToAddress(BuilderAddress)
}

// NormalizeChainID canonicalises a chain identifier to lower-case 0x hex.
// Wallets report chain ids as hex quantities but some send decimal strings
// or upper-case digits; both compare equal after normalisation. Values that
// cannot be parsed are returned lower-cased and trimmed.
func NormalizeChainID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if n, err := hexutil.DecodeUint64(strings.ToLower(id)); err == nil {
		return hexutil.EncodeUint64(n)
	}
	if n, ok := new(big.Int).SetString(id, 10); ok && n.IsUint64() {
		return hexutil.EncodeUint64(n.Uint64())
	}
	return strings.ToLower(id)
}

// SameChain reports whether two chain identifiers name the same chain.
func SameChain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeChainID(a) == NormalizeChainID(b)
}

// ChainIDBig returns the numeric chain id, or nil if it cannot be parsed.
func ChainIDBig(id string) *big.Int {
	n, err := hexutil.DecodeUint64(NormalizeChainID(id))
	if err != nil {
		return nil
	}
	return new(big.Int).SetUint64(n)
}

// ShortAddress renders an address as 0xABCD...1234.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
