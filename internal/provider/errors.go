package provider

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 and EIP-3085 error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
	CodeInternal          = -32603
)

// ErrDisconnected is returned for calls made after the wallet connection
// has gone away.
var ErrDisconnected = &RPCError{Code: CodeDisconnected, Message: "wallet disconnected"}

// RPCError is a JSON-RPC error object returned by the wallet.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var _ rpc.Error = (*RPCError)(nil)

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wallet error %d", e.Code)
	}
	return e.Message
}

// ErrorCode implements rpc.Error.
func (e *RPCError) ErrorCode() int { return e.Code }

// Is matches on code so errors.Is(err, ErrDisconnected) works for any
// disconnect reported by the wallet.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Code extracts a JSON-RPC error code from err, or 0.
func Code(err error) int {
	var re rpc.Error
	if errors.As(err, &re) {
		return re.ErrorCode()
	}
	return 0
}

// IsUserRejected reports whether the user declined the request in the
// wallet.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if Code(err) == CodeUserRejected {
		return true
	}
	// Some wallets wrap the rejection in an internal error; the message is
	// the only signal left.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// IsUnrecognizedChain reports whether the wallet does not know the chain
// it was asked to switch to.
func IsUnrecognizedChain(err error) bool {
	if err == nil {
		return false
	}
	if Code(err) == CodeUnrecognizedChain {
		return true
	}
	// MetaMask mobile reports the missing chain inside -32603 data.
	var re *RPCError
	if errors.As(err, &re) && re.Code == CodeInternal {
		if m, ok := re.Data.(map[string]any); ok {
			if orig, ok := m["originalError"].(map[string]any); ok {
				if c, ok := orig["code"].(float64); ok && int(c) == CodeUnrecognizedChain {
					return true
				}
			}
		}
	}
	return false
}

var (
	walletPrefix = regexp.MustCompile(`^(?i)(metamask|frame|rabby)( tx signature| message signature)?:\s*`)
	trailers     = regexp.MustCompile(`(?s)\n\s*(Details|Version|Request Arguments|Docs|URL|Contract Call):.*$`)
	spaces       = regexp.MustCompile(`\s+`)
)

// CleanMessage strips wallet-specific prefixes and verbose trailers from a
// provider error message and collapses a sentence repeated back to back.
func CleanMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var re *RPCError
	if errors.As(err, &re) && re.Message != "" {
		msg = re.Message
	}
	msg = trailers.ReplaceAllString(msg, "")
	msg = walletPrefix.ReplaceAllString(strings.TrimSpace(msg), "")
	msg = spaces.ReplaceAllString(strings.TrimSpace(msg), " ")

	msg = dedupeSentences(msg)
	if msg == "" {
		return "unknown error"
	}
	return msg
}

func dedupeSentences(msg string) string {
	sentences := strings.Split(msg, ". ")
	out := make([]string, 0, len(sentences))
	prev := ""
	for _, s := range sentences {
		key := strings.TrimSuffix(strings.TrimSpace(s), ".")
		if key == prev {
			continue
		}
		prev = key
		out = append(out, s)
	}
	joined := strings.TrimSpace(strings.Join(out, ". "))
	if strings.HasSuffix(msg, ".") && joined != "" && !strings.HasSuffix(joined, ".") {
		joined += "."
	}
	return joined
}
