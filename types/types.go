package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TokenConfig describes an ERC-20 token tracked on a network.
type TokenConfig struct {
	Symbol   string `json:"symbol" validate:"required"`
	Contract string `json:"contract" validate:"required,len=42,startswith=0x"`
	Decimals int32  `json:"decimals" validate:"gte=0,lte=36"`
}

// NetworkConfig contains configuration for a single ledger network client.
type NetworkConfig struct {
	Network Network       `json:"network" validate:"required"`
	RPCUrl  string        `json:"rpcUrl" validate:"required,url"`
	Tokens  []TokenConfig `json:"tokens,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Config contains global configuration for the library.
type Config struct {
	// DefaultTimeout bounds balance aggregation and per-RPC calls.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty"`

	// SessionTimeout bounds an idle contactless session before it is failed.
	SessionTimeout time.Duration `json:"sessionTimeout,omitempty"`

	// PollInterval is the settlement watcher cycle length.
	PollInterval time.Duration `json:"pollInterval,omitempty"`

	Networks []NetworkConfig `json:"networks,omitempty"`

	LogLevel      string `json:"logLevel,omitempty"`
	EnableMetrics bool   `json:"enableMetrics,omitempty"`
}

// AssetBalance is one asset position on one network, produced fresh per
// payment attempt and never cached across sessions.
type AssetBalance struct {
	Network Network `json:"network"`
	ChainID uint64  `json:"chainId"`
	Symbol  string  `json:"symbol"`

	// ContractAddress is empty for the network's native asset.
	ContractAddress string `json:"contractAddress,omitempty"`

	Decimals int32           `json:"decimals"`
	Balance  decimal.Decimal `json:"balance"`
}

// Native reports whether the balance is in the network's base currency.
func (b AssetBalance) Native() bool {
	return b.ContractAddress == ""
}

// PaymentPlan fixes the outcome of a routing decision. It is immutable once
// constructed and is consumed by both the request encoder and the settlement
// watcher.
type PaymentPlan struct {
	Asset       AssetBalance
	Amount      decimal.Decimal
	Destination string
	MinorUnits  *big.Int
}

// SupportedItem describes one configured network in Supported() output.
type SupportedItem struct {
	Network  string `json:"network"`
	ChainID  uint64 `json:"chainId"`
	Testnet  bool   `json:"testnet,omitempty"`
	Rollup   bool   `json:"rollup"`
	Native   string `json:"native"`
	Tokens   int    `json:"tokens"`
	Endpoint string `json:"endpoint,omitempty"`
}

// SupportedResponse lists the networks a FreePay instance can route over.
type SupportedResponse struct {
	Networks []SupportedItem `json:"networks"`
}

// Error is the library error type, carrying a stable machine-readable code.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf builds an *Error with a formatted message.
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes.
const (
	ErrProtocolViolation  = "PROTOCOL_VIOLATION"
	ErrSessionTimeout     = "SESSION_TIMEOUT"
	ErrRelayFailed        = "RELAY_FAILED"
	ErrInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrInvalidAccount     = "INVALID_ACCOUNT"
	ErrConfigError        = "CONFIG_ERROR"
	ErrNetworkError       = "NETWORK_ERROR"
)

// Outward user-facing failure messages. Internal error distinctions collapse
// to these three.
const (
	MsgReadFailed   = "could not read payment device"
	MsgInsufficient = "insufficient balance for this amount"
	MsgNotConfirmed = "payment not confirmed in time"
)

// UserMessage maps any library error to the message shown to the user. A
// settlement timeout is not an error (it is a terminal watch outcome) and
// maps to MsgNotConfirmed at the call site.
func UserMessage(err error) string {
	if e, ok := err.(*Error); ok && e.Code == ErrInsufficientFunds {
		return MsgInsufficient
	}
	return MsgReadFailed
}

// Validate checks a NetworkConfig beyond struct tags.
func (c *NetworkConfig) Validate() error {
	if !c.Network.IsSupported() {
		return Errorf(ErrUnsupportedNetwork, "unsupported network: %s", c.Network)
	}
	if c.RPCUrl == "" {
		return Errorf(ErrConfigError, "rpcUrl is required for network %s", c.Network)
	}
	return nil
}
