// Package clients contains the ledger RPC abstraction and its EVM
// implementation. Everything above this package speaks in terms of the
// Ledger interface; only this package touches go-ethereum.
package clients

import (
	"context"
	"math/big"
)

// Transfer is one observed inbound transfer.
type Transfer struct {
	TxHash   string
	From     string
	To       string
	Amount   *big.Int
	Contract string // empty for a native transfer
	Position uint64 // ledger position (block number) of the transfer
}

// Native reports whether the transfer moved the network's base currency.
func (t Transfer) Native() bool {
	return t.Contract == ""
}

// Ledger is the read-only RPC surface the routing and settlement layers
// need from one network.
type Ledger interface {
	// NativeBalance returns the base-currency balance in minor units.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)

	// TokenBalances returns minor-unit balances for the given token
	// contracts, keyed by contract address as passed in.
	TokenBalances(ctx context.Context, address string, contracts []string) (map[string]*big.Int, error)

	// CurrentPosition returns the ledger head position.
	CurrentPosition(ctx context.Context) (uint64, error)

	// TransfersSince lists inbound transfers to the address observed after
	// the given position. An empty contract restricts the scan to native
	// transfers; otherwise to that token's transfer events.
	TransfersSince(ctx context.Context, position uint64, toAddress, contract string) ([]Transfer, error)

	Close()
}
