// Package balance aggregates asset balances across configured networks.
package balance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freepay/freepay/clients"
	"github.com/freepay/freepay/logger"
	"github.com/freepay/freepay/metrics"
	"github.com/freepay/freepay/types"
)

// DefaultTimeout bounds one aggregation pass. Networks that have not
// answered by then contribute nothing.
const DefaultTimeout = 10 * time.Second

// NetworkSource pairs a network's client with the tokens tracked on it.
type NetworkSource struct {
	Config types.NetworkConfig
	Ledger clients.Ledger
}

// nativeDecimals overrides the default native-coin precision per network.
// Every supported chain is 18-decimal today, so the table is empty; a
// future network with a different precision slots in here.
var nativeDecimals = map[types.Network]int32{}

const defaultNativeDecimals = 18

// NativeSymbol returns the base-currency symbol for a network.
func NativeSymbol(n types.Network) string {
	if n == types.NetworkPolygon {
		return "POL"
	}
	return "ETH"
}

// Aggregator fetches balances concurrently across networks. Results are
// produced fresh on every call; balances are never cached because they can
// change between taps.
type Aggregator struct {
	sources []NetworkSource
	timeout time.Duration
	log     logger.Logger
	rec     metrics.Recorder
}

// NewAggregator creates an aggregator over the given sources. A zero
// timeout selects DefaultTimeout.
func NewAggregator(sources []NetworkSource, timeout time.Duration, log logger.Logger, rec metrics.Recorder) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Aggregator{sources: sources, timeout: timeout, log: log, rec: rec}
}

// Fetch queries every network for the account's native and token balances.
// It never fails as a whole: a network that errors or misses the deadline
// simply contributes nothing. Zero balances are dropped.
func (a *Aggregator) Fetch(ctx context.Context, account types.AccountID) []types.AssetBalance {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	balances := make([]types.AssetBalance, 0, len(a.sources)*2)

	for _, src := range a.sources {
		wg.Add(1)
		go func(src NetworkSource) {
			defer wg.Done()
			start := time.Now()
			got := a.fetchNetwork(ctx, src, account.Address)
			a.rec.ObserveLatency("balance_fetch", time.Since(start),
				map[string]string{"network": src.Config.Network.String()})

			mu.Lock()
			balances = append(balances, got...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return balances
}

func (a *Aggregator) fetchNetwork(ctx context.Context, src NetworkSource, address string) []types.AssetBalance {
	network := src.Config.Network
	var out []types.AssetBalance

	native, err := src.Ledger.NativeBalance(ctx, address)
	if err != nil {
		a.log.Warn("native balance query failed", map[string]any{
			"network": network.String(),
			"error":   err.Error(),
		})
		a.rec.IncCounter("balance_fetch_error", map[string]string{"network": network.String()})
	} else if native.Sign() > 0 {
		out = append(out, types.AssetBalance{
			Network:  network,
			ChainID:  network.ChainID(),
			Symbol:   NativeSymbol(network),
			Decimals: nativeDecimalsFor(network),
			Balance:  normalize(native, nativeDecimalsFor(network)),
		})
	}

	if len(src.Config.Tokens) == 0 {
		return out
	}

	contracts := make([]string, 0, len(src.Config.Tokens))
	for _, t := range src.Config.Tokens {
		contracts = append(contracts, t.Contract)
	}

	raw, err := src.Ledger.TokenBalances(ctx, address, contracts)
	if err != nil {
		a.log.Warn("token balance query failed", map[string]any{
			"network": network.String(),
			"error":   err.Error(),
		})
		a.rec.IncCounter("balance_fetch_error", map[string]string{"network": network.String()})
		return out
	}

	for _, t := range src.Config.Tokens {
		bal, ok := raw[t.Contract]
		if !ok || bal.Sign() <= 0 {
			continue
		}
		out = append(out, types.AssetBalance{
			Network:         network,
			ChainID:         network.ChainID(),
			Symbol:          t.Symbol,
			ContractAddress: t.Contract,
			Decimals:        t.Decimals,
			Balance:         normalize(bal, t.Decimals),
		})
	}
	return out
}

// normalize converts minor units to a decimal amount. Arbitrary precision
// end to end; float rounding on small stablecoin amounts is not acceptable.
func normalize(minor *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(minor, -decimals)
}

func nativeDecimalsFor(n types.Network) int32 {
	if d, ok := nativeDecimals[n]; ok {
		return d
	}
	return defaultNativeDecimals
}
