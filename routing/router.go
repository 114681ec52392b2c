// Package routing selects which asset pays a requested amount. Selection is
// a pure function of its inputs so routing decisions are reproducible and
// auditable.
package routing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/freepay/freepay/types"
)

// preference ranks (network, symbol) pairs, best first. Stablecoins on
// cheap settlement layers come before everything else; first match wins.
var preference = []struct {
	Network types.Network
	Symbol  string
}{
	{types.NetworkBase, "USDC"},
	{types.NetworkBase, "USDT"},
	{types.NetworkArbitrum, "USDC"},
	{types.NetworkOptimism, "USDC"},
	{types.NetworkPolygon, "USDC"},
	{types.NetworkPolygon, "USDT"},
	{types.NetworkBaseSepolia, "USDC"},
}

// Select picks the asset that pays the required amount.
//
// Ordering: (1) the preference table in table order, (2) any eligible asset
// on a rollup over one on the base layer, (3) input order. An asset whose
// balance does not cover the full amount is never selected.
func Select(balances []types.AssetBalance, required decimal.Decimal) (types.AssetBalance, error) {
	eligible := make([]types.AssetBalance, 0, len(balances))
	for _, b := range balances {
		if b.Balance.Cmp(required) >= 0 {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return types.AssetBalance{}, types.Errorf(types.ErrInsufficientFunds,
			"no asset covers %s", required.String())
	}

	for _, p := range preference {
		for _, b := range eligible {
			if b.Network == p.Network && b.Symbol == p.Symbol {
				return b, nil
			}
		}
	}

	for _, b := range eligible {
		if b.Network.IsRollup() {
			return b, nil
		}
	}

	return eligible[0], nil
}

// Plan runs selection and fixes the minor-unit amount for the encoder and
// the settlement watcher. Fractional minor units are truncated toward zero;
// the request must never exceed what the user approved.
func Plan(balances []types.AssetBalance, required decimal.Decimal, destination string) (types.PaymentPlan, error) {
	asset, err := Select(balances, required)
	if err != nil {
		return types.PaymentPlan{}, err
	}
	return types.PaymentPlan{
		Asset:       asset,
		Amount:      required,
		Destination: destination,
		MinorUnits:  MinorUnits(required, asset.Decimals),
	}, nil
}

// MinorUnits converts an amount to the asset's smallest unit, truncating
// any fraction below one minor unit.
func MinorUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}
