// Package eip681 renders payment plans as EIP-681 request URIs, the format
// installed wallets already understand.
package eip681

import (
	"fmt"

	"github.com/freepay/freepay/types"
)

// Scheme is the URI scheme shared by both ends of a tap.
const Scheme = "ethereum"

// Encode renders a payment plan.
//
// Native asset:  ethereum:<destination>@<chainId>?value=<minorUnits>
// Token asset:   ethereum:<contract>@<chainId>/transfer?address=<destination>&uint256=<minorUnits>
func Encode(plan types.PaymentPlan) string {
	if plan.Asset.Native() {
		return fmt.Sprintf("%s:%s@%d?value=%s",
			Scheme, plan.Destination, plan.Asset.ChainID, plan.MinorUnits.String())
	}
	return fmt.Sprintf("%s:%s@%d/transfer?address=%s&uint256=%s",
		Scheme, plan.Asset.ContractAddress, plan.Asset.ChainID,
		plan.Destination, plan.MinorUnits.String())
}
