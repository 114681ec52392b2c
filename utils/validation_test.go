package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freepay/freepay/types"
)

func TestValidateAmount(t *testing.T) {
	dec, err := ValidateAmount("10.50")
	require.NoError(t, err)
	assert.Equal(t, "10.5", dec.String())

	for _, bad := range []string{"", "abc", "-1", "0"} {
		_, err := ValidateAmount(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))
	assert.Error(t, ValidateAddress("036CbD53842c5426634e7929541eC2318f3dCF7e"))
	assert.Error(t, ValidateAddress("0x036C"))
	assert.Error(t, ValidateAddress(""))
}

func TestValidateNetworkConfig(t *testing.T) {
	cfg := types.NetworkConfig{
		Network: types.NetworkBase,
		RPCUrl:  "https://mainnet.base.org",
		Tokens: []types.TokenConfig{
			{Symbol: "USDC", Contract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		},
	}
	assert.NoError(t, ValidateNetworkConfig(&cfg))

	bad := cfg
	bad.Network = "solana"
	assert.Error(t, ValidateNetworkConfig(&bad))

	bad = cfg
	bad.Tokens = []types.TokenConfig{{Symbol: "USDC", Contract: "0xnothex1234567890123456789012345678901234", Decimals: 6}}
	assert.Error(t, ValidateNetworkConfig(&bad))
}
