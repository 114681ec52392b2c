package types

// Network represents a supported ledger network.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkBase     Network = "base"
	NetworkArbitrum Network = "arbitrum"
	NetworkOptimism Network = "optimism"
	NetworkPolygon  Network = "polygon"

	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

var chainIDs = map[Network]uint64{
	NetworkEthereum:    1,
	NetworkBase:        8453,
	NetworkArbitrum:    42161,
	NetworkOptimism:    10,
	NetworkPolygon:     137,
	NetworkBaseSepolia: 84532,
}

// ChainID returns the eip155 chain id for the network, or 0 if unknown.
func (n Network) ChainID() uint64 {
	return chainIDs[n]
}

// IsRollup reports whether the network is classified as a fast/cheap
// settlement layer for routing purposes. Ethereum mainnet is the only base
// layer in the supported set; Polygon is grouped with the rollups because
// routing only cares about its fee profile.
func (n Network) IsRollup() bool {
	switch n {
	case NetworkBase, NetworkArbitrum, NetworkOptimism, NetworkPolygon, NetworkBaseSepolia:
		return true
	}
	return false
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

func (n Network) IsSupported() bool {
	_, ok := chainIDs[n]
	return ok
}

func (n Network) String() string {
	return string(n)
}

// NetworkByChainID resolves a chain id back to its network name.
func NetworkByChainID(chainID uint64) (Network, bool) {
	for n, id := range chainIDs {
		if id == chainID {
			return n, true
		}
	}
	return "", false
}
