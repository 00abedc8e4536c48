package config

import (
	"fmt"
	"sort"
	"strings"
)

// Network describes a ledger the launcher can target
type Network struct {
	Name          string
	ChainID       uint64
	DefaultRPCURL string
	// DefaultFactory is empty when no factory is deployed by default;
	// FACTORY_ADDRESS is then required.
	DefaultFactory string
}

// networks maps network names to their parameters
var networks = map[string]Network{
	"zetachain-mainnet": {
		Name:          "zetachain-mainnet",
		ChainID:       7000,
		DefaultRPCURL: "https://zetachain-evm.blockpi.network/v1/rpc/public",
	},
	"zetachain-testnet": {
		Name:          "zetachain-testnet",
		ChainID:       7001,
		DefaultRPCURL: "https://zetachain-athens-evm.blockpi.network/v1/rpc/public",
	},
	"base-mainnet": {
		Name:          "base-mainnet",
		ChainID:       8453,
		DefaultRPCURL: "https://mainnet.base.org",
	},
	"arbitrum-mainnet": {
		Name:          "arbitrum-mainnet",
		ChainID:       42161,
		DefaultRPCURL: "https://arb1.arbitrum.io/rpc",
	},
	"polygon-mainnet": {
		Name:          "polygon-mainnet",
		ChainID:       137,
		DefaultRPCURL: "https://polygon-rpc.com",
	},
	"ethereum-mainnet": {
		Name:          "ethereum-mainnet",
		ChainID:       1,
		DefaultRPCURL: "https://eth.llamarpc.com",
	},
	"avalanche-mainnet": {
		Name:          "avalanche-mainnet",
		ChainID:       43114,
		DefaultRPCURL: "https://avalanche-c-chain-rpc.publicnode.com",
	},
	"bsc-mainnet": {
		Name:          "bsc-mainnet",
		ChainID:       56,
		DefaultRPCURL: "https://bsc-dataseed.bnbchain.org",
	},
	"local": {
		Name:          "local",
		ChainID:       31337,
		DefaultRPCURL: "http://127.0.0.1:8545",
	},
}

// GetNetwork returns the network named name
func GetNetwork(name string) (Network, error) {
	network, exists := networks[strings.ToLower(strings.TrimSpace(name))]
	if !exists {
		return Network{}, fmt.Errorf("unknown network %q, expected one of: %s", name, strings.Join(NetworkNames(), ", "))
	}
	return network, nil
}

// NetworkNames returns the supported network names, sorted
func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
