package aptosclient

import (
	"github.com/aptos-labs/aptos-go-sdk"

	"github.com/crosslock-io/bridge-go/agreement"
)

// AptosClientConfig configures the connection to one Move-side deployment.
type AptosClientConfig struct {
	// ChainName is this deployment's identifier in the bridge pairing.
	ChainName agreement.ChainId

	// ModuleAddress is the publisher address of the htlc_bridge module.
	ModuleAddress string

	// Network type: mainnet, testnet, devnet
	Network string
}

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
)

// ModuleName is the Move module holding the bridge entry functions.
const ModuleName = "htlc_bridge"

// GetNetworkConfig maps the network type to a fullnode URL and SDK config.
func GetNetworkConfig(network string) (string, aptos.NetworkConfig) {
	switch network {
	case NetworkMainnet:
		return "https://fullnode.mainnet.aptoslabs.com/v1", aptos.MainnetConfig
	case NetworkTestnet:
		return "https://fullnode.testnet.aptoslabs.com/v1", aptos.TestnetConfig
	case NetworkDevnet:
		return "https://fullnode.devnet.aptoslabs.com/v1", aptos.DevnetConfig
	default:
		return "https://fullnode.devnet.aptoslabs.com/v1", aptos.DevnetConfig
	}
}
