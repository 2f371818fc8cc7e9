package chainwatch

// ChainWatchConfig configures one chain's watcher.
type ChainWatchConfig struct {
	// TargetChain filters initiation events: only swaps whose target-chain
	// discriminator equals this value are relevant to the bridge pairing.
	// Empty keeps everything (tests).
	TargetChain string

	// LookBack bounds the first-run seed: with no checkpoint the watcher
	// starts at latest - LookBack instead of genesis, trading completeness
	// for bounded startup cost.
	LookBack uint64
}

// DefaultLookBack is used when the config leaves LookBack at zero.
const DefaultLookBack = 1000
