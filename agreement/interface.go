// Implement these interfaces to plug a chain into the relayer.

package agreement

import "context"

// LedgerSource is the read side of one chain: the watcher polls it for
// positions and events. On an EVM chain the position is the finalized block
// number, on Aptos it is the ledger version; the in-process machine uses its
// own event-log index. Implementations must return events ordered old -> new,
// otherwise the reconciler will have logic bugs.
type LedgerSource interface {
	ChainName() ChainId

	LatestPosition() (uint64, error)

	// EventsInRange returns events with from <= Position() <= to.
	EventsInRange(from, to uint64) ([]ChainEvent, error)
}

// CompletionSubmitter is the write side of one chain: the reconciler calls it
// to assert a cross-chain completion on the destination ledger. The submission
// must be synchronous: a nil error means the ledger accepted the call, a
// non-nil error means it did not execute and may be retried.
type CompletionSubmitter interface {
	SubmitCompletion(
		ctx context.Context,
		sourceChain ChainId,
		sourceAddress string,
		destination []byte,
		amount uint64,
		preimage []byte,
	) error
}
