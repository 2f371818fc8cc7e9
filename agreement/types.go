// Global agreement on types shared between the chain cores and the relayer.

package agreement

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ChainId identifies one ledger deployment of the bridge pair,
// e.g. "sepolia" or "aptos-testnet".
type ChainId string

// EventKind discriminates the ChainEvent union.
type EventKind int

const (
	KindInitiated EventKind = iota
	KindWithdrawn
	KindRefunded
	KindCompleted
	KindRemoteExecution
)

func (k EventKind) String() string {
	switch k {
	case KindInitiated:
		return "initiated"
	case KindWithdrawn:
		return "withdrawn"
	case KindRefunded:
		return "refunded"
	case KindCompleted:
		return "completed"
	case KindRemoteExecution:
		return "remote_execution"
	default:
		return "unknown"
	}
}

// ChainEvent is the tagged union of events a chain adapter can produce.
// The adapter is the only place that knows chain-specific decoding; everything
// downstream (watcher, reconciler) consumes this normalized form.
type ChainEvent interface {
	Kind() EventKind
	// Position of the event in the ledger's total order
	// (block number on EVM, ledger version on Aptos).
	Position() uint64
}

// SwapInitiatedEvent is emitted when a sender locks funds under a hash.
type SwapInitiatedEvent struct {
	Pos           uint64
	LockId        ethcommon.Hash
	Sender        []byte // [20]byte = ethereum address, [32]byte = aptos address
	Recipient     []byte
	Amount        uint64
	SecretHash    ethcommon.Hash
	TargetChain   ChainId
	TargetAddress string
}

func (ev *SwapInitiatedEvent) Kind() EventKind  { return KindInitiated }
func (ev *SwapInitiatedEvent) Position() uint64 { return ev.Pos }

func (ev *SwapInitiatedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// SwapWithdrawnEvent carries the revealed preimage. The published preimage is
// how the counterpart chain's relayer learns the secret.
type SwapWithdrawnEvent struct {
	Pos       uint64
	LockId    ethcommon.Hash
	Recipient []byte
	Amount    uint64
	Preimage  []byte
}

func (ev *SwapWithdrawnEvent) Kind() EventKind  { return KindWithdrawn }
func (ev *SwapWithdrawnEvent) Position() uint64 { return ev.Pos }

func (ev *SwapWithdrawnEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// SwapRefundedEvent is emitted when an expired lock is returned to its sender.
type SwapRefundedEvent struct {
	Pos    uint64
	LockId ethcommon.Hash
	Sender []byte
	Amount uint64
}

func (ev *SwapRefundedEvent) Kind() EventKind  { return KindRefunded }
func (ev *SwapRefundedEvent) Position() uint64 { return ev.Pos }

func (ev *SwapRefundedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// CrossChainCompletedEvent is emitted on the destination chain after a relayer
// asserts a swap observed on the source chain.
type CrossChainCompletedEvent struct {
	Pos           uint64
	SourceChain   ChainId
	SourceAddress string
	Destination   []byte
	Amount        uint64
	Preimage      []byte
}

func (ev *CrossChainCompletedEvent) Kind() EventKind  { return KindCompleted }
func (ev *CrossChainCompletedEvent) Position() uint64 { return ev.Pos }

func (ev *CrossChainCompletedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// RemoteExecutionRequestedEvent requests an opaque call on another chain.
// Actual execution is the remote-execution relay's job, not ours.
type RemoteExecutionRequestedEvent struct {
	Pos            uint64
	TargetChainId  uint64
	TargetContract string
	PayloadLength  int
	GasLimit       uint64
}

func (ev *RemoteExecutionRequestedEvent) Kind() EventKind  { return KindRemoteExecution }
func (ev *RemoteExecutionRequestedEvent) Position() uint64 { return ev.Pos }

func (ev *RemoteExecutionRequestedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}
