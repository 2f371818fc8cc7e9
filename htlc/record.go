package htlc

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/common"
)

// LockStatus is the lifecycle state of a LockRecord. Transitions are
// monotonic: Locked -> Withdrawn or Locked -> Refunded, nothing leaves a
// terminal state.
type LockStatus int

const (
	StatusLocked LockStatus = iota
	StatusWithdrawn
	StatusRefunded
)

func (s LockStatus) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusWithdrawn:
		return "withdrawn"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// LockRecord is one initiated swap on a given chain. It is exclusively owned
// by the registry of the chain it was created on; the cross-chain linkage is
// by secret hash only.
type LockRecord struct {
	// LockId is derived once at creation and stored on the record.
	// Lookups match on this stored id, never on a re-derivation.
	LockId        ethcommon.Hash
	SecretHash    ethcommon.Hash
	Sender        []byte
	Recipient     []byte
	Amount        uint64
	EndTime       int64 // unix seconds, absolute expiry
	CreatedAt     int64 // unix seconds
	Status        LockStatus
	Preimage      []byte // empty until withdrawn
	TargetChain   agreement.ChainId
	TargetAddress string
}

// DeriveLockId computes the deterministic lock identifier from the public
// swap parameters: the canonical byte encoding of each field, concatenated in
// fixed order and digested with the chain's hash function. Any observer who
// knows the parameters can recompute it without a central counter.
func DeriveLockId(
	d Digest,
	secretHash ethcommon.Hash,
	recipient []byte,
	sender []byte,
	amount uint64,
	endTime int64,
	createdAt int64,
) ethcommon.Hash {
	buf := make([]byte, 0, len(secretHash)+len(recipient)+len(sender)+24)
	buf = append(buf, secretHash[:]...)
	buf = append(buf, recipient...)
	buf = append(buf, sender...)
	buf = append(buf, common.Uint64ToBytesBE(amount)...)
	buf = append(buf, common.Uint64ToBytesBE(uint64(endTime))...)
	buf = append(buf, common.Uint64ToBytesBE(uint64(createdAt))...)
	return d(buf)
}
