package state

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crosslock-io/bridge-go/agreement"
)

// PendingSwap tracks one observed-but-not-yet-completed cross-chain swap on
// the relayer side. It is created when the watcher sees an initiation event
// and removed once the corresponding completion has been submitted.
type PendingSwap struct {
	// Id is the lock id of the source-chain record.
	Id          ethcommon.Hash
	SourceChain agreement.ChainId
	DestChain   agreement.ChainId
	Sender      []byte
	Recipient   []byte
	Amount      uint64
	SecretHash  ethcommon.Hash

	// Preimage is empty until the source-chain withdrawal reveal is observed.
	Preimage []byte

	// position and unix time of the first observation
	FirstSeenPos uint64
	FirstSeenAt  int64
}

func (ps *PendingSwap) String() string {
	return fmt.Sprintf("%+v", *ps)
}
