package htlc

import (
	"bytes"

	"github.com/crosslock-io/bridge-go/common"
)

// RelayerAuthority keeps the authorized-relayer set of one deployment.
// Only the designated owner may mutate it. The owner itself is implicitly
// trusted wherever relayers are, even if never added to the set.
type RelayerAuthority struct {
	owner   []byte
	members map[string]struct{} // keyed by pure hex of the address bytes
}

func NewRelayerAuthority(owner []byte) *RelayerAuthority {
	return &RelayerAuthority{
		owner:   append([]byte(nil), owner...),
		members: make(map[string]struct{}),
	}
}

func (ra *RelayerAuthority) Owner() []byte {
	return append([]byte(nil), ra.owner...)
}

func (ra *RelayerAuthority) IsOwner(addr []byte) bool {
	return bytes.Equal(addr, ra.owner)
}

// AddRelayer is owner-only and idempotent: adding a present member is a no-op.
func (ra *RelayerAuthority) AddRelayer(caller, addr []byte) error {
	if !ra.IsOwner(caller) {
		return ErrPermissionDenied
	}
	if len(addr) == 0 {
		return ErrEmptyAddress
	}
	ra.members[common.ByteSliceToPureHexStr(addr)] = struct{}{}
	return nil
}

// RemoveRelayer is owner-only; removing an absent member is a no-op.
func (ra *RelayerAuthority) RemoveRelayer(caller, addr []byte) error {
	if !ra.IsOwner(caller) {
		return ErrPermissionDenied
	}
	delete(ra.members, common.ByteSliceToPureHexStr(addr))
	return nil
}

func (ra *RelayerAuthority) IsRelayer(addr []byte) bool {
	_, ok := ra.members[common.ByteSliceToPureHexStr(addr)]
	return ok
}

// IsAuthorized reports whether addr may call the relayer-gated entry points
// (CompleteSwap, ExecuteRemote).
func (ra *RelayerAuthority) IsAuthorized(addr []byte) bool {
	return ra.IsOwner(addr) || ra.IsRelayer(addr)
}

func (ra *RelayerAuthority) Count() int {
	return len(ra.members)
}
