package htlc

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// LockRegistry is the authoritative store of lock records on one chain.
// It models per-deployment contract storage (a Move table / Solidity mapping),
// so durability and serialization belong to the ledger, not to this process.
// Callers (the Machine) serialize access.
type LockRegistry struct {
	locks map[ethcommon.Hash]*LockRecord
	order []ethcommon.Hash // insertion order, for stable summaries
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		locks: make(map[ethcommon.Hash]*LockRecord),
	}
}

// Insert adds a new record. Fails with ErrSwapExists when a record with the
// same stored lock id is already present.
func (r *LockRegistry) Insert(rec *LockRecord) error {
	if _, ok := r.locks[rec.LockId]; ok {
		return ErrSwapExists
	}
	r.locks[rec.LockId] = rec
	r.order = append(r.order, rec.LockId)
	return nil
}

// Find looks up a record by exact match on its stored id.
// The returned record is a copy; mutations go through MarkWithdrawn/MarkRefunded.
func (r *LockRegistry) Find(lockId ethcommon.Hash) (LockRecord, bool) {
	rec, ok := r.locks[lockId]
	if !ok {
		return LockRecord{}, false
	}
	return *rec, true
}

func (r *LockRegistry) Has(lockId ethcommon.Hash) bool {
	_, ok := r.locks[lockId]
	return ok
}

// MarkWithdrawn moves a Locked record to the terminal Withdrawn state and
// stores the revealed preimage.
func (r *LockRegistry) MarkWithdrawn(lockId ethcommon.Hash, preimage []byte) error {
	rec, ok := r.locks[lockId]
	if !ok {
		return ErrLockNotFound
	}
	if err := statusGuard(rec.Status); err != nil {
		return err
	}
	rec.Status = StatusWithdrawn
	rec.Preimage = append([]byte(nil), preimage...)
	return nil
}

// MarkRefunded moves a Locked record to the terminal Refunded state.
func (r *LockRegistry) MarkRefunded(lockId ethcommon.Hash) error {
	rec, ok := r.locks[lockId]
	if !ok {
		return ErrLockNotFound
	}
	if err := statusGuard(rec.Status); err != nil {
		return err
	}
	rec.Status = StatusRefunded
	return nil
}

func (r *LockRegistry) Len() int {
	return len(r.locks)
}

// Ids returns lock ids in insertion order.
func (r *LockRegistry) Ids() []ethcommon.Hash {
	out := make([]ethcommon.Hash, len(r.order))
	copy(out, r.order)
	return out
}
