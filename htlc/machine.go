// The HTLC state machine of one chain deployment. One Machine is constructed
// per deployment and owns all of its state explicitly (owner, relayer set,
// lock registry, event log) -- no package globals.

package htlc

import (
	"bytes"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/common"
)

// MachineConfig carries the per-deployment construction parameters.
type MachineConfig struct {
	ChainName agreement.ChainId

	// Owner is the deployment owner address; it administers the relayer set
	// and is implicitly authorized for relayer-gated entry points.
	Owner []byte

	// Digest must match the counterpart chain contract's hash function.
	Digest Digest

	Ledger TokenLedger

	// Escrow is the bridge custody account on this chain's ledger.
	// CompleteSwap credits out of it, so deployments must keep it funded.
	Escrow []byte

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Machine executes the HTLC entry points of one chain. On a real ledger every
// entry point runs under consensus-level serialization; run in-process, the
// mutex stands in for that.
type Machine struct {
	mu sync.Mutex

	chain    agreement.ChainId
	digest   Digest
	ledger   TokenLedger
	escrow   []byte
	auth     *RelayerAuthority
	registry *LockRegistry
	now      func() time.Time

	// ordered event log; positions start at 1
	events []agreement.ChainEvent

	// preimage digests already accepted by CompleteSwap. A duplicate
	// attestation with the same preimage is a no-op instead of a double
	// credit, which is what makes relayer-side replay after a crash safe.
	completed map[ethcommon.Hash]struct{}
}

func NewMachine(cfg *MachineConfig) (*Machine, error) {
	if len(cfg.Owner) == 0 {
		return nil, ErrEmptyAddress
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		chain:     cfg.ChainName,
		digest:    cfg.Digest,
		ledger:    cfg.Ledger,
		escrow:    append([]byte(nil), cfg.Escrow...),
		auth:      NewRelayerAuthority(cfg.Owner),
		registry:  NewLockRegistry(),
		now:       now,
		completed: make(map[ethcommon.Hash]struct{}),
	}, nil
}

// InitiateSwap locks amount of the bridged token under secretHash. The escrow
// debit and the record insertion are atomic: a failed debit creates no record,
// a failed insertion rolls the debit back.
func (m *Machine) InitiateSwap(
	caller []byte,
	secretHash []byte,
	recipient []byte,
	amount uint64,
	timeout time.Duration,
	targetChain agreement.ChainId,
	targetAddress string,
) (ethcommon.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount == 0 {
		return ethcommon.Hash{}, ErrZeroAmount
	}
	if timeout <= 0 {
		return ethcommon.Hash{}, ErrZeroTimeout
	}
	if len(secretHash) != ethcommon.HashLength {
		return ethcommon.Hash{}, ErrBadSecretHashLen
	}
	if len(caller) == 0 || len(recipient) == 0 {
		return ethcommon.Hash{}, ErrEmptyAddress
	}

	hash := ethcommon.BytesToHash(secretHash)
	createdAt := m.now().Unix()
	endTime := createdAt + int64(timeout/time.Second)

	lockId := DeriveLockId(m.digest, hash, recipient, caller, amount, endTime, createdAt)
	if m.registry.Has(lockId) {
		return ethcommon.Hash{}, ErrSwapExists
	}

	// debit into bridge custody
	if err := m.ledger.Transfer(caller, m.escrow, amount); err != nil {
		return ethcommon.Hash{}, err
	}

	rec := &LockRecord{
		LockId:        lockId,
		SecretHash:    hash,
		Sender:        append([]byte(nil), caller...),
		Recipient:     append([]byte(nil), recipient...),
		Amount:        amount,
		EndTime:       endTime,
		CreatedAt:     createdAt,
		Status:        StatusLocked,
		TargetChain:   targetChain,
		TargetAddress: targetAddress,
	}
	if err := m.registry.Insert(rec); err != nil {
		// roll the custody transfer back
		if rbErr := m.ledger.Transfer(m.escrow, caller, amount); rbErr != nil {
			logger.WithFields(logger.Fields{
				"chain":  m.chain,
				"lockId": lockId.String(),
			}).Errorf("failed to roll back escrow debit: %v", rbErr)
		}
		return ethcommon.Hash{}, err
	}

	m.emit(&agreement.SwapInitiatedEvent{
		LockId:        lockId,
		Sender:        rec.Sender,
		Recipient:     rec.Recipient,
		Amount:        amount,
		SecretHash:    hash,
		TargetChain:   targetChain,
		TargetAddress: targetAddress,
	})

	logger.WithFields(logger.Fields{
		"chain":       m.chain,
		"lockId":      lockId.String(),
		"amount":      amount,
		"targetChain": targetChain,
	}).Debug("swap initiated")

	return lockId, nil
}

// Withdraw claims a lock by revealing the preimage. Only the recipient may
// call it, before or after expiry, as long as the record is still Locked.
func (m *Machine) Withdraw(caller []byte, lockId ethcommon.Hash, preimage []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.registry.Find(lockId)
	if !ok {
		return ErrLockNotFound
	}
	if !bytes.Equal(caller, rec.Recipient) {
		return ErrPermissionDenied
	}
	if err := statusGuard(rec.Status); err != nil {
		return err
	}
	if !VerifyPreimage(m.digest, preimage, rec.SecretHash) {
		return ErrInvalidPreimage
	}

	if err := m.ledger.Transfer(m.escrow, caller, rec.Amount); err != nil {
		return err
	}
	if err := m.registry.MarkWithdrawn(lockId, preimage); err != nil {
		return err
	}

	m.emit(&agreement.SwapWithdrawnEvent{
		LockId:    lockId,
		Recipient: append([]byte(nil), caller...),
		Amount:    rec.Amount,
		Preimage:  append([]byte(nil), preimage...),
	})

	logger.WithFields(logger.Fields{
		"chain":  m.chain,
		"lockId": lockId.String(),
		"amount": rec.Amount,
	}).Debug("swap withdrawn")

	return nil
}

// Refund returns an expired lock to its sender. Only the original sender may
// call it, and only at or after the record's end time.
func (m *Machine) Refund(caller []byte, lockId ethcommon.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.registry.Find(lockId)
	if !ok {
		return ErrLockNotFound
	}
	if !bytes.Equal(caller, rec.Sender) {
		return ErrPermissionDenied
	}
	if err := statusGuard(rec.Status); err != nil {
		return err
	}
	if m.now().Unix() < rec.EndTime {
		return ErrTimelockNotExpired
	}

	if err := m.ledger.Transfer(m.escrow, caller, rec.Amount); err != nil {
		return err
	}
	if err := m.registry.MarkRefunded(lockId); err != nil {
		return err
	}

	m.emit(&agreement.SwapRefundedEvent{
		LockId: lockId,
		Sender: append([]byte(nil), caller...),
		Amount: rec.Amount,
	})

	logger.WithFields(logger.Fields{
		"chain":  m.chain,
		"lockId": lockId.String(),
		"amount": rec.Amount,
	}).Debug("swap refunded")

	return nil
}

// CompleteSwap credits amount to destination on this chain on the strength of
// a relayer attestation that an equivalent lock/withdraw happened on the
// source chain. It does NOT consult a local lock record -- bridge safety rests
// on relayers only calling this after observing a genuine cross-chain pair.
// Repeating the call with the same preimage is a no-op.
func (m *Machine) CompleteSwap(
	caller []byte,
	sourceChain agreement.ChainId,
	sourceAddress string,
	destination []byte,
	amount uint64,
	preimage []byte,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.auth.IsAuthorized(caller) {
		return ErrPermissionDenied
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if len(preimage) == 0 {
		return ErrEmptyPreimage
	}
	if len(destination) == 0 {
		return ErrEmptyAddress
	}

	key := m.digest(preimage)
	if _, done := m.completed[key]; done {
		logger.WithFields(logger.Fields{
			"chain":       m.chain,
			"sourceChain": sourceChain,
		}).Debug("duplicate completion attestation ignored")
		return nil
	}

	if err := m.ledger.Transfer(m.escrow, destination, amount); err != nil {
		return err
	}
	m.completed[key] = struct{}{}

	m.emit(&agreement.CrossChainCompletedEvent{
		SourceChain:   sourceChain,
		SourceAddress: sourceAddress,
		Destination:   append([]byte(nil), destination...),
		Amount:        amount,
		Preimage:      append([]byte(nil), preimage...),
	})

	logger.WithFields(logger.Fields{
		"chain":       m.chain,
		"sourceChain": sourceChain,
		"destination": common.ByteSliceToPureHexStr(destination),
		"amount":      amount,
	}).Info("cross-chain swap completed")

	return nil
}

// ExecuteRemote records a request to run an opaque payload on another chain.
// Relayer- or owner-only; execution itself happens off-core.
func (m *Machine) ExecuteRemote(
	caller []byte,
	targetChainId uint64,
	targetContract string,
	payload []byte,
	gasLimit uint64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.auth.IsAuthorized(caller) {
		return ErrPermissionDenied
	}
	if targetContract == "" {
		return ErrEmptyTargetContract
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	m.emit(&agreement.RemoteExecutionRequestedEvent{
		TargetChainId:  targetChainId,
		TargetContract: targetContract,
		PayloadLength:  len(payload),
		GasLimit:       gasLimit,
	})

	return nil
}

// AddRelayer / RemoveRelayer administer the relayer set (owner-only).
func (m *Machine) AddRelayer(caller, addr []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth.AddRelayer(caller, addr)
}

func (m *Machine) RemoveRelayer(caller, addr []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth.RemoveRelayer(caller, addr)
}

func (m *Machine) IsRelayer(addr []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth.IsRelayer(addr)
}

func (m *Machine) HasLock(lockId ethcommon.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Has(lockId)
}

func (m *Machine) FindLock(lockId ethcommon.Hash) (LockRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Find(lockId)
}

// ContractSummary returns (owner, relayerCount, lockCount).
func (m *Machine) ContractSummary() ([]byte, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth.Owner(), m.auth.Count(), m.registry.Len()
}

// --- agreement.LedgerSource ---

func (m *Machine) ChainName() agreement.ChainId {
	return m.chain
}

func (m *Machine) LatestPosition() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.events)), nil
}

func (m *Machine) EventsInRange(from, to uint64) ([]agreement.ChainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if from < 1 {
		from = 1
	}
	if to > uint64(len(m.events)) {
		to = uint64(len(m.events))
	}
	if from > to {
		return nil, nil
	}
	out := make([]agreement.ChainEvent, 0, to-from+1)
	out = append(out, m.events[from-1:to]...)
	return out, nil
}

// emit appends ev to the log, assigning the next position.
// Caller must hold m.mu.
func (m *Machine) emit(ev agreement.ChainEvent) {
	pos := uint64(len(m.events)) + 1
	switch e := ev.(type) {
	case *agreement.SwapInitiatedEvent:
		e.Pos = pos
	case *agreement.SwapWithdrawnEvent:
		e.Pos = pos
	case *agreement.SwapRefundedEvent:
		e.Pos = pos
	case *agreement.CrossChainCompletedEvent:
		e.Pos = pos
	case *agreement.RemoteExecutionRequestedEvent:
		e.Pos = pos
	}
	m.events = append(m.events, ev)
}

func statusGuard(s LockStatus) error {
	switch s {
	case StatusWithdrawn:
		return ErrAlreadyWithdrawn
	case StatusRefunded:
		return ErrAlreadyRefunded
	}
	return nil
}
