package htlc

import (
	"sync"

	"github.com/crosslock-io/bridge-go/common"
)

// SimulatedLedger is an in-memory TokenLedger for tests and local runs.
type SimulatedLedger struct {
	mu       sync.Mutex
	balances map[string]uint64
}

func NewSimulatedLedger() *SimulatedLedger {
	return &SimulatedLedger{
		balances: make(map[string]uint64),
	}
}

func (l *SimulatedLedger) Transfer(from, to []byte, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey := common.ByteSliceToPureHexStr(from)
	if l.balances[fromKey] < amount {
		return ErrInsufficientFunds
	}
	l.balances[fromKey] -= amount
	l.balances[common.ByteSliceToPureHexStr(to)] += amount
	return nil
}

func (l *SimulatedLedger) Mint(to []byte, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[common.ByteSliceToPureHexStr(to)] += amount
	return nil
}

func (l *SimulatedLedger) BalanceOf(addr []byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[common.ByteSliceToPureHexStr(addr)]
}
