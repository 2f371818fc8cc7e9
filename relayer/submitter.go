package relayer

import (
	"context"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/htlc"
)

// MachineSubmitter adapts an in-process HTLC machine to the
// CompletionSubmitter interface, calling CompleteSwap as the configured
// relayer account. For remote deployments the chain client (e.g.
// aptosclient) implements the interface directly.
type MachineSubmitter struct {
	machine *htlc.Machine
	relayer []byte
}

func NewMachineSubmitter(machine *htlc.Machine, relayer []byte) *MachineSubmitter {
	return &MachineSubmitter{
		machine: machine,
		relayer: append([]byte(nil), relayer...),
	}
}

func (s *MachineSubmitter) SubmitCompletion(
	_ context.Context,
	sourceChain agreement.ChainId,
	sourceAddress string,
	destination []byte,
	amount uint64,
	preimage []byte,
) error {
	return s.machine.CompleteSwap(s.relayer, sourceChain, sourceAddress, destination, amount, preimage)
}
