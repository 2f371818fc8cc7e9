// Decoding of the Move module's event handles into the normalized ChainEvent
// union. This is the only place that knows the Aptos-side JSON shape.

package aptosclient

import (
	"fmt"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/common"
)

// event handle fields on the module's BridgeEvents resource
const (
	handleInitiated = "swap_initiated_events"
	handleWithdrawn = "swap_withdrawn_events"
	handleRefunded  = "swap_refunded_events"
	handleCompleted = "cross_chain_completed_events"
)

// eventVersion extracts the transaction version, the position of the event
// in the ledger's total order.
func eventVersion(raw map[string]interface{}) (uint64, error) {
	s, ok := raw["version"].(string)
	if !ok {
		return 0, fmt.Errorf("event has no version field")
	}
	return strconv.ParseUint(s, 10, 64)
}

func eventData(raw map[string]interface{}) (map[string]interface{}, error) {
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("event has no data field")
	}
	return data, nil
}

func dataString(data map[string]interface{}, field string) (string, error) {
	s, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("field %q missing or not a string", field)
	}
	return s, nil
}

// u64 fields arrive as decimal strings in the fullnode API
func dataUint64(data map[string]interface{}, field string) (uint64, error) {
	s, err := dataString(data, field)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

func dataHash(data map[string]interface{}, field string) (ethcommon.Hash, error) {
	s, err := dataString(data, field)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return ethcommon.Hash(common.HexStrToBytes32(s)), nil
}

func dataBytes(data map[string]interface{}, field string) ([]byte, error) {
	s, err := dataString(data, field)
	if err != nil {
		return nil, err
	}
	return common.HexStrToByteSlice(s), nil
}

func decodeInitiated(raw map[string]interface{}) (*agreement.SwapInitiatedEvent, error) {
	pos, err := eventVersion(raw)
	if err != nil {
		return nil, err
	}
	data, err := eventData(raw)
	if err != nil {
		return nil, err
	}

	lockId, err := dataHash(data, "lock_id")
	if err != nil {
		return nil, err
	}
	sender, err := dataBytes(data, "sender")
	if err != nil {
		return nil, err
	}
	recipient, err := dataBytes(data, "recipient")
	if err != nil {
		return nil, err
	}
	amount, err := dataUint64(data, "amount")
	if err != nil {
		return nil, err
	}
	secretHash, err := dataHash(data, "secret_hash")
	if err != nil {
		return nil, err
	}
	targetChain, err := dataString(data, "target_chain")
	if err != nil {
		return nil, err
	}
	targetAddress, err := dataString(data, "target_address")
	if err != nil {
		return nil, err
	}

	return &agreement.SwapInitiatedEvent{
		Pos:           pos,
		LockId:        lockId,
		Sender:        sender,
		Recipient:     recipient,
		Amount:        amount,
		SecretHash:    secretHash,
		TargetChain:   agreement.ChainId(targetChain),
		TargetAddress: targetAddress,
	}, nil
}

func decodeWithdrawn(raw map[string]interface{}) (*agreement.SwapWithdrawnEvent, error) {
	pos, err := eventVersion(raw)
	if err != nil {
		return nil, err
	}
	data, err := eventData(raw)
	if err != nil {
		return nil, err
	}

	lockId, err := dataHash(data, "lock_id")
	if err != nil {
		return nil, err
	}
	recipient, err := dataBytes(data, "recipient")
	if err != nil {
		return nil, err
	}
	amount, err := dataUint64(data, "amount")
	if err != nil {
		return nil, err
	}
	preimage, err := dataBytes(data, "preimage")
	if err != nil {
		return nil, err
	}

	return &agreement.SwapWithdrawnEvent{
		Pos:       pos,
		LockId:    lockId,
		Recipient: recipient,
		Amount:    amount,
		Preimage:  preimage,
	}, nil
}

func decodeRefunded(raw map[string]interface{}) (*agreement.SwapRefundedEvent, error) {
	pos, err := eventVersion(raw)
	if err != nil {
		return nil, err
	}
	data, err := eventData(raw)
	if err != nil {
		return nil, err
	}

	lockId, err := dataHash(data, "lock_id")
	if err != nil {
		return nil, err
	}
	sender, err := dataBytes(data, "sender")
	if err != nil {
		return nil, err
	}
	amount, err := dataUint64(data, "amount")
	if err != nil {
		return nil, err
	}

	return &agreement.SwapRefundedEvent{
		Pos:    pos,
		LockId: lockId,
		Sender: sender,
		Amount: amount,
	}, nil
}

func decodeCompleted(raw map[string]interface{}) (*agreement.CrossChainCompletedEvent, error) {
	pos, err := eventVersion(raw)
	if err != nil {
		return nil, err
	}
	data, err := eventData(raw)
	if err != nil {
		return nil, err
	}

	sourceChain, err := dataString(data, "source_chain")
	if err != nil {
		return nil, err
	}
	sourceAddress, err := dataString(data, "source_address")
	if err != nil {
		return nil, err
	}
	destination, err := dataBytes(data, "destination")
	if err != nil {
		return nil, err
	}
	amount, err := dataUint64(data, "amount")
	if err != nil {
		return nil, err
	}
	preimage, err := dataBytes(data, "preimage")
	if err != nil {
		return nil, err
	}

	return &agreement.CrossChainCompletedEvent{
		Pos:           pos,
		SourceChain:   agreement.ChainId(sourceChain),
		SourceAddress: sourceAddress,
		Destination:   destination,
		Amount:        amount,
		Preimage:      preimage,
	}, nil
}
