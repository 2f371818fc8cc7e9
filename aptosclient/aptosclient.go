// AptosClient talks to one Move-side deployment of the bridge: it submits
// the htlc_bridge entry functions and reads its event handles over the
// fullnode REST API. It implements agreement.LedgerSource and
// agreement.CompletionSubmitter for a real chain, the same contract the
// in-process machine fulfils in tests.

package aptosclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
)

type AptosClient struct {
	aptosClient   *aptos.Client
	cfg           *AptosClientConfig
	account       *aptos.Account
	moduleAddress aptos.AccountAddress
	baseURL       string
	httpClient    *http.Client
}

func NewAptosClient(cfg *AptosClientConfig, account *aptos.Account) (*AptosClient, error) {
	baseURL, networkConfig := GetNetworkConfig(cfg.Network)
	aptosClient, err := aptos.NewClient(networkConfig)
	if err != nil {
		logger.Errorf("failed to create aptos client: %v", err)
		return nil, err
	}

	moduleAddress := aptos.AccountAddress{}
	if err := moduleAddress.ParseStringRelaxed(cfg.ModuleAddress); err != nil {
		logger.Errorf("failed to parse module address: %v", err)
		return nil, err
	}

	// verify the module account exists
	if _, err := aptosClient.AccountResources(moduleAddress); err != nil {
		logger.Errorf("failed to get module resources: %v", err)
		return nil, err
	}

	return &AptosClient{
		aptosClient:   aptosClient,
		cfg:           cfg,
		account:       account,
		moduleAddress: moduleAddress,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// --- agreement.LedgerSource ---

func (ac *AptosClient) ChainName() agreement.ChainId {
	return ac.cfg.ChainName
}

func (ac *AptosClient) LatestPosition() (uint64, error) {
	status, err := ac.aptosClient.GetProcessorStatus("default_processor")
	if err != nil {
		logger.WithError(err).Error("failed to get aptos processor status")
		return 0, err
	}
	return status, nil
}

func (ac *AptosClient) EventsInRange(from, to uint64) ([]agreement.ChainEvent, error) {
	var all []agreement.ChainEvent

	for _, h := range []struct {
		field  string
		decode func(map[string]interface{}) (agreement.ChainEvent, error)
	}{
		{handleInitiated, func(raw map[string]interface{}) (agreement.ChainEvent, error) {
			return decodeInitiated(raw)
		}},
		{handleWithdrawn, func(raw map[string]interface{}) (agreement.ChainEvent, error) {
			return decodeWithdrawn(raw)
		}},
		{handleRefunded, func(raw map[string]interface{}) (agreement.ChainEvent, error) {
			return decodeRefunded(raw)
		}},
		{handleCompleted, func(raw map[string]interface{}) (agreement.ChainEvent, error) {
			return decodeCompleted(raw)
		}},
	} {
		raws, err := ac.fetchEvents(h.field)
		if err != nil {
			return nil, err
		}
		for _, raw := range raws {
			pos, err := eventVersion(raw)
			if err != nil {
				logger.Warnf("skipping %s event without version: %v", h.field, err)
				continue
			}
			if pos < from || pos > to {
				continue
			}
			ev, err := h.decode(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s event: %v", h.field, err)
			}
			all = append(all, ev)
		}
	}

	// the reconciler requires events ordered old -> new
	sort.Slice(all, func(i, j int) bool {
		return all[i].Position() < all[j].Position()
	})
	return all, nil
}

// fetchEvents reads one event handle of the module's BridgeEvents resource
// over the fullnode REST API.
func (ac *AptosClient) fetchEvents(field string) ([]map[string]interface{}, error) {
	resourceType := fmt.Sprintf("%s::%s::BridgeEvents", ac.moduleAddress.String(), ModuleName)
	fullURL := fmt.Sprintf("%s/accounts/%s/events/%s/%s",
		ac.baseURL,
		ac.moduleAddress.String(),
		resourceType,
		field)

	resp, err := ac.httpClient.Get(fullURL)
	if err != nil {
		return nil, fmt.Errorf("event request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read event response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var events []map[string]interface{}
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to parse event response: %v", err)
	}
	return events, nil
}

// --- agreement.CompletionSubmitter ---

func (ac *AptosClient) SubmitCompletion(
	_ context.Context,
	sourceChain agreement.ChainId,
	sourceAddress string,
	destination []byte,
	amount uint64,
	preimage []byte,
) error {
	destAddr := aptos.AccountAddress{}
	if err := destAddr.ParseStringRelaxed(aptos.BytesToHex(destination)); err != nil {
		return fmt.Errorf("failed to parse destination address: %v", err)
	}
	destBytes, err := bcs.Serialize(&destAddr)
	if err != nil {
		return fmt.Errorf("failed to serialize destination address: %v", err)
	}
	amountBytes, err := bcs.SerializeU64(amount)
	if err != nil {
		return fmt.Errorf("failed to serialize amount: %v", err)
	}

	txHash, err := ac.submitEntry("complete_swap", [][]byte{
		serializeString(string(sourceChain)),
		serializeString(sourceAddress),
		destBytes,
		amountBytes,
		serializeBytes(preimage),
	})
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"chain":       ac.cfg.ChainName,
		"sourceChain": sourceChain,
		"txHash":      txHash,
	}).Info("complete_swap submitted")
	return nil
}

// InitiateSwap submits the initiate_swap entry function as the given account.
func (ac *AptosClient) InitiateSwap(
	account *aptos.Account,
	secretHash []byte,
	recipient string,
	amount uint64,
	timeoutSecs uint64,
	targetChain agreement.ChainId,
	targetAddress string,
) (string, error) {
	recipientAddr := aptos.AccountAddress{}
	if err := recipientAddr.ParseStringRelaxed(recipient); err != nil {
		return "", fmt.Errorf("failed to parse recipient address: %v", err)
	}
	recipientBytes, err := bcs.Serialize(&recipientAddr)
	if err != nil {
		return "", fmt.Errorf("failed to serialize recipient address: %v", err)
	}
	amountBytes, err := bcs.SerializeU64(amount)
	if err != nil {
		return "", fmt.Errorf("failed to serialize amount: %v", err)
	}
	timeoutBytes, err := bcs.SerializeU64(timeoutSecs)
	if err != nil {
		return "", fmt.Errorf("failed to serialize timeout: %v", err)
	}

	return ac.submitEntryAs(account, "initiate_swap", [][]byte{
		serializeBytes(secretHash),
		recipientBytes,
		amountBytes,
		timeoutBytes,
		serializeString(string(targetChain)),
		serializeString(targetAddress),
	})
}

// Withdraw claims a lock with its preimage.
func (ac *AptosClient) Withdraw(account *aptos.Account, lockId, preimage []byte) (string, error) {
	return ac.submitEntryAs(account, "withdraw", [][]byte{
		serializeBytes(lockId),
		serializeBytes(preimage),
	})
}

// Refund returns an expired lock to its sender.
func (ac *AptosClient) Refund(account *aptos.Account, lockId []byte) (string, error) {
	return ac.submitEntryAs(account, "refund", [][]byte{
		serializeBytes(lockId),
	})
}

// ExecuteRemote submits a remote-execution request carrying an opaque payload.
func (ac *AptosClient) ExecuteRemote(chainId uint64, contractAddress string, payload []byte, gasLimit uint64) (string, error) {
	chainIdBytes, err := bcs.SerializeU64(chainId)
	if err != nil {
		return "", fmt.Errorf("failed to serialize chain id: %v", err)
	}
	gasBytes, err := bcs.SerializeU64(gasLimit)
	if err != nil {
		return "", fmt.Errorf("failed to serialize gas limit: %v", err)
	}

	return ac.submitEntry("execute_remote", [][]byte{
		chainIdBytes,
		serializeString(contractAddress),
		serializeBytes(payload),
		gasBytes,
	})
}

func (ac *AptosClient) submitEntry(function string, args [][]byte) (string, error) {
	return ac.submitEntryAs(ac.account, function, args)
}

// submitEntryAs builds, signs, submits and waits for one entry-function call.
func (ac *AptosClient) submitEntryAs(account *aptos.Account, function string, args [][]byte) (string, error) {
	payload := aptos.TransactionPayload{
		Payload: &aptos.EntryFunction{
			Module: aptos.ModuleId{
				Address: ac.moduleAddress,
				Name:    ModuleName,
			},
			Function: function,
			ArgTypes: []aptos.TypeTag{},
			Args:     args,
		},
	}

	rawTxn, err := ac.aptosClient.BuildTransaction(account.AccountAddress(), payload)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %v", err)
	}

	signedTxn, err := rawTxn.SignedTransaction(account)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %v", err)
	}

	submitResult, err := ac.aptosClient.SubmitTransaction(signedTxn)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %v", err)
	}

	if _, err := ac.aptosClient.WaitForTransaction(submitResult.Hash); err != nil {
		return "", fmt.Errorf("failed to wait for transaction: %v", err)
	}

	// verify execution succeeded
	txnInfo, err := ac.aptosClient.TransactionByHash(submitResult.Hash)
	if err != nil {
		return "", fmt.Errorf("failed to get transaction info: %v", err)
	}
	userTxn, err := txnInfo.UserTransaction()
	if err != nil {
		return "", fmt.Errorf("failed to parse user transaction: %v", err)
	}
	if !userTxn.Success {
		return "", fmt.Errorf("transaction reverted: %s", userTxn.VmStatus)
	}

	return submitResult.Hash, nil
}
