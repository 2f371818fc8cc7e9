// Server = two chain legs + relayer/state + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/chainwatch"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/htlc"
	"github.com/crosslock-io/bridge-go/relayer"
	"github.com/crosslock-io/bridge-go/reporter"
	"github.com/crosslock-io/bridge-go/state"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type RelayerServerConfig struct {
	// chain pairing
	ChainAName   string // e.g. "move-local"
	ChainBName   string // e.g. "evm-local"
	ChainADigest string // hash function of chain B's contract: "keccak256" or "sha3-256"
	ChainBDigest string // hash function of chain A's contract

	// bridge accounts (hex)
	OwnerAddr   string // deployment owner, administers the relayer set
	RelayerAddr string // relayer account, submits completions
	EscrowAddr  string // bridge custody account on both ledgers
	EscrowFund  uint64 // escrow pre-funding per chain, for mint-and-burn demos

	// aptos side: when ModuleAddress is set, chain A runs against a real
	// Move deployment instead of the in-process machine.
	AptosNetwork    string
	AptosModuleAddr string
	AptosPrivKey    string

	// state side
	DbFilePath string // db file path

	// relayer side
	PollIntervalSec int64  // tick interval
	LookBack        int64  // first-run event look-back window, 0 = default
	SecretDir       string // DirVault directory, "" = withdrawal reveals only

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// RelayerServer holds the objects that consists of the relayer server.
type RelayerServer struct {
	MyStateDb    *state.StateDB
	MyReconciler *relayer.Reconciler

	// in-process machines and their ledgers, nil for legs backed by a real chain
	MachineA *htlc.Machine
	MachineB *htlc.Machine
	LedgerA  *htlc.SimulatedLedger
	LedgerB  *htlc.SimulatedLedger
}

func parseDigest(name string) (htlc.Digest, error) {
	switch name {
	case "keccak256":
		return htlc.KeccakDigest, nil
	case "sha3-256", "":
		return htlc.Sha3Digest, nil
	default:
		return nil, fmt.Errorf("unknown digest %q", name)
	}
}

// newLocalMachine builds one in-process chain leg with a funded escrow.
func newLocalMachine(chain string, digest htlc.Digest, owner, escrow []byte, fund uint64) (*htlc.Machine, *htlc.SimulatedLedger, error) {
	ledger := htlc.NewSimulatedLedger()
	if fund > 0 {
		if err := ledger.Mint(escrow, fund); err != nil {
			return nil, nil, err
		}
	}
	m, err := htlc.NewMachine(&htlc.MachineConfig{
		ChainName: agreement.ChainId(chain),
		Owner:     owner,
		Digest:    digest,
		Ledger:    ledger,
		Escrow:    escrow,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, ledger, nil
}

// NewRelayerServer creates a new relayer server.
// ctx is used for parental context to cancel the operation of the server.
// wg is used to wait for all the goroutines inside the server to finish.
func NewRelayerServer(rsc *RelayerServerConfig, ctx context.Context, wg *sync.WaitGroup) (*RelayerServer, error) {
	digestA, err := parseDigest(rsc.ChainADigest)
	if err != nil {
		logger.Fatalf("bad chain A digest: %v", err)
		return nil, err
	}
	digestB, err := parseDigest(rsc.ChainBDigest)
	if err != nil {
		logger.Fatalf("bad chain B digest: %v", err)
		return nil, err
	}

	owner := common.HexStrToByteSlice(rsc.OwnerAddr)
	relayerAddr := common.HexStrToByteSlice(rsc.RelayerAddr)
	escrow := common.HexStrToByteSlice(rsc.EscrowAddr)

	// Create sql db and the relayer state_db over it.
	sqldb, err := sql.Open("sqlite3", rsc.DbFilePath)
	if err != nil {
		logger.Fatalf("failed to open db file: %v", err)
		return nil, err
	}
	myStateDb, err := state.NewStateDB(sqldb)
	if err != nil {
		logger.Fatalf("failed to create state db: %v", err)
		return nil, err
	}

	// chain A leg: real aptos deployment or in-process machine
	var (
		sourceA    agreement.LedgerSource
		submitterA agreement.CompletionSubmitter
		machineA   *htlc.Machine
		ledgerA    *htlc.SimulatedLedger
	)
	if rsc.AptosModuleAddr != "" {
		aptosLeg, err := SetupAptosClient(rsc.ChainAName, rsc.AptosNetwork, rsc.AptosModuleAddr, rsc.AptosPrivKey)
		if err != nil {
			return nil, err
		}
		sourceA = aptosLeg
		submitterA = aptosLeg
	} else {
		machineA, ledgerA, err = newLocalMachine(rsc.ChainAName, digestA, owner, escrow, rsc.EscrowFund)
		if err != nil {
			logger.Fatalf("failed to create chain A machine: %v", err)
			return nil, err
		}
		if err := machineA.AddRelayer(owner, relayerAddr); err != nil {
			return nil, err
		}
		sourceA = machineA
		submitterA = relayer.NewMachineSubmitter(machineA, relayerAddr)
	}

	// chain B leg is always in-process in this deployment
	machineB, ledgerB, err := newLocalMachine(rsc.ChainBName, digestB, owner, escrow, rsc.EscrowFund)
	if err != nil {
		logger.Fatalf("failed to create chain B machine: %v", err)
		return nil, err
	}
	if err := machineB.AddRelayer(owner, relayerAddr); err != nil {
		return nil, err
	}

	lookBack := uint64(chainwatch.DefaultLookBack)
	if rsc.LookBack > 0 {
		lookBack = uint64(rsc.LookBack)
	}

	// leg A->B watches chain A for swaps targeting chain B, and vice versa
	legs := []*relayer.Leg{
		{
			Watcher: chainwatch.NewWatcher(sourceA, &chainwatch.ChainWatchConfig{
				TargetChain: rsc.ChainBName,
				LookBack:    lookBack,
			}),
			Dest:      relayer.NewMachineSubmitter(machineB, relayerAddr),
			DestChain: agreement.ChainId(rsc.ChainBName),
		},
		{
			Watcher: chainwatch.NewWatcher(machineB, &chainwatch.ChainWatchConfig{
				TargetChain: rsc.ChainAName,
				LookBack:    lookBack,
			}),
			Dest:      submitterA,
			DestChain: agreement.ChainId(rsc.ChainAName),
		},
	}

	// secret channel
	var vault relayer.SecretVault = relayer.NullVault{}
	if rsc.SecretDir != "" {
		vault, err = relayer.NewDirVault(rsc.SecretDir)
		if err != nil {
			logger.Fatalf("failed to open secret vault: %v", err)
			return nil, err
		}
	}

	myReconciler, err := relayer.New(
		&relayer.RelayerConfig{PollInterval: time.Duration(rsc.PollIntervalSec) * time.Second},
		myStateDb,
		vault,
		legs,
	)
	if err != nil {
		logger.Fatalf("failed to create reconciler: %v", err)
		return nil, err
	}

	// Important: turn on the reconciliation loop!
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := myReconciler.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("reconciler stopped: %v", err)
		}
	}()
	// Don't forget to call wg.Wait() in the main routine.

	// *** Setup a http server to report status ***
	machines := map[agreement.ChainId]*htlc.Machine{}
	if machineA != nil {
		machines[agreement.ChainId(rsc.ChainAName)] = machineA
	}
	machines[agreement.ChainId(rsc.ChainBName)] = machineB

	http_server := reporter.NewHttpReporter(rsc.HttpIp, rsc.HttpPort, machines, myStateDb)
	// Turn on the http server; Start returns once the port is bound.
	if err := http_server.Start(); err != nil {
		logger.Fatalf("failed to start http reporter: %v", err)
		return nil, err
	}
	// *** End the setup of http server ***

	return &RelayerServer{
		MyStateDb:    myStateDb,
		MyReconciler: myReconciler,
		MachineA:     machineA,
		MachineB:     machineB,
		LedgerA:      ledgerA,
		LedgerB:      ledgerB,
	}, nil
}

// Create, then start the relayer server and wait.
// Press Ctrl-C to kill the server.
func StartRelayerServerAndWait(rsc *RelayerServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewRelayerServer(rsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create relayer server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
}
